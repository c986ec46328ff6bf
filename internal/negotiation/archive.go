package negotiation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hunters-code/adol-agents/internal/language"
)

// DealArchive persists closed deals to Postgres for reporting. The negotiation
// state itself stays in the Store; this table is append-only history that
// survives state eviction.
type DealArchive struct {
	db *sql.DB
}

// NewDealArchive builds a Postgres-backed archive.
func NewDealArchive(db *sql.DB) *DealArchive {
	if db == nil {
		panic("negotiation: archive db cannot be nil")
	}
	return &DealArchive{db: db}
}

var _ DealArchiver = (*DealArchive)(nil)

// ArchiveDeal inserts a closed deal. Re-archiving the same thread is a no-op,
// so retried turns cannot duplicate history.
func (a *DealArchive) ArchiveDeal(ctx context.Context, deal Deal) error {
	if deal.ProductID == "" || deal.ThreadID == "" {
		return errors.New("negotiation: archived deal requires product and thread ids")
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO deals (
			product_id, thread_id, seller_id,
			listing_price, final_price, turns, buyer_language, closed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (product_id, thread_id) DO NOTHING
	`, deal.ProductID, deal.ThreadID, deal.SellerID,
		deal.ListingPrice, deal.FinalPrice, deal.Turns, string(deal.Language), deal.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("negotiation: failed to archive deal: %w", err)
	}
	return nil
}

// RecentDeals lists the most recently closed deals, newest first.
func (a *DealArchive) RecentDeals(ctx context.Context, limit int) ([]Deal, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT product_id, thread_id, seller_id,
		       listing_price, final_price, turns, buyer_language, closed_at
		FROM deals
		ORDER BY closed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("negotiation: failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []Deal
	for rows.Next() {
		var d Deal
		var lang string
		var closedAt time.Time
		if err := rows.Scan(&d.ProductID, &d.ThreadID, &d.SellerID,
			&d.ListingPrice, &d.FinalPrice, &d.Turns, &lang, &closedAt); err != nil {
			return nil, fmt.Errorf("negotiation: failed to scan deal: %w", err)
		}
		d.Language = language.Language(lang)
		d.ClosedAt = closedAt
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("negotiation: failed reading deals: %w", err)
	}
	return deals, nil
}
