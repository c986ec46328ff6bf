package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hunters-code/adol-agents/internal/language"
)

func TestDealArchive_ArchiveDeal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	archive := NewDealArchive(db)
	closedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO deals").
		WithArgs("prod-1", "buyer-a", "seller-1", int64(1_400_000), int64(1_300_000), 3, "id", closedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = archive.ArchiveDeal(context.Background(), Deal{
		ProductID:    "prod-1",
		ThreadID:     "buyer-a",
		SellerID:     "seller-1",
		ListingPrice: 1_400_000,
		FinalPrice:   1_300_000,
		Turns:        3,
		Language:     language.ID,
		ClosedAt:     closedAt,
	})
	if err != nil {
		t.Fatalf("ArchiveDeal: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDealArchive_ArchiveDealRequiresKey(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	archive := NewDealArchive(db)
	if err := archive.ArchiveDeal(context.Background(), Deal{}); err == nil {
		t.Fatal("expected error for deal without ids")
	}
}

func TestDealArchive_RecentDeals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	archive := NewDealArchive(db)
	closedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"product_id", "thread_id", "seller_id",
		"listing_price", "final_price", "turns", "buyer_language", "closed_at",
	}).AddRow("prod-1", "buyer-a", "seller-1", int64(1_400_000), int64(1_300_000), 3, "id", closedAt)

	mock.ExpectQuery("SELECT product_id, thread_id").
		WithArgs(10).
		WillReturnRows(rows)

	deals, err := archive.RecentDeals(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentDeals: %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("len = %d, want 1", len(deals))
	}
	if deals[0].FinalPrice != 1_300_000 || deals[0].Language != language.ID {
		t.Errorf("deal = %+v", deals[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
