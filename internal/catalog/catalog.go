// Package catalog provides read access to the seller's product catalog and a
// narrow side channel for pushing negotiation-learned facts back to it. The
// catalog service itself is an external collaborator; this package only
// defines the product model and the client contract the negotiation core
// consumes.
package catalog

import (
	"context"
	"errors"
)

// Product is a catalog entry as served by the product API. Prices are in the
// smallest currency unit.
type Product struct {
	ID           string `json:"id"`
	CategoryID   string `json:"categoryId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ListingPrice int64  `json:"price"`
	Stock        int    `json:"stock"`
	IsActive     bool   `json:"isActive"`
	KnownFlaws   string `json:"knownFlaws,omitempty"`
	CreatedBy    string `json:"createdBy,omitempty"`
	CreatedAt    int64  `json:"createdAt,omitempty"`
	UpdatedAt    int64  `json:"updatedAt,omitempty"`
}

var (
	// ErrNotFound indicates the product id does not exist in the catalog.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrUnavailable indicates the catalog service could not be reached
	// even after a retry. Terminal for the turn, not for the thread.
	ErrUnavailable = errors.New("catalog: service unavailable")
)

// Client fetches products and records seller-supplied facts.
type Client interface {
	FetchProduct(ctx context.Context, productID string) (*Product, error)
	UpdateProductFact(ctx context.Context, productID, key, value string) error
}
