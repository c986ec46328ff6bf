package catalog

import (
	"context"
	"sync"
)

// FakeClient is an in-memory catalog used by tests and local demos.
type FakeClient struct {
	mu       sync.RWMutex
	products map[string]*Product
	facts    map[string]map[string]string

	// FetchErr, when set, is returned by every FetchProduct call.
	FetchErr error
}

// NewFakeClient seeds a fake catalog with the given products.
func NewFakeClient(products ...*Product) *FakeClient {
	c := &FakeClient{
		products: make(map[string]*Product),
		facts:    make(map[string]map[string]string),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

var _ Client = (*FakeClient)(nil)

// FetchProduct returns a copy of the seeded product.
func (c *FakeClient) FetchProduct(_ context.Context, productID string) (*Product, error) {
	if c.FetchErr != nil {
		return nil, c.FetchErr
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// UpdateProductFact records the fact in memory.
func (c *FakeClient) UpdateProductFact(_ context.Context, productID, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[productID]; !ok {
		return ErrNotFound
	}
	if c.facts[productID] == nil {
		c.facts[productID] = make(map[string]string)
	}
	c.facts[productID][key] = value
	return nil
}

// Fact returns a previously recorded fact, for assertions.
func (c *FakeClient) Fact(productID, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.facts[productID][key]
	return v, ok
}
