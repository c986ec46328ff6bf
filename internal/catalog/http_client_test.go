package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hunters-code/adol-agents/pkg/logging"
)

func TestFetchProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/PROD123" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Product{
			ID:           "PROD123",
			Name:         "Vintage Oak Coffee Table",
			ListingPrice: 1400000,
			Stock:        1,
			IsActive:     true,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, logging.Default())

	product, err := client.FetchProduct(context.Background(), "PROD123")
	if err != nil {
		t.Fatalf("FetchProduct() error = %v", err)
	}
	if product.Name != "Vintage Oak Coffee Table" || product.ListingPrice != 1400000 {
		t.Errorf("unexpected product: %+v", product)
	}

	if _, err := client.FetchProduct(context.Background(), "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchProductRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Product{ID: "PROD123", ListingPrice: 500, IsActive: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, logging.Default())

	product, err := client.FetchProduct(context.Background(), "PROD123")
	if err != nil {
		t.Fatalf("FetchProduct() error = %v", err)
	}
	if product.ID != "PROD123" {
		t.Errorf("unexpected product: %+v", product)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestFetchProductUnavailableAfterRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, logging.Default())

	_, err := client.FetchProduct(context.Background(), "PROD123")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls.Load())
	}
}

func TestUpdateProductFact(t *testing.T) {
	var gotKey, gotValue string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/products/PROD123/facts" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotKey, gotValue = body["key"], body["value"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, logging.Default(), WithAPIKey("secret"))

	err := client.UpdateProductFact(context.Background(), "PROD123", "charging_port_condition", "no scratches")
	if err != nil {
		t.Fatalf("UpdateProductFact() error = %v", err)
	}
	if gotKey != "charging_port_condition" || gotValue != "no scratches" {
		t.Errorf("fact not delivered: key=%q value=%q", gotKey, gotValue)
	}
}
