package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/hunters-code/adol-agents/internal/http/middleware"
	"github.com/hunters-code/adol-agents/internal/negotiation"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Negotiation        *negotiation.Handler
	WebchatHandler     http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// SellerAuthSecret protects the seller-facing endpoints. Empty
	// disables them.
	SellerAuthSecret string

	// RateLimitPerSecond throttles the public negotiate endpoint per IP.
	// Zero disables throttling.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)

	// Public buyer-facing endpoints.
	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			burst := cfg.RateLimitBurst
			if burst <= 0 {
				burst = int(cfg.RateLimitPerSecond) + 1
			}
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, burst))
		}
		if cfg.Negotiation != nil {
			public.Post("/negotiate", cfg.Negotiation.Turn)
			public.Get("/negotiations/{productID}/{threadID}", cfg.Negotiation.ThreadState)
			public.Get("/status", cfg.Negotiation.Status)
		}
		if cfg.WebchatHandler != nil {
			public.Handle("/ws", cfg.WebchatHandler)
		}
	})

	// Seller endpoints, JWT protected.
	if cfg.Negotiation != nil && cfg.SellerAuthSecret != "" {
		r.Route("/seller", func(seller chi.Router) {
			seller.Use(httpmiddleware.SellerJWT(cfg.SellerAuthSecret))
			seller.Post("/products/{productID}/facts", cfg.Negotiation.SellerFact)
		})
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
