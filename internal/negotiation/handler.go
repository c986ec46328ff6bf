package negotiation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hunters-code/adol-agents/pkg/logging"
)

// Handler wires HTTP requests to the negotiation service.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates a negotiation handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("negotiation: handler requires a service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Turn handles POST /negotiate.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode turn request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ProcessTurn(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to process turn", "thread_id", req.ThreadID, "error", err)
		http.Error(w, "Failed to process turn", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ThreadState handles GET /negotiations/{productID}/{threadID}.
func (h *Handler) ThreadState(w http.ResponseWriter, r *http.Request) {
	key := Key{
		ProductID: chi.URLParam(r, "productID"),
		ThreadID:  chi.URLParam(r, "threadID"),
	}
	if key.ProductID == "" || key.ThreadID == "" {
		http.Error(w, "product and thread ids are required", http.StatusBadRequest)
		return
	}

	st, err := h.service.GetState(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			http.Error(w, "Negotiation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load negotiation state", "product_id", key.ProductID, "thread_id", key.ThreadID, "error", err)
		http.Error(w, "Failed to load negotiation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, st)
}

// sellerFactRequest is the body of POST /seller/products/{productID}/facts.
type sellerFactRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type sellerFactResponse struct {
	ProductID string `json:"product_id"`
	Key       string `json:"key"`
	Reopened  int    `json:"reopened_threads"`
}

// SellerFact handles POST /seller/products/{productID}/facts.
func (h *Handler) SellerFact(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		http.Error(w, "product id is required", http.StatusBadRequest)
		return
	}

	var req sellerFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode seller fact request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	reopened, err := h.service.RecordSellerFact(r.Context(), productID, req.Key, req.Value)
	if err != nil {
		if errors.Is(err, ErrMalformedInput) {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to record seller fact", "product_id", productID, "key", req.Key, "error", err)
		http.Error(w, "Failed to record fact", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, sellerFactResponse{
		ProductID: productID,
		Key:       NormalizeFactKey(req.Key),
		Reopened:  reopened,
	})
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect stats", "error", err)
		http.Error(w, "Failed to collect stats", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
