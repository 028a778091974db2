package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type shortfallDetails struct {
	ItemID    string `json:"item_id"`
	Requested string `json:"requested"`
	Available string `json:"available"`
	Shortfall string `json:"shortfall"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps the core error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var short *core.InsufficientStockError
	switch {
	case errors.As(err, &short):
		writeErrorDetails(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity, shortfallDetails{
			ItemID:    short.ItemID.String(),
			Requested: short.Requested.String(),
			Available: short.Available.String(),
			Shortfall: short.Shortfall().String(),
		})
	case errors.Is(err, core.ErrAlreadyAssigned):
		writeError(w, r, err.Error(), "ALREADY_ASSIGNED", http.StatusConflict)
	case errors.Is(err, core.ErrMissingEvidence):
		writeError(w, r, err.Error(), "MISSING_EVIDENCE", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidTransition):
		writeError(w, r, err.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.Is(err, core.ErrConcurrentUpdate):
		writeError(w, r, err.Error(), "CONCURRENT_UPDATE", http.StatusConflict)
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrInvalidQuantity):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, app.ErrExplainerDisabled):
		writeError(w, r, err.Error(), "NOT_CONFIGURED", http.StatusServiceUnavailable)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated writes a JSON response with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}
