package web

import (
	"net/http"

	"fulfillment-engine/internal/core"
)

// apiCreateReturn handles POST /api/returns (customer return against a delivered note).
func (h *Handler) apiCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req core.CustomerReturnInput
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.GetDeliveryNote(r.Context(), req.DeliveryNoteID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, note.CompanyID) {
		return
	}
	rn, err := h.svc.CreateCustomerReturn(r.Context(), req, actor(r, req.Reason))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, rn)
}

// apiGetReturn handles GET /api/returns/{id}.
func (h *Handler) apiGetReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rn, err := h.svc.GetReturnNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, rn.CompanyID) {
		return
	}
	writeJSON(w, rn)
}

// apiAddEvidence handles POST /api/returns/{id}/evidence with {"url", "content_type"}.
// The photo itself lives in object storage; only its reference is recorded.
func (h *Handler) apiAddEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownReturn(w, r)
	if !ok {
		return
	}
	var req core.EvidenceInput
	if !decodeJSON(w, r, &req) {
		return
	}
	rn, err := h.svc.AddReturnEvidence(r.Context(), id, req, actor(r, ""))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, rn)
}

// apiCompleteReturn handles POST /api/returns/{id}/complete.
func (h *Handler) apiCompleteReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownReturn(w, r)
	if !ok {
		return
	}
	var req struct {
		LocationID *int   `json:"location_id"`
		Memo       string `json:"memo"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	rn, err := h.svc.CompleteReturn(r.Context(), id, req.LocationID, actor(r, req.Memo))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, rn)
}

func (h *Handler) ownReturn(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	rn, err := h.svc.GetReturnNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	return id, sameTenant(w, r, rn.CompanyID)
}
