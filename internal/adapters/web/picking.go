package web

import (
	"net/http"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
)

// apiCreateSlip handles POST /api/picking-slips.
func (h *Handler) apiCreateSlip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID     int                 `json:"order_id"`
		WarehouseID int                 `json:"warehouse_id"`
		Lines       []app.SlipLineInput `json:"lines"`
		Memo        string              `json:"memo"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, r, "at least one line is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.CreatePickingSlip(r.Context(), app.CreateSlipRequest{
		CompanyID:   companyID(r),
		OrderID:     req.OrderID,
		WarehouseID: req.WarehouseID,
		Lines:       req.Lines,
		Actor:       actor(r, req.Memo),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, res)
}

// apiGetSlip handles GET /api/picking-slips/{id}.
func (h *Handler) apiGetSlip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetPickingSlip(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, res.Slip.CompanyID) {
		return
	}
	writeJSON(w, res)
}

// apiSuggest handles GET /api/picking-slips/{id}/suggestions.
func (h *Handler) apiSuggest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownSlip(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SuggestPicks(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiAssign handles POST /api/picking-slips/{id}/assign. Without picker_id the caller
// assigns the slip to themselves.
func (h *Handler) apiAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownSlip(w, r)
	if !ok {
		return
	}
	var req struct {
		PickerID int `json:"picker_id"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	a := actor(r, "")
	if req.PickerID == 0 {
		req.PickerID = a.ActorID
	}
	slip, err := h.svc.AssignPickingSlip(r.Context(), id, req.PickerID, a)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, slip)
}

// apiConfirm handles POST /api/picking-slips/{id}/confirm.
func (h *Handler) apiConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownSlip(w, r)
	if !ok {
		return
	}
	var req struct {
		Lines           []core.PickedLine `json:"lines"`
		CreateBackorder bool              `json:"create_backorder"`
		Memo            string            `json:"memo"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ConfirmPickingSlip(r.Context(), app.ConfirmPickRequest{
		SlipID:          id,
		Lines:           req.Lines,
		CreateBackorder: req.CreateBackorder,
		Actor:           actor(r, req.Memo),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ownSlip parses {id} and checks the slip belongs to the caller's company.
func (h *Handler) ownSlip(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	res, err := h.svc.GetPickingSlip(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	return id, sameTenant(w, r, res.Slip.CompanyID)
}
