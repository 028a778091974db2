package web

import (
	"net/http"

	"fulfillment-engine/internal/core"
)

// apiCreateShipment handles POST /api/shipments.
func (h *Handler) apiCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleRef      string `json:"vehicle_ref"`
		DeliveryNoteIDs []int  `json:"delivery_note_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sh, err := h.svc.CreateShipment(r.Context(), core.CreateShipmentInput{
		CompanyID:       companyID(r),
		VehicleRef:      req.VehicleRef,
		DeliveryNoteIDs: req.DeliveryNoteIDs,
	}, actor(r, ""))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, sh)
}

// apiGetShipment handles GET /api/shipments/{id}.
func (h *Handler) apiGetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetShipment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, res.Shipment.CompanyID) {
		return
	}
	writeJSON(w, res)
}

// apiLoadNote handles POST /api/shipments/{id}/delivery-notes.
func (h *Handler) apiLoadNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownShipment(w, r)
	if !ok {
		return
	}
	var req struct {
		DeliveryNoteID int `json:"delivery_note_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.LoadDeliveryNote(r.Context(), id, req.DeliveryNoteID, actor(r, ""))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, note)
}

// apiShipmentStatus handles POST /api/shipments/{id}/status with {"status":"shipped"|"completed"}.
func (h *Handler) apiShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownShipment(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Memo   string `json:"memo"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sh, err := h.svc.UpdateShipmentStatus(r.Context(), id, req.Status, actor(r, req.Memo))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sh)
}

// apiUnload handles POST /api/shipments/{id}/unload.
func (h *Handler) apiUnload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownShipment(w, r)
	if !ok {
		return
	}
	var req core.UnloadInput
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShipmentID = id
	res, err := h.svc.UnloadDeliveryNote(r.Context(), req, actor(r, req.Reason))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiGetNote handles GET /api/delivery-notes/{id}.
func (h *Handler) apiGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetDeliveryNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, note.CompanyID) {
		return
	}
	writeJSON(w, note)
}

// apiDeliver handles POST /api/delivery-notes/{id}/deliver.
func (h *Handler) apiDeliver(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	note, err := h.svc.MarkDelivered(r.Context(), id, actor(r, ""))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, note)
}

// apiCancelNote handles POST /api/delivery-notes/{id}/cancel.
func (h *Handler) apiCancelNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownNote(w, r)
	if !ok {
		return
	}
	var req core.CancelInput
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	rn, err := h.svc.CancelDeliveryNote(r.Context(), id, req, actor(r, req.Reason))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, rn)
}

func (h *Handler) ownShipment(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	res, err := h.svc.GetShipment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	return id, sameTenant(w, r, res.Shipment.CompanyID)
}

func (h *Handler) ownNote(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	note, err := h.svc.GetDeliveryNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	return id, sameTenant(w, r, note.CompanyID)
}
