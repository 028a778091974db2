package web

import (
	"net/http"
	"strconv"

	"fulfillment-engine/internal/app"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// itemRefFromQuery reads item_id or part_number from the query string.
func itemRefFromQuery(r *http.Request) (app.ItemRef, error) {
	ref := app.ItemRef{PartNumber: r.URL.Query().Get("part_number")}
	if v := r.URL.Query().Get("item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return ref, err
		}
		ref.ItemID = id
	}
	return ref, nil
}

// apiGetStock handles GET /api/stock?item_id=|part_number=&warehouse_id=.
func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	ref, err := itemRefFromQuery(r)
	if err != nil {
		writeError(w, r, "invalid item_id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	warehouseID, err := strconv.Atoi(r.URL.Query().Get("warehouse_id"))
	if err != nil {
		writeError(w, r, "warehouse_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.GetStockLevels(r.Context(), app.StockQuery{
		CompanyID:   companyID(r),
		Item:        ref,
		WarehouseID: warehouseID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiListStock handles GET /api/stock/levels.
func (h *Handler) apiListStock(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListStockLevels(r.Context(), companyID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiMovements handles GET /api/stock/levels/{id}/movements.
func (h *Handler) apiMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetMovements(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, res.Level.CompanyID) {
		return
	}
	writeJSON(w, res)
}

// apiExplain handles POST /api/stock/levels/{id}/explain.
func (h *Handler) apiExplain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	movements, err := h.svc.GetMovements(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !sameTenant(w, r, movements.Level.CompanyID) {
		return
	}
	res, err := h.svc.ExplainStockLevel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiVerifyStock handles GET /api/stock/verify.
func (h *Handler) apiVerifyStock(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.VerifyStock(r.Context(), companyID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		OK            bool `json:"ok"`
		Discrepancies any  `json:"discrepancies"`
	}
	writeJSON(w, response{OK: len(found) == 0, Discrepancies: found})
}

// apiReceiveStock handles POST /api/stock/receive.
func (h *Handler) apiReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item        app.ItemRef     `json:"item"`
		WarehouseID int             `json:"warehouse_id"`
		LocationID  int             `json:"location_id"`
		Quantity    decimal.Decimal `json:"quantity"`
		Memo        string          `json:"memo"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	lvl, err := h.svc.ReceiveStock(r.Context(), app.ReceiveStockRequest{
		CompanyID:   companyID(r),
		Item:        req.Item,
		WarehouseID: req.WarehouseID,
		LocationID:  req.LocationID,
		Quantity:    req.Quantity,
		Actor:       actor(r, req.Memo),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, lvl)
}

// apiAdjustStock handles POST /api/stock/adjust with
// {"item", "location_id", "action", "quantity", "memo"}.
func (h *Handler) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item       app.ItemRef     `json:"item"`
		LocationID int             `json:"location_id"`
		Action     string          `json:"action"`
		Quantity   decimal.Decimal `json:"quantity"`
		Memo       string          `json:"memo"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	lvl, err := h.svc.AdjustStock(r.Context(), app.AdjustStockRequest{
		CompanyID:  companyID(r),
		Item:       req.Item,
		LocationID: req.LocationID,
		Action:     req.Action,
		Quantity:   req.Quantity,
		Actor:      actor(r, req.Memo),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, lvl)
}

// apiPlan handles POST /api/stock/plan.
func (h *Handler) apiPlan(w http.ResponseWriter, r *http.Request) {
	var req app.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyID = companyID(r)
	plan, err := h.svc.PlanAllocation(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, plan)
}
