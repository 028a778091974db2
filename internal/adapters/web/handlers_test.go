package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	store   *memory.Store
	locA    int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	locA := store.AddLocation(1, "A-01")
	store.AddLocation(1, "GENERAL")
	store.AddItem(1, core.CatalogItem{UUID: uuid.New(), PartNumber: "BRK-01"})

	logger := zap.NewNop()
	svc := app.NewAppService(store, store, nil, &app.Config{FallbackLocationCode: "GENERAL"}, logger)
	return &testServer{
		handler: NewHandler(svc, "", testSecret, logger),
		store:   store,
		locA:    locA,
	}
}

func token(t *testing.T, userID, companyID int) string {
	t.Helper()
	tok, err := IssueToken(testSecret, userID, companyID, "picker", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func (s *testServer) receive(t *testing.T, tok string, qty string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/stock/receive", tok, map[string]any{
		"item":         map[string]string{"part_number": "BRK-01"},
		"warehouse_id": 1,
		"location_id":  s.locA,
		"quantity":     qty,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("receive: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func slipBody(qty string) map[string]any {
	return map[string]any{
		"order_id":     100,
		"warehouse_id": 1,
		"lines": []map[string]any{
			{"order_line_id": 501, "item": map[string]string{"part_number": "BRK-01"}, "quantity": qty},
		},
	}
}

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/stock/levels", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	bad, err := IssueToken("other-secret", 1, 1, "picker", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rec = s.do(t, http.MethodGet, "/api/stock/levels", bad, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", rec.Code)
	}

	expired, err := IssueToken(testSecret, 1, 1, "picker", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec = s.do(t, http.MethodGet, "/api/stock/levels", expired, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/stock/levels", token(t, 1, 1), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", rec.Code)
	}
}

func TestCreateSlip_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 1, 1)
	s.receive(t, tok, "5")

	rec := s.do(t, http.MethodPost, "/api/picking-slips", tok, slipBody("8"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeError(t, rec)
	if resp.Code != "INSUFFICIENT_STOCK" {
		t.Errorf("expected INSUFFICIENT_STOCK, got %s", resp.Code)
	}
	details, _ := resp.Details.(map[string]any)
	if details["shortfall"] != "3" {
		t.Errorf("expected shortfall 3 in details, got %v", resp.Details)
	}
}

func TestCreateSlip_NoLines(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/picking-slips", token(t, 1, 1), map[string]any{"order_id": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPickingFlow_OverHTTP(t *testing.T) {
	s := newTestServer(t)
	picker := token(t, 7, 1)
	other := token(t, 8, 1)
	s.receive(t, picker, "5")

	rec := s.do(t, http.MethodPost, "/api/picking-slips", picker, slipBody("3"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create slip: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created core.SlipResult
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	slipPath := "/api/picking-slips/" + strconv.Itoa(created.Slip.ID)

	rec = s.do(t, http.MethodGet, slipPath, token(t, 1, 2), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant read: expected 404, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, slipPath+"/assign", picker, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, slipPath+"/assign", other, nil)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "ALREADY_ASSIGNED" {
		t.Errorf("second assign: expected 409 ALREADY_ASSIGNED, got %d", rec.Code)
	}

	confirm := map[string]any{
		"lines": []map[string]any{{"slip_item_id": created.Slip.Items[0].ID, "quantity": "3"}},
	}
	rec = s.do(t, http.MethodPost, slipPath+"/confirm", picker, confirm)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, slipPath+"/confirm", picker, confirm)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "INVALID_TRANSITION" {
		t.Errorf("double confirm: expected 409 INVALID_TRANSITION, got %d", rec.Code)
	}

	lvl := s.store.Level(created.Slip.Items[0].ItemID, s.locA)
	if lvl.HardReserved.String() != "3" || !lvl.SoftReserved.IsZero() {
		t.Errorf("expected 3 hard-reserved, got soft %s hard %s", lvl.SoftReserved, lvl.HardReserved)
	}
}

func TestGetMissingDocument(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 1, 1)
	for _, path := range []string{"/api/picking-slips/999", "/api/shipments/999", "/api/delivery-notes/999", "/api/returns/999"} {
		rec := s.do(t, http.MethodGet, path, tok, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	rec := s.do(t, http.MethodGet, "/api/picking-slips/abc", tok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: expected 400, got %d", rec.Code)
	}
}

func TestExplain_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 1, 1)
	s.receive(t, tok, "5")

	var levels app.StockResult
	rec := s.do(t, http.MethodGet, "/api/stock/levels", tok, nil)
	if err := json.NewDecoder(rec.Body).Decode(&levels); err != nil || len(levels.Levels) != 1 {
		t.Fatalf("expected one stock level, got %v (%v)", levels.Levels, err)
	}
	rec = s.do(t, http.MethodPost, "/api/stock/levels/"+strconv.Itoa(levels.Levels[0].ID)+"/explain", tok, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without an explainer, got %d", rec.Code)
	}
}

func TestAdjustStock(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 1, 1)
	s.receive(t, tok, "5")
	body := func(action, qty string) map[string]any {
		return map[string]any{
			"item":        map[string]string{"part_number": "BRK-01"},
			"location_id": s.locA,
			"action":      action,
			"quantity":    qty,
		}
	}

	rec := s.do(t, http.MethodPost, "/api/stock/adjust", tok, body("reserve_soft", "6"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-reservation: expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/stock/adjust", tok, body("reserve_soft", "2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var lvl core.StockLevel
	if err := json.NewDecoder(rec.Body).Decode(&lvl); err != nil {
		t.Fatal(err)
	}
	if !lvl.SoftReserved.Equal(decimal.NewFromInt(2)) || !lvl.OnHand.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected 5 on hand with 2 soft-reserved, got %+v", lvl)
	}

	rec = s.do(t, http.MethodPost, "/api/stock/adjust", tok, body("ship", "1"))
	if rec.Code != http.StatusConflict {
		t.Errorf("shipping without a hard reservation: expected 409, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/stock/adjust", tok, body("teleport", "1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: expected 400, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/stock/adjust", token(t, 1, 2), body("reserve_soft", "1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("other company: expected 404, got %d", rec.Code)
	}
}
