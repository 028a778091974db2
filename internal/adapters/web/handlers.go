package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, logger *zap.Logger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Stock ─────────────────────────────────────────────────────────────
		r.Get("/api/stock", h.apiGetStock)
		r.Get("/api/stock/levels", h.apiListStock)
		r.Get("/api/stock/levels/{id}/movements", h.apiMovements)
		r.Post("/api/stock/levels/{id}/explain", h.apiExplain)
		r.Get("/api/stock/verify", h.apiVerifyStock)
		r.Post("/api/stock/receive", h.apiReceiveStock)
		r.Post("/api/stock/plan", h.apiPlan)
		r.Post("/api/stock/adjust", h.apiAdjustStock)

		// ── Picking ───────────────────────────────────────────────────────────
		r.Post("/api/picking-slips", h.apiCreateSlip)
		r.Get("/api/picking-slips/{id}", h.apiGetSlip)
		r.Get("/api/picking-slips/{id}/suggestions", h.apiSuggest)
		r.Post("/api/picking-slips/{id}/assign", h.apiAssign)
		r.Post("/api/picking-slips/{id}/confirm", h.apiConfirm)

		// ── Shipments ─────────────────────────────────────────────────────────
		r.Post("/api/shipments", h.apiCreateShipment)
		r.Get("/api/shipments/{id}", h.apiGetShipment)
		r.Post("/api/shipments/{id}/delivery-notes", h.apiLoadNote)
		r.Post("/api/shipments/{id}/status", h.apiShipmentStatus)
		r.Post("/api/shipments/{id}/unload", h.apiUnload)

		r.Get("/api/delivery-notes/{id}", h.apiGetNote)
		r.Post("/api/delivery-notes/{id}/deliver", h.apiDeliver)
		r.Post("/api/delivery-notes/{id}/cancel", h.apiCancelNote)

		// ── Returns ───────────────────────────────────────────────────────────
		r.Post("/api/returns", h.apiCreateReturn)
		r.Get("/api/returns/{id}", h.apiGetReturn)
		r.Post("/api/returns/{id}/evidence", h.apiAddEvidence)
		r.Post("/api/returns/{id}/complete", h.apiCompleteReturn)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// pathID parses the {id} URL parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted entirely.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
