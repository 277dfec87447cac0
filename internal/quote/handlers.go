package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/atoll-quote/internal/common"
)

// Enqueuer schedules a background recalculation of a quote.
type Enqueuer interface {
	EnqueueRecalculate(ctx context.Context, quoteID string) (string, error)
}

// Handler exposes the quote endpoints.
type Handler struct {
	Svc  *Service
	Jobs Enqueuer
}

// Routes mounts the quote endpoints. idem wraps the version-creating route.
func (h *Handler) Routes(r chi.Router, idem func(http.Handler) http.Handler) {
	r.Post("/calculate", h.Calculate)
	r.Route("/{quoteID}", func(r chi.Router) {
		if idem != nil {
			r.With(idem).Post("/versions", h.CreateVersion)
		} else {
			r.Post("/versions", h.CreateVersion)
		}
		r.Get("/versions", h.ListVersions)
		r.Get("/versions/{version}", h.GetVersion)
		r.Post("/recalculate", h.Recalculate)
	})
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	res, err := h.Svc.Preview(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, res)
}

func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	consultantID, ok := common.ConsultantID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	v, err := h.Svc.CreateVersion(r.Context(), chi.URLParam(r, "quoteID"), consultantID, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+strconv.Itoa(v.Number))
	common.JSONData(w, http.StatusCreated, v)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	out, total, err := h.Svc.ListVersions(r.Context(), chi.URLParam(r, "quoteID"), perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONPage(w, out, common.Pagination{Page: page, PerPage: perPage, TotalItems: total})
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid version number", nil)
		return
	}
	v, err := h.Svc.GetVersion(r.Context(), chi.URLParam(r, "quoteID"), number)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, v)
}

// Recalculate checks that the quote exists and queues a recalculation.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "background jobs not configured", nil)
		return
	}
	quoteID := chi.URLParam(r, "quoteID")
	if _, _, err := h.Svc.ListVersions(r.Context(), quoteID, 1, 0); err != nil {
		common.WriteError(w, err)
		return
	}
	taskID, err := h.Jobs.EnqueueRecalculate(r.Context(), quoteID)
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to enqueue recalculation", nil)
		return
	}
	data := map[string]any{"quote_id": quoteID}
	if taskID == "" {
		data["already_queued"] = true
	} else {
		data["task_id"] = taskID
	}
	common.JSONData(w, http.StatusAccepted, data)
}
