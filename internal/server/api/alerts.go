package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/sosfinder/internal/store"
)

// defaultAlertLimit is the page size when ?limit is absent.
const defaultAlertLimit = 50

// AlertHandler serves the alert history.
type AlertHandler struct {
	store *store.Store
}

// NewAlertHandler creates a new AlertHandler with the given store.
func NewAlertHandler(s *store.Store) *AlertHandler {
	return &AlertHandler{store: s}
}

// Routes returns the alert routes, to be mounted at /api/alerts.
func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	return r
}

type deliveryResponse struct {
	Channel   string `json:"channel"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

type alertResponse struct {
	ID          string             `json:"id"`
	TriggeredAt string             `json:"triggered_at"`
	Count       int                `json:"count"`
	Message     string             `json:"message"`
	Deliveries  []deliveryResponse `json:"deliveries"`
}

type listAlertsResponse struct {
	Alerts []alertResponse `json:"alerts"`
}

func toAlertResponse(a *store.AlertRecord) alertResponse {
	resp := alertResponse{
		ID:          a.ID,
		TriggeredAt: a.TriggeredAt.Format(timeFormat),
		Count:       a.Count,
		Message:     a.Message,
		Deliveries:  make([]deliveryResponse, 0, len(a.Deliveries)),
	}
	for _, d := range a.Deliveries {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			Channel:   d.Channel,
			Success:   d.Success,
			Error:     d.Error,
			CreatedAt: d.CreatedAt.Format(timeFormat),
		})
	}
	return resp
}

// list handles GET /api/alerts?limit=N, newest first.
func (h *AlertHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultAlertLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	alerts, err := h.store.Alerts().ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	response := listAlertsResponse{
		Alerts: make([]alertResponse, 0, len(alerts)),
	}
	for _, a := range alerts {
		response.Alerts = append(response.Alerts, toAlertResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/alerts/{id}.
func (h *AlertHandler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Alerts().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(a))
}
