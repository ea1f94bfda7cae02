package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/sosfinder/internal/debounce"
)

// DebounceSettings reads and persists the debounce policy.
type DebounceSettings interface {
	// DebounceConfig returns the effective policy. When stored overrides
	// are unusable it returns the base policy alongside the error.
	DebounceConfig() (debounce.Config, error)
	UpdateDebounceConfig(debounce.Config) error
}

// SettingsHandler serves the debounce settings. Changes apply at the next
// session start.
type SettingsHandler struct {
	settings DebounceSettings
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(s DebounceSettings) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

// Routes returns the settings routes, to be mounted at /api/settings.
func (h *SettingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.get)
	r.Put("/", h.update)
	return r
}

type settingsResponse struct {
	Threshold int    `json:"threshold"`
	Window    string `json:"window"`
	WindowMs  int64  `json:"window_ms"`
}

type updateSettingsRequest struct {
	Threshold *int    `json:"threshold"`
	Window    *string `json:"window"`
}

func toSettingsResponse(dc debounce.Config) settingsResponse {
	return settingsResponse{
		Threshold: dc.Threshold,
		Window:    dc.Window.String(),
		WindowMs:  dc.Window.Milliseconds(),
	}
}

// get handles GET /api/settings.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	dc, err := h.settings.DebounceConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(dc))
}

// update handles PUT /api/settings. Omitted fields keep their value.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Unusable stored overrides leave dc at the base policy.
	dc, _ := h.settings.DebounceConfig()

	if req.Threshold != nil {
		dc.Threshold = *req.Threshold
	}
	if req.Window != nil {
		d, err := time.ParseDuration(*req.Window)
		if err != nil {
			writeError(w, http.StatusBadRequest, "window must be a duration such as 1s or 750ms")
			return
		}
		dc.Window = d
	}

	if err := dc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.UpdateDebounceConfig(dc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(dc))
}
