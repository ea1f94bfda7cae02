package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayusman/sosfinder/internal/alert"
	"github.com/ayusman/sosfinder/internal/store"
)

// testDispatchTimeout bounds POST /api/channels/{id}/test.
const testDispatchTimeout = 15 * time.Second

// ChannelRuntime is the part of the app the channel API drives.
type ChannelRuntime interface {
	// ReloadChannels rebuilds the live dispatchers from the store.
	ReloadChannels() error
	// AlertDeps returns what channels need to be built.
	AlertDeps() alert.Deps
}

// ChannelHandler handles HTTP requests for alert channel resources.
type ChannelHandler struct {
	store   *store.Store
	runtime ChannelRuntime
	logger  *slog.Logger
}

// NewChannelHandler creates a new ChannelHandler. runtime may be nil, in
// which case changes only take effect after a restart.
func NewChannelHandler(s *store.Store, runtime ChannelRuntime, logger *slog.Logger) *ChannelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelHandler{store: s, runtime: runtime, logger: logger}
}

// Routes returns the channel routes, to be mounted at /api/channels.
func (h *ChannelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/kinds", h.kinds)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/test", h.test)
	return r
}

// Request and response types

type createChannelRequest struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Config  json.RawMessage `json:"config"`
	Enabled *bool           `json:"enabled"`
}

type updateChannelRequest struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Config  json.RawMessage `json:"config"`
	Enabled *bool           `json:"enabled"`
}

type channelResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config"`
	Enabled   bool            `json:"enabled"`
	CreatedAt string          `json:"created_at"`
}

type listChannelsResponse struct {
	Channels []channelResponse `json:"channels"`
}

type testChannelResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// toChannelResponse converts a store.Channel to a channelResponse.
func toChannelResponse(c *store.Channel) channelResponse {
	config := c.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return channelResponse{
		ID:        c.ID,
		Name:      c.Name,
		Kind:      c.Kind,
		Config:    config,
		Enabled:   c.Enabled,
		CreatedAt: c.CreatedAt.Format(timeFormat),
	}
}

// list handles GET /api/channels and returns all channels.
func (h *ChannelHandler) list(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.Channels().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list channels")
		return
	}

	response := listChannelsResponse{
		Channels: make([]channelResponse, 0, len(channels)),
	}
	for _, c := range channels {
		response.Channels = append(response.Channels, toChannelResponse(c))
	}

	writeJSON(w, http.StatusOK, response)
}

// kinds handles GET /api/channels/kinds.
func (h *ChannelHandler) kinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"kinds": alert.Kinds()})
}

// get handles GET /api/channels/{id} and returns a single channel.
func (h *ChannelHandler) get(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponse(ch))
}

// create handles POST /api/channels and creates a new channel.
func (h *ChannelHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	config := req.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	ch := &store.Channel{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Kind:    req.Kind,
		Config:  config,
		Enabled: true,
	}
	if req.Enabled != nil {
		ch.Enabled = *req.Enabled
	}

	if err := h.validate(ch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Channels().Create(ch); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "Channel name already in use")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create channel")
		return
	}

	h.reload()
	writeJSON(w, http.StatusCreated, toChannelResponse(ch))
}

// update handles PUT /api/channels/{id} and updates an existing channel.
func (h *ChannelHandler) update(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req updateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Update fields if provided
	if req.Name != "" {
		ch.Name = req.Name
	}
	if req.Kind != "" {
		ch.Kind = req.Kind
	}
	if req.Config != nil {
		ch.Config = req.Config
	}
	if req.Enabled != nil {
		ch.Enabled = *req.Enabled
	}

	if err := h.validate(ch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Channels().Update(ch); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Channel not found")
		case isUniqueViolation(err):
			writeError(w, http.StatusConflict, "Channel name already in use")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update channel")
		}
		return
	}

	h.reload()
	writeJSON(w, http.StatusOK, toChannelResponse(ch))
}

// delete handles DELETE /api/channels/{id} and removes a channel.
func (h *ChannelHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Channels().Delete(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete channel")
		return
	}

	h.reload()
	w.WriteHeader(http.StatusNoContent)
}

// test handles POST /api/channels/{id}/test by sending a test alert on the
// channel, whether or not it is enabled.
func (h *ChannelHandler) test(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.load(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	d, err := alert.Build(ch, h.deps())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer alert.CloseAll([]alert.Dispatcher{d})

	ctx, cancel := context.WithTimeout(r.Context(), testDispatchTimeout)
	defer cancel()

	a := alert.Alert{
		ID:          uuid.New().String(),
		TriggeredAt: time.Now(),
		Message:     "sosfinder test alert",
	}
	if err := d.Dispatch(ctx, a); err != nil {
		h.logger.Warn("test alert failed", "channel", ch.Name, "error", err)
		writeJSON(w, http.StatusBadGateway, testChannelResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, testChannelResponse{Success: true})
}

func (h *ChannelHandler) load(w http.ResponseWriter, id string) (*store.Channel, bool) {
	ch, err := h.store.Channels().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get channel")
		return nil, false
	}
	return ch, true
}

// validate builds the channel once so bad kinds and configs are rejected
// before they reach the store.
func (h *ChannelHandler) validate(ch *store.Channel) error {
	d, err := alert.Build(ch, h.deps())
	if err != nil {
		return err
	}
	alert.CloseAll([]alert.Dispatcher{d})
	return nil
}

func (h *ChannelHandler) deps() alert.Deps {
	if h.runtime != nil {
		return h.runtime.AlertDeps()
	}
	return alert.Deps{Logger: h.logger}
}

func (h *ChannelHandler) reload() {
	if h.runtime == nil {
		return
	}
	if err := h.runtime.ReloadChannels(); err != nil {
		h.logger.Error("failed to reload alert channels", "error", err)
	}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
