package health

import (
	"context"
	"net/http"
	"time"

	httputil "geranium/pkg/http"
	"geranium/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readyTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Component reports runtime counters under Name in the readiness body.
type Component struct {
	Name     string
	Snapshot func() any
}

type HealthResponse struct {
	Status     string         `json:"status"`
	Store      string         `json:"store,omitempty"`
	Backend    string         `json:"backend,omitempty"`
	Components map[string]any `json:"components,omitempty"`
}

type HealthHandler struct {
	store      Pinger
	backend    string
	components []Component
	log        *logger.Logger
}

func NewHealthHandler(store Pinger, backend string, log *logger.Logger, components ...Component) *HealthHandler {
	return &HealthHandler{
		store:      store,
		backend:    backend,
		components: components,
		log:        log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Store: "ok", Backend: h.backend}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Store health check failed",
			"error", err,
			"backend", h.backend,
			"path", r.URL.Path,
		)
		resp.Status, resp.Store = "unavailable", "error"
		status = http.StatusServiceUnavailable
	}

	if len(h.components) > 0 {
		resp.Components = make(map[string]any, len(h.components))
		for _, c := range h.components {
			resp.Components[c.Name] = c.Snapshot()
		}
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/api/health", h.Health)
	router.GET("/ready", h.Ready)
}
