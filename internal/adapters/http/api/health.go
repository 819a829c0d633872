package api

import (
	"net/http"
	"time"
)

// RootMessage is the fixed payload of GET /.
const RootMessage = "Customer Churn Prediction API is running."

// RootHandler handles GET / requests.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot returns the fixed liveness message.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

type artifactStatus struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Path      string    `json:"path"`
}

type healthResponse struct {
	Status      string         `json:"status"`
	Transformer artifactStatus `json:"transformer"`
	Model       artifactStatus `json:"model"`
}

// HealthHandler handles readiness requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz: 200 with artifact IDs once ready,
// 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.deps.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	t, m := h.deps.Artifacts()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Transformer: artifactStatus{ID: t.ID.String(), CreatedAt: t.CreatedAt, Path: t.Path},
		Model:       artifactStatus{ID: m.ID.String(), CreatedAt: m.CreatedAt, Path: m.Path},
	})
}
