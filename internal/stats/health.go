package stats

import (
	json "github.com/goccy/go-json"
	"net/http"
	"sync"
	"time"
)

// ComponentHealth is one named subsystem's last-reported status.
type ComponentHealth struct {
	Healthy bool
	Message string
	Updated time.Time
}

// HealthStatus is the JSON shape returned by the health/readiness/liveness
// endpoints (spec.md §4.10 healthCheck()).
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// HealthChecker tracks the health of every component of one database
// instance. Instance-owned (spec.md §9), never a package-global.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	startTime  time.Time
	version    string
	nowFn      func() time.Time
}

// NewHealthChecker constructs a checker. critical names the components
// that must be healthy for readiness to report "ready". nowFn is
// overridable for tests; nil uses time.Now.
func NewHealthChecker(version string, critical []string, nowFn func() time.Time) *HealthChecker {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		critical:   critical,
		startTime:  nowFn(),
		version:    version,
		nowFn:      nowFn,
	}
}

// RegisterComponent records (or updates) one component's health.
func (h *HealthChecker) RegisterComponent(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{Healthy: healthy, Message: message, Updated: h.nowFn()}
}

// Health reports overall status: "healthy" unless any registered
// component is unhealthy, in which case "unhealthy".
func (h *HealthChecker) Health() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string, len(h.components))
	for name, c := range h.components {
		if c.Healthy {
			components[name] = "healthy"
			continue
		}
		status = "unhealthy"
		components[name] = "unhealthy: " + c.Message
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  h.nowFn(),
		Components: components,
		Version:    h.version,
		Uptime:     h.nowFn().Sub(h.startTime).String(),
	}
}

// Readiness reports "ready" only once every configured critical component
// has been registered and reports healthy.
func (h *HealthChecker) Readiness() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string, len(h.critical))
	for _, name := range h.critical {
		c, ok := h.components[name]
		switch {
		case !ok:
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !c.Healthy:
			status = "not_ready"
			message = "waiting for " + name
			components[name] = "not ready: " + c.Message
		default:
			components[name] = "ready"
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  h.nowFn(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     h.nowFn().Sub(h.startTime).String(),
	}
}

// HealthHandler serves /health.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Health()
		w.Header().Set("Content-Type", "application/json")
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// ReadyHandler serves /ready.
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Readiness()
		w.Header().Set("Content-Type", "application/json")
		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// LivenessHandler serves /live: a bare process-is-running check.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": h.nowFn().Sub(h.startTime).String(),
		})
	}
}
