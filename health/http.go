package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves a checker's result over HTTP for probe endpoints. Healthy
// and degraded map to 200, unhealthy to 503.
type Handler struct {
	checker Checker
}

// NewHandler creates an HTTP handler for the checker.
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// httpResult is the wire form of a Result.
type httpResult struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Server    string    `json:"server,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Latency   string    `json:"latency"`
	Timestamp time.Time `json:"timestamp"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result := h.checker.Check(r.Context())

	out := httpResult{
		Name:      h.checker.Name(),
		Status:    result.Status.String(),
		Server:    result.Server,
		Message:   result.Message,
		Latency:   result.Latency.String(),
		Timestamp: result.Timestamp,
	}
	if result.Error != nil {
		out.Error = result.Error.Error()
	}

	code := http.StatusOK
	if result.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(out)
}
