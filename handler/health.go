package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/response"
)

// TokenState is implemented by *baokim.TokenManager.
type TokenState interface {
	Info() baokim.TokenInfo
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	tokens      TokenState
	journal     Pinger
	environment string
	version     string
	startTime   time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Token       TokenHealth               `json:"token"`
	Services    map[string]*ServiceHealth `json:"services"`
	GoRoutines  int                       `json:"goroutines"`
}

// TokenHealth is the token manager state without the token itself.
type TokenHealth struct {
	HasToken         bool       `json:"has_token"`
	IsValid          bool       `json:"is_valid"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewHealthHandler creates a new health handler. journal may be nil when
// the journal is disabled.
func NewHealthHandler(tokens TokenState, journal Pinger, environment, version string) *HealthHandler {
	return &HealthHandler{
		tokens:      tokens,
		journal:     journal,
		environment: environment,
		version:     version,
		startTime:   time.Now(),
	}
}

// CheckHealth handles GET /health. A missing or expired token does not make
// the service unhealthy: it is fetched on the next gateway call.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:      "healthy",
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: h.environment,
		Token:       h.tokenHealth(),
		Services:    map[string]*ServiceHealth{},
		GoRoutines:  runtime.NumGoroutine(),
	}

	if h.journal != nil {
		svc := checkService(ctx, h.journal)
		health.Services["journal"] = svc
		if !svc.Healthy {
			health.Status = "unhealthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func (h *HealthHandler) tokenHealth() TokenHealth {
	if h.tokens == nil {
		return TokenHealth{}
	}
	info := h.tokens.Info()
	th := TokenHealth{
		HasToken:         info.HasToken,
		IsValid:          info.IsValid,
		RemainingSeconds: info.RemainingSeconds,
	}
	if info.HasToken {
		expires := info.ExpiresAt
		th.ExpiresAt = &expires
	}
	return th
}

func checkService(ctx context.Context, p Pinger) *ServiceHealth {
	start := time.Now()
	err := p.Ping(ctx)
	svc := &ServiceHealth{ResponseTime: time.Since(start).String()}
	if err != nil {
		svc.Status = "unhealthy"
		svc.Error = err.Error()
		return svc
	}
	svc.Status = "healthy"
	svc.Healthy = true
	return svc
}
