package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Broker is satisfied by *amqp091.Connection.
type Broker interface {
	IsClosed() bool
}

type HealthHandler struct {
	DB       Pinger
	RabbitMQ Broker
	// Integrations maps an external service name to whether it is configured.
	Integrations map[string]bool
	Version      string
	StartTime    time.Time
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(db Pinger, rabbitMQ Broker, integrations map[string]bool) *HealthHandler {
	return &HealthHandler{
		DB:           db,
		RabbitMQ:     rabbitMQ,
		Integrations: integrations,
		Version:      "1.0.0",
		StartTime:    time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string)
	degraded := false

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.DB.PingContext(ctx)
		cancel()
		if err != nil {
			deps["database"] = fmt.Sprintf("unhealthy: %v", err)
			degraded = true
		} else {
			deps["database"] = "healthy"
		}
	} else {
		deps["database"] = "not configured"
	}

	if h.RabbitMQ != nil {
		if h.RabbitMQ.IsClosed() {
			deps["rabbitmq"] = "unhealthy: connection closed"
			degraded = true
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	names := make([]string, 0, len(h.Integrations))
	for name := range h.Integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if h.Integrations[name] {
			deps[name] = "configured"
		} else {
			deps[name] = "not configured"
		}
	}

	resp := HealthResponse{
		Status:       "healthy",
		Version:      h.Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	}
	status := http.StatusOK
	if degraded {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
