// Package grpc serves the standard gRPC health protocol with one service
// entry per link adapter.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// ServicePrefix is prepended to an interface name to form its health
// service name, e.g. "wlcoord.link.wlan0".
const ServicePrefix = "wlcoord.link."

// DefaultRefresh is how often link health is re-evaluated.
const DefaultRefresh = time.Second

// LinkLister supplies the current link snapshots.
type LinkLister interface {
	Links() []domain.LinkStatus
}

// HealthReporter mirrors link state into a gRPC health server. A link is
// SERVING while it carries a link, NOT_SERVING otherwise; the overall
// service ("") turns NOT_SERVING once any link's event queue has stopped.
type HealthReporter struct {
	links  LinkLister
	health *health.Server
	logger *slog.Logger
}

// NewGrpcServer creates a gRPC server with the health service registered.
func NewGrpcServer(links LinkLister, logger *slog.Logger) (*grpc.Server, *HealthReporter) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthReporter{
		links:  links,
		health: health.NewServer(),
		logger: logger.With("component", "grpc-health"),
	}
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h.health)
	h.Refresh()
	return s, h
}

// Health returns the underlying health server.
func (h *HealthReporter) Health() healthpb.HealthServer {
	return h.health
}

// Refresh re-evaluates every link once.
func (h *HealthReporter) Refresh() {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, l := range h.links.Links() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if l.Linked && !l.Stopped {
			status = healthpb.HealthCheckResponse_SERVING
		}
		if l.Stopped {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.health.SetServingStatus(ServicePrefix+l.Iface, status)
	}
	h.health.SetServingStatus("", overall)
}

// Run refreshes on every tick until ctx ends, then marks everything
// NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultRefresh
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			h.logger.Debug("health reporter stopped")
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}
