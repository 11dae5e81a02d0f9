package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

type staticLinks struct {
	mu    sync.Mutex
	links []domain.LinkStatus
}

func (s *staticLinks) Links() []domain.LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LinkStatus(nil), s.links...)
}

func (s *staticLinks) set(l []domain.LinkStatus) {
	s.mu.Lock()
	s.links = l
	s.mu.Unlock()
}

func check(t *testing.T, h *HealthReporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthReporter_Refresh(t *testing.T) {
	links := &staticLinks{links: []domain.LinkStatus{
		{Iface: "wlan0", Role: domain.RoleStation},
		{Iface: "ap0", Role: domain.RoleAP, Linked: true},
	}}
	srv, h := NewGrpcServer(links, nil)
	defer srv.Stop()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, "wlcoord.link.wlan0"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, "wlcoord.link.ap0"))

	links.set([]domain.LinkStatus{
		{Iface: "wlan0", Role: domain.RoleStation, Linked: true},
		{Iface: "ap0", Role: domain.RoleAP, Linked: true, Stopped: true},
	})
	h.Refresh()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, "wlcoord.link.wlan0"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, "wlcoord.link.ap0"))
}

func TestHealthReporter_UnknownService(t *testing.T) {
	srv, h := NewGrpcServer(&staticLinks{}, nil)
	defer srv.Stop()

	_, err := h.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: "wlcoord.link.nope"})
	assert.Error(t, err)
}

func TestHealthReporter_OverTheWire(t *testing.T) {
	links := &staticLinks{links: []domain.LinkStatus{{Iface: "ap0", Role: domain.RoleAP, Linked: true}}}
	srv, h := NewGrpcServer(links, nil)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, 10*time.Millisecond)

	conn, err := ggrpc.NewClient("passthrough:///bufnet",
		ggrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		ggrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "wlcoord.link.ap0"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	links.set([]domain.LinkStatus{{Iface: "ap0", Role: domain.RoleAP}})
	assert.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "wlcoord.link.ap0"})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}
