package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (*health.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return hs, lis.Addr().String()
}

func TestHealthProber_Serving(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	p, err := NewHealthProber(addr, time.Second)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Ping(context.Background()))
}

func TestHealthProber_NotServing(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	p, err := NewHealthProber(addr, time.Second)
	require.NoError(t, err)
	defer p.Close()

	require.ErrorIs(t, p.Ping(context.Background()), ErrUnavailable)
}

func TestHealthProber_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	p, err := NewHealthProber(addr, 200*time.Millisecond)
	require.NoError(t, err)
	defer p.Close()

	require.ErrorIs(t, p.Ping(context.Background()), ErrUnavailable)
}
