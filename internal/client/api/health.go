package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Prober reports whether the backend is reachable right now.
type Prober interface {
	Ping(ctx context.Context) error
}

// HealthProber asks the backend's gRPC health service whether it is serving.
type HealthProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	timeout time.Duration
	service string
}

var _ Prober = (*HealthProber)(nil)

// NewHealthProber does not dial eagerly; the connection is established on the
// first Ping.
func NewHealthProber(addr string, timeout time.Duration) (*HealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create health client: %w", err)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthProber{conn: conn, client: healthpb.NewHealthClient(conn), timeout: timeout}, nil
}

func (p *HealthProber) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return mapHealthError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *HealthProber) Close() error {
	return p.conn.Close()
}

func mapHealthError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	}
}
