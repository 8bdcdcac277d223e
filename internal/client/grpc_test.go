package client

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCheckGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("notifications", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis) //nolint:errcheck
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := CheckGRPCHealth(ctx, lis.Addr().String(), "notifications")
	if err != nil {
		t.Fatalf("CheckGRPCHealth() error = %v", err)
	}
	if got != "SERVING" {
		t.Errorf("status = %q, want SERVING", got)
	}

	if _, err := CheckGRPCHealth(ctx, lis.Addr().String(), "unknown"); err == nil {
		t.Error("expected error for unknown service")
	}
}
