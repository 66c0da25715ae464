package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const testService = "quickroll.roll.v1.RollService"

type healthServer struct {
	addr   string
	health *health.Server
}

// startHealthServer registers testService and then forces it to status.
func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) healthServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcServer := gogrpc.NewServer()
	hs := RegisterHealth(grpcServer, testService)
	hs.SetServingStatus(testService, status)

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(listener) }()
	t.Cleanup(func() {
		grpcServer.GracefulStop()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	})
	return healthServer{addr: listener.Addr().String(), health: hs}
}

func TestWaitForHealth(t *testing.T) {
	tests := []struct {
		name    string
		initial grpc_health_v1.HealthCheckResponse_ServingStatus
		service string
		flipTo  bool
		wantErr bool
	}{
		{name: "server level serving", initial: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: ""},
		{name: "named service serving", initial: grpc_health_v1.HealthCheckResponse_SERVING, service: testService},
		{name: "named service becomes serving", initial: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: testService, flipTo: true},
		{name: "named service never serves", initial: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: testService, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := startHealthServer(t, tt.initial)
			conn, err := gogrpc.NewClient(hs.addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				t.Fatalf("dial health server: %v", err)
			}
			defer conn.Close()

			if tt.flipTo {
				go func() {
					time.Sleep(200 * time.Millisecond)
					hs.health.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_SERVING)
				}()
			}

			timeout := 2 * time.Second
			if tt.wantErr {
				timeout = 300 * time.Millisecond
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			err = WaitForHealth(ctx, conn, tt.service, nil)
			if tt.wantErr != (err != nil) {
				t.Fatalf("WaitForHealth err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaitForHealthWithoutConnection(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}
