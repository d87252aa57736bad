package main

import (
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the gRPC health server
const HealthService = "winter3d.Round"

// HealthServer exposes the standard gRPC health protocol. A nil
// *HealthServer ignores all calls.
type HealthServer struct {
	srv    *grpc.Server
	status *health.Server
	lis    net.Listener
}

// StartHealth listens on addr and serves health checks in the background
func StartHealth(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	go func() {
		if err := s.Serve(lis); err != nil {
			log.Printf("health: gRPC serve: %v", err)
		}
	}()
	log.Printf("health: gRPC listening on %s", lis.Addr())
	return &HealthServer{srv: s, status: hs, lis: lis}, nil
}

// Addr is the address the server is listening on
func (h *HealthServer) Addr() string {
	return h.lis.Addr().String()
}

// SetServing reports whether the round loop is running
func (h *HealthServer) SetServing(serving bool) {
	if h == nil {
		return
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.status.SetServingStatus(HealthService, st)
	h.status.SetServingStatus("", st)
}

func (h *HealthServer) Stop() {
	if h == nil {
		return
	}
	h.status.Shutdown()
	h.srv.GracefulStop()
}
