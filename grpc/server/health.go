/*
Package server is the gRPC health service of the demo. The service is SERVING
when the issuer and the holder are connected, otherwise NOT_SERVING.
*/
package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name of the service which can be checked in addition to
// the server's overall status, the empty name.
const ServiceName = "findy-triangle"

type Health struct {
	port      int
	connected func() bool

	srv    *grpc.Server
	health *health.Server
}

// NewHealth creates the health server. The connected tells the status of the
// agent-to-agent connection.
func NewHealth(port int, connected func() bool) *Health {
	h := &Health{
		port:      port,
		connected: connected,
		srv:       grpc.NewServer(),
		health:    health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.Update()
	return h
}

// Update updates the serving status from the connection status.
func (h *Health) Update() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.connected() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	glog.V(4).Infoln("health status:", status)
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until Stop is called. If the server is already stopped it
// returns nil at once.
func (h *Health) Serve(lis net.Listener) error {
	glog.V(1).Infoln("gRPC health server on", lis.Addr())
	if err := h.srv.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *Health) ListenAndServe() (err error) {
	defer err2.Handle(&err, "grpc health")

	lis := try.To1(net.Listen("tcp", fmt.Sprintf(":%d", h.port)))
	return h.Serve(lis)
}

func (h *Health) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}
