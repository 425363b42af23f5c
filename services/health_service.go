package services

import (
	"context"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/rocketshoes-cart/cartstore"
)

// HealthCheckService implements gRPC health checking on top of the store.
type HealthCheckService struct {
	store cartstore.ICartStore
	log   logrus.FieldLogger
	healthpb.UnimplementedHealthServer
}

// NewHealthCheckService constructor
func NewHealthCheckService(store cartstore.ICartStore, log logrus.FieldLogger) *HealthCheckService {
	return &HealthCheckService{store: store, log: log.WithField("component", "services.health")}
}

// Check RPC: reports SERVING while the store answers pings.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if h.store.Ping(ctx) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	h.log.WithField("service", req.GetService()).Warn("store ping failed, reporting NOT_SERVING")
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}
