package server

import (
	"context"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// HealthServiceName is the service name whose status tracks chain integrity.
// The empty service name reports process liveness only.
const HealthServiceName = "confidenceledger.Ledger"

// IntegrityHealth reports ledger integrity through the standard gRPC health
// service so orchestrators can probe it without an HTTP client.
type IntegrityHealth struct {
	srv *health.Server
}

// NewIntegrityHealth returns a health reporter. The ledger service starts
// NOT_SERVING until the first audit is observed.
func NewIntegrityHealth() *IntegrityHealth {
	srv := health.NewServer()
	srv.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &IntegrityHealth{srv: srv}
}

// Observe sets the ledger service status from an audit. It has the signature
// of sweep.AuditRecordFunc.
func (h *IntegrityHealth) Observe(r *chain.AuditReport) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if !r.Passed() {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(HealthServiceName, st)
}

// Check answers a health probe in-process.
func (h *IntegrityHealth) Check(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Shutdown marks every service NOT_SERVING so in-flight probes fail over.
func (h *IntegrityHealth) Shutdown() { h.srv.Shutdown() }

// NewGRPCServer builds a gRPC server exposing the health service and
// reflection (for grpcurl).
func NewGRPCServer(h *IntegrityHealth, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	grpc_health_v1.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
	return s
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
