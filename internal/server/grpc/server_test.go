package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/subext/pkg/errorbank"
)

func TestUnaryInterceptorMapsAppErrors(t *testing.T) {
	interceptor := UnaryInterceptor(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/subext.Test/Call"}

	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "ok", err: nil, code: codes.OK},
		{name: "unsupported", err: errorbank.UnsupportedAction("Update action is not supported"), code: codes.Unimplemented},
		{name: "timeout", err: errorbank.Timeout("Failed to process order: context deadline exceeded"), code: codes.DeadlineExceeded},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "no"), code: codes.PermissionDenied},
		{name: "plain error", err: errors.New("boom"), code: codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
				return nil, tt.err
			})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestNewServerRegistersHealth(t *testing.T) {
	server, healthSrv := NewServer(zap.NewNop())
	defer server.Stop()

	_, ok := server.GetServiceInfo()[healthpb.Health_ServiceDesc.ServiceName]
	assert.True(t, ok)

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	resp, err := healthSrv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	assert.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
