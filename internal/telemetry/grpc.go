package telemetry

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServerOptions logs every finished call. Health probes are logged only when they fail.
func GRPCServerOptions(l *slog.Logger) []grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithLevels(logging.DefaultServerCodeToLevel),
	}

	logger := grpcLogger(l)
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(skipHealth(logging.UnaryServerInterceptor(logger, opts...))),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor(logger, opts...)),
	}
}

func skipHealth(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == grpc_health_v1.Health_Check_FullMethodName {
			resp, err := handler(ctx, req)
			if err != nil {
				slog.WarnContext(ctx, "grpc: health check failed", "error", err)
			}
			return resp, err
		}
		return next(ctx, req, info, handler)
	}
}

func grpcLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}
