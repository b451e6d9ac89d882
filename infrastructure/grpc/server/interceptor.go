package server

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// StreamLoggingInterceptor logs every finished stream with its duration and code.
func StreamLoggingInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		log.Info("gRPC stream finished",
			"method", info.FullMethod,
			"duration", time.Since(start),
			"code", status.Code(err).String())
		return err
	}
}
