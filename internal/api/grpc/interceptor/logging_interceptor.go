package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"plotwaitlist-backend/internal/logger"
)

// UnaryLogging logs every unary call with its status code and turns handler
// panics into codes.Internal.
func UnaryLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Debug("gRPC call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
		}()
		return handler(ctx, req)
	}
}
