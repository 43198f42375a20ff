package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-rpc/message"
)

// LoggingMiddleware records the service/method, duration, and any exception
// for each dispatched request via a structured zap logger. log is allowed
// to be nil, in which case a no-op logger is used.
func LoggingMiddleware(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("service", req.ServiceName),
				zap.String("method", req.MethodName),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Exception != nil {
				fields = append(fields, zap.String("exceptionType", resp.Exception.Type),
					zap.String("exceptionMessage", resp.Exception.Message))
				log.Warn("rpc call failed", fields...)
			} else {
				log.Debug("rpc call completed", fields...)
			}
			return resp
		}
	}
}
