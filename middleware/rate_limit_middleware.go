package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"mini-rpc/message"
)

// RateLimitMiddleware enforces a token-bucket limit (tokens refill at r per
// second, up to burst) shared across every request it wraps. The limiter is
// created once in the outer closure — constructing it per-request would
// hand every request a fresh full bucket and defeat the limit entirely.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			if !limiter.Allow() {
				return &message.RpcResponse{
					Message: "rejected",
					Exception: &message.ExceptionInfo{
						Type:    "RateLimitExceeded",
						Message: fmt.Sprintf("rate limit exceeded for %s.%s", req.ServiceName, req.MethodName),
					},
				}
			}
			return next(ctx, req)
		}
	}
}
