package middleware

import (
	"context"
	"time"

	"mini-rpc/message"
)

// TimeOutMiddleware enforces a maximum duration for dispatching one
// request, independent of the client's own per-call timeout — this bounds
// how long the provider itself will wait on a slow handler before giving
// up on the response, not how long the consumer waits on the wire.
//
// The handler goroutine is not cancelled when the timeout fires; it keeps
// running in the background. A handler that must react to cancellation
// has to check ctx.Done() itself.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.RpcResponse, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return &message.RpcResponse{
					Message: "dispatch timed out",
					Exception: &message.ExceptionInfo{
						Type:    "DispatchTimeout",
						Message: "handler did not complete within the configured timeout",
					},
				}
			}
		}
	}
}
