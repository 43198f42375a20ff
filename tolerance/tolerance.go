// Package tolerance provides the terminal fallback invoked once a retry
// strategy exhausts: fail-fast (propagate), fail-safe (degrade silently),
// fail-over (try another candidate), and fail-back (queue for later async
// retry).
package tolerance

import (
	"fmt"

	"mini-rpc/message"
)

// Context carries everything a tolerance strategy might need beyond the
// triggering error: the original request (for fail-back's queue), the
// service key it targeted, the candidates the load balancer did not pick
// (for fail-over), and a callback that attempts the call against one
// specific candidate (also for fail-over).
type Context struct {
	Request             *message.RpcRequest
	ServiceKey          string
	RemainingCandidates []message.ServiceMetaInfo
	Attempt             func(candidate message.ServiceMetaInfo) (*message.RpcResponse, error)
}

// Strategy is invoked when retries exhaust (or immediately, if the retry
// strategy is None and the single attempt failed).
type Strategy interface {
	Do(ctx Context, cause error) (*message.RpcResponse, error)
	Name() string
}

// FailFast is the reference default: propagate cause to the caller.
type FailFast struct{}

func (s *FailFast) Do(_ Context, cause error) (*message.RpcResponse, error) { return nil, cause }
func (s *FailFast) Name() string                                           { return "failFast" }

// FailSafe swallows cause and returns a response with absent data and a
// message indicating degraded success.
type FailSafe struct{}

func (s *FailSafe) Do(_ Context, cause error) (*message.RpcResponse, error) {
	return &message.RpcResponse{Message: fmt.Sprintf("degraded: call failed: %v", cause)}, nil
}
func (s *FailSafe) Name() string { return "failSafe" }

// FailOver tries the next remaining candidate, recursing through the rest
// of the list until one succeeds or the list is exhausted — at which point
// it reports the most recent failure.
type FailOver struct{}

func (s *FailOver) Do(ctx Context, cause error) (*message.RpcResponse, error) {
	if len(ctx.RemainingCandidates) == 0 || ctx.Attempt == nil {
		return nil, cause
	}
	next := ctx.RemainingCandidates[0]
	resp, err := ctx.Attempt(next)
	if err == nil {
		return resp, nil
	}
	return s.Do(Context{
		Request:             ctx.Request,
		ServiceKey:          ctx.ServiceKey,
		RemainingCandidates: ctx.RemainingCandidates[1:],
		Attempt:             ctx.Attempt,
	}, err)
}

func (s *FailOver) Name() string { return "failOver" }
