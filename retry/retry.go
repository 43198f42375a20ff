// Package retry wraps a unit of work — the client's call — and re-invokes
// it under a policy. A strategy re-runs whatever Call it is given; the
// client's Call runs discovery and load-balancer selection before the
// transport call, so each attempt re-discovers (from the registry's cache)
// and may pick a different endpoint.
package retry

import (
	"time"

	"mini-rpc/errs"
	"mini-rpc/message"
)

// Call is one attempt at the transport call being retried. Each attempt
// must re-enter this function fresh — no attempt may reuse state left over
// from a prior one.
type Call func() (*message.RpcResponse, error)

// Strategy re-invokes Call under a policy, raising RetryExhausted when
// every attempt has failed.
type Strategy interface {
	Do(call Call) (*message.RpcResponse, error)
	Name() string
}

// None makes a single attempt and passes through whatever it returns.
type None struct{}

func (s *None) Do(call Call) (*message.RpcResponse, error) { return call() }
func (s *None) Name() string                               { return "no" }

// FixedInterval retries up to 3 times total, waiting 3 seconds between
// attempts, retrying on any error.
type FixedInterval struct {
	MaxAttempts int           // defaults to 3 when zero
	Wait        time.Duration // defaults to 3s when zero
}

func (s *FixedInterval) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 3
}

func (s *FixedInterval) wait() time.Duration {
	if s.Wait > 0 {
		return s.Wait
	}
	return 3 * time.Second
}

func (s *FixedInterval) Do(call Call) (*message.RpcResponse, error) {
	var lastErr error
	attempts := s.maxAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.wait())
		}
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, &errs.RetryExhausted{Attempts: attempts, Cause: lastErr}
}

func (s *FixedInterval) Name() string { return "fixedInterval" }
