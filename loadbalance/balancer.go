// Package loadbalance selects one endpoint from a discovered candidate set
// for each call: round-robin, uniform random, and consistent hashing are
// provided.
package loadbalance

import "mini-rpc/message"

// RequestContext is an open property bag describing the call being
// balanced. Implementations may read well-known keys such as MethodName;
// unrecognized keys are ignored.
type RequestContext map[string]string

// MethodName is the conventional key consistent-hash balancing reads to
// compute a request hash.
func (c RequestContext) MethodName() string { return c["methodName"] }

// Balancer selects one instance from the available list. Select must be
// goroutine-safe: the client calls it once per RPC, potentially
// concurrently across many in-flight calls.
type Balancer interface {
	// Select returns nil, nil when candidates is empty — callers
	// translate that into a NoEndpoints failure.
	Select(ctx RequestContext, candidates []message.ServiceMetaInfo) (*message.ServiceMetaInfo, error)

	// Name returns the strategy name used in configuration and logging.
	Name() string
}
