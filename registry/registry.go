// Package registry implements the remote service registry: registration
// with lease-based expiry, discovery backed by a local cache, watch-driven
// cache invalidation, and periodic heartbeat renewal.
//
// Two backing stores are provided: Etcd (the reference implementation) and
// Consul (an alternate backing store, whose native TTL-checked service
// catalog makes Heartbeat a thin pass-through rather than a
// re-registration).
package registry

import (
	"time"

	"mini-rpc/message"
)

// LeaseTTL is the fixed lease/session TTL a registered node is bound to.
const LeaseTTL = 30 * time.Second

// HeartbeatPeriod is how often a RemoteRegistry's Heartbeat is invoked to
// keep locally tracked nodes alive.
const HeartbeatPeriod = 10 * time.Second

// RootPrefix is the registry key space root; node paths are
// "{RootPrefix}{ServiceNodeKey}".
const RootPrefix = "/rpc/"

// Config configures a RemoteRegistry session.
type Config struct {
	Address string        // coordination endpoint(s), comma-separated
	Timeout time.Duration // connect timeout; implementation-defined default when zero
}

// RemoteRegistry is the contract every backing store must honor: ephemeral
// registration bound to a lease, prefix discovery with a local cache,
// per-key change notification that invalidates the cache, and periodic
// heartbeat renewal of locally tracked nodes.
type RemoteRegistry interface {
	// Init establishes a session to the backing store.
	Init(cfg Config) error

	// Register creates an ephemeral node for meta, bound to a lease with
	// LeaseTTL, and records its node key locally for renewal/teardown.
	Register(meta message.ServiceMetaInfo) error

	// Unregister deletes meta's node and drops the locally tracked key.
	Unregister(meta message.ServiceMetaInfo) error

	// Discover returns the live ServiceMetaInfo list under the given
	// service key, consulting (and populating) the local cache.
	Discover(serviceKey string) ([]message.ServiceMetaInfo, error)

	// Heartbeat re-registers every locally tracked node still present in
	// the store; a node already missing is considered expired and is
	// skipped rather than resurrected.
	Heartbeat()

	// Destroy deletes all locally tracked nodes and closes the session.
	Destroy() error
}
