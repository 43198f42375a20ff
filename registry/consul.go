package registry

import (
	"fmt"
	"sync"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mini-rpc/errs"
	"mini-rpc/message"
)

// consulWatchTimeout bounds each blocking-query round trip; Consul's own
// server caps this at 10m regardless, but a shorter round trip means a
// closed stopWatch channel is noticed sooner.
const consulWatchTimeout = 5 * time.Minute

// Consul is an alternate RemoteRegistry backing store: Consul's
// agent-local TTL health check already provides ephemeral-on-process-death
// semantics natively, so Heartbeat here degenerates to a thin PassTTL call
// per tracked node rather than a full re-registration. Discover's
// cache-invalidation equivalent to etcd's watch is a blocking query against
// Health().Service with a rising WaitIndex: Consul holds the connection
// open and returns as soon as the index moves past what was last seen.
type Consul struct {
	client  *consulapi.Client
	cache   *discoveryCache
	tracked *trackedNodes
	log     *zap.Logger

	watchMu   sync.Mutex
	watching  map[string]bool // serviceKey -> watch goroutine already running
	stopWatch chan struct{}
}

func NewConsul() *Consul {
	return &Consul{
		cache:     newDiscoveryCache(),
		tracked:   newTrackedNodes(),
		log:       zap.NewNop(),
		watching:  make(map[string]bool),
		stopWatch: make(chan struct{}),
	}
}

func (r *Consul) SetLogger(l *zap.Logger) { r.log = l }

func (r *Consul) Init(cfg Config) error {
	conf := consulapi.DefaultConfig()
	if cfg.Address != "" {
		conf.Address = cfg.Address
	}
	client, err := consulapi.NewClient(conf)
	if err != nil {
		return &errs.RegistryError{Err: err}
	}
	r.client = client
	return nil
}

func checkID(nodeKey string) string { return "mini-rpc:" + nodeKey }

func (r *Consul) Register(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	nodeKey := meta.ServiceNodeKey()

	reg := &consulapi.AgentServiceRegistration{
		ID:      nodeKey,
		Name:    meta.ServiceKey(),
		Address: meta.ServiceHost,
		Port:    meta.ServicePort,
		Tags:    []string{meta.ServiceGroup, meta.ServiceVersion},
		Check: &consulapi.AgentServiceCheck{
			TTL:                            LeaseTTL.String(),
			DeregisterCriticalServiceAfter: (2 * LeaseTTL).String(),
		},
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}
	if err := r.client.Agent().PassTTL(checkID(nodeKey), "initial registration"); err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}
	r.tracked.add(nodeKey, meta)
	return nil
}

func (r *Consul) Unregister(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	nodeKey := meta.ServiceNodeKey()
	if err := r.client.Agent().ServiceDeregister(nodeKey); err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}
	r.tracked.remove(nodeKey)
	return nil
}

func (r *Consul) Discover(serviceKey string) ([]message.ServiceMetaInfo, error) {
	if cached, ok := r.cache.get(serviceKey); ok {
		return cached, nil
	}

	entries, _, err := r.client.Health().Service(serviceKey, "", true, &consulapi.QueryOptions{})
	if err != nil {
		return nil, &errs.RegistryError{Key: serviceKey, Err: err}
	}

	instances := make([]message.ServiceMetaInfo, 0, len(entries))
	for _, e := range entries {
		meta := message.ServiceMetaInfo{
			ServiceHost: e.Service.Address,
			ServicePort: e.Service.Port,
		}
		name, version, ok := splitServiceKey(serviceKey)
		if !ok {
			r.log.Warn("discover: unparseable service key", zap.String("serviceKey", serviceKey))
			continue
		}
		meta.ServiceName, meta.ServiceVersion = name, version
		if len(e.Service.Tags) > 0 {
			meta.ServiceGroup = e.Service.Tags[0]
		}
		meta.Normalize()
		instances = append(instances, meta)
	}

	r.cache.set(serviceKey, instances)
	r.ensureWatch(serviceKey)
	return instances, nil
}

// ensureWatch starts one watch goroutine per serviceKey, the first time
// that key is discovered. Re-discovering an already-watched key is a
// cache hit anyway, so there's never a reason for a second watch on it.
func (r *Consul) ensureWatch(serviceKey string) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.watching[serviceKey] {
		return
	}
	r.watching[serviceKey] = true
	go r.watch(serviceKey)
}

// watch runs a Consul blocking query against the service's health entries,
// using the returned QueryMeta.LastIndex as the next call's WaitIndex.
// Consul blocks the call until the index changes (or consulWatchTimeout
// elapses), so each iteration here is one "has anything changed" round
// trip rather than a poll loop. Any observed change invalidates the whole
// cache, mirroring the etcd backend's watch.
func (r *Consul) watch(serviceKey string) {
	var lastIndex uint64
	for {
		select {
		case <-r.stopWatch:
			return
		default:
		}

		opts := &consulapi.QueryOptions{WaitIndex: lastIndex, WaitTime: consulWatchTimeout}
		_, meta, err := r.client.Health().Service(serviceKey, "", true, opts)
		if err != nil {
			r.log.Warn("watch: blocking query failed", zap.String("serviceKey", serviceKey), zap.Error(err))
			select {
			case <-r.stopWatch:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if lastIndex != 0 && meta.LastIndex != lastIndex {
			r.cache.invalidateAll()
			r.log.Debug("invalidated discovery cache", zap.String("serviceKey", serviceKey))
		}
		lastIndex = meta.LastIndex
	}
}

func splitServiceKey(serviceKey string) (name, version string, ok bool) {
	for i := len(serviceKey) - 1; i >= 0; i-- {
		if serviceKey[i] == ':' {
			return serviceKey[:i], serviceKey[i+1:], true
		}
	}
	return "", "", false
}

// Heartbeat passes every tracked node's TTL check. Consul's own agent
// already deregisters a node whose check goes critical for too long, so
// there is no "missing from the store, skip" branch to implement here —
// PassTTL on an already-deregistered check simply errors, which is logged
// and ignored.
func (r *Consul) Heartbeat() {
	for nodeKey := range r.tracked.snapshot() {
		if err := r.client.Agent().PassTTL(checkID(nodeKey), "heartbeat"); err != nil {
			r.log.Warn("heartbeat: passTTL failed", zap.String("nodeKey", nodeKey), zap.Error(err))
		}
	}
}

func (r *Consul) Destroy() error {
	if r.stopWatch != nil {
		close(r.stopWatch)
	}
	var errAgg error
	for nodeKey, meta := range r.tracked.snapshot() {
		if err := r.Unregister(meta); err != nil {
			errAgg = multierr.Append(errAgg, fmt.Errorf("destroy %s: %w", nodeKey, err))
		}
	}
	return errAgg
}
