package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mini-rpc/errs"
	"mini-rpc/message"
)

// Etcd implements RemoteRegistry against etcd v3, the reference backing
// store. Registration uses a 30s TTL lease; a crashed provider's node
// disappears on its own once the lease expires, instead of requiring
// manual cleanup. Discover installs a watch on every observed node and
// invalidates the entire local cache on any change to any of them.
type Etcd struct {
	client  *clientv3.Client
	cache   *discoveryCache
	tracked *trackedNodes
	log     *zap.Logger

	leaseMu sync.Mutex
	leases  map[string]clientv3.LeaseID // nodeKey -> lease currently backing it

	stopHeartbeat chan struct{}
}

// NewEtcd returns an Etcd registry with a nop logger; call SetLogger before
// Init to observe heartbeat/watch activity.
func NewEtcd() *Etcd {
	return &Etcd{
		cache:   newDiscoveryCache(),
		tracked: newTrackedNodes(),
		log:     zap.NewNop(),
		leases:  make(map[string]clientv3.LeaseID),
	}
}

// SetLogger overrides the nop default.
func (r *Etcd) SetLogger(l *zap.Logger) { r.log = l }

func (r *Etcd) Init(cfg Config) error {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	endpoints := splitAddresses(cfg.Address)
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return &errs.RegistryError{Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := client.Status(ctx, endpoints[0]); err != nil {
		client.Close()
		return &errs.RegistryError{Err: err}
	}
	r.client = client
	r.stopHeartbeat = make(chan struct{})
	go r.heartbeatLoop()
	return nil
}

func (r *Etcd) heartbeatLoop() {
	ticker := time.NewTicker(HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Heartbeat()
		case <-r.stopHeartbeat:
			return
		}
	}
}

func (r *Etcd) Register(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	nodeKey := meta.ServiceNodeKey()
	path := RootPrefix + nodeKey

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lease, err := r.client.Grant(ctx, int64(LeaseTTL.Seconds()))
	if err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}

	val, err := json.Marshal(meta)
	if err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}

	if _, err := r.client.Put(ctx, path, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}

	r.leaseMu.Lock()
	r.leases[nodeKey] = lease.ID
	r.leaseMu.Unlock()
	r.tracked.add(nodeKey, meta)

	r.log.Debug("registered service node", zap.String("nodeKey", nodeKey))
	return nil
}

func (r *Etcd) Unregister(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	nodeKey := meta.ServiceNodeKey()
	path := RootPrefix + nodeKey

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.client.Delete(ctx, path); err != nil {
		return &errs.RegistryError{Key: nodeKey, Err: err}
	}

	r.leaseMu.Lock()
	delete(r.leases, nodeKey)
	r.leaseMu.Unlock()
	r.tracked.remove(nodeKey)
	return nil
}

func (r *Etcd) Discover(serviceKey string) ([]message.ServiceMetaInfo, error) {
	if cached, ok := r.cache.get(serviceKey); ok {
		return cached, nil
	}

	prefix := RootPrefix + serviceKey + "/"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, &errs.RegistryError{Key: prefix, Err: err}
	}

	instances := make([]message.ServiceMetaInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var meta message.ServiceMetaInfo
		if err := json.Unmarshal(kv.Value, &meta); err != nil {
			r.log.Warn("skipping malformed registry node", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, meta)
	}

	r.cache.set(serviceKey, instances)
	go r.watch(prefix, serviceKey)
	return instances, nil
}

// watch installs a watch on the service's key prefix and invalidates the
// entire cache on any change, per the reference design's "recompute on any
// event rather than reconcile individual keys" tradeoff.
func (r *Etcd) watch(prefix, serviceKey string) {
	watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
	for resp := range watchChan {
		if resp.Err() != nil {
			return
		}
		if len(resp.Events) > 0 {
			r.cache.invalidateAll()
			r.log.Debug("invalidated discovery cache", zap.String("serviceKey", serviceKey))
		}
	}
}

// Heartbeat re-registers every locally tracked node that is still present
// in the store, re-Putting it under a fresh lease (KeepAlive never runs in
// this design; re-registration stands in for lease renewal). A node whose
// lease has already expired server-side is missing from the store and is
// skipped, not resurrected.
func (r *Etcd) Heartbeat() {
	for nodeKey, meta := range r.tracked.snapshot() {
		path := RootPrefix + nodeKey
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		resp, err := r.client.Get(ctx, path)
		if err != nil {
			cancel()
			r.log.Warn("heartbeat: get failed", zap.String("nodeKey", nodeKey), zap.Error(err))
			continue
		}
		if len(resp.Kvs) == 0 {
			// Missing from the store: treat as already expired, don't resurrect.
			cancel()
			continue
		}

		lease, err := r.client.Grant(ctx, int64(LeaseTTL.Seconds()))
		if err != nil {
			cancel()
			r.log.Warn("heartbeat: grant failed", zap.String("nodeKey", nodeKey), zap.Error(err))
			continue
		}
		val, _ := json.Marshal(meta)
		if _, err := r.client.Put(ctx, path, string(val), clientv3.WithLease(lease.ID)); err != nil {
			r.log.Warn("heartbeat: put failed", zap.String("nodeKey", nodeKey), zap.Error(err))
		}
		cancel()
	}
}

func (r *Etcd) Destroy() error {
	if r.stopHeartbeat != nil {
		close(r.stopHeartbeat)
	}

	var errAgg error
	for nodeKey, meta := range r.tracked.snapshot() {
		if err := r.Unregister(meta); err != nil {
			errAgg = multierr.Append(errAgg, &errs.RegistryError{Key: nodeKey, Err: err})
		}
	}
	if r.client != nil {
		errAgg = multierr.Append(errAgg, r.client.Close())
	}
	return errAgg
}

func splitAddresses(address string) []string {
	if address == "" {
		return []string{"localhost:2379"}
	}
	var out []string
	start := 0
	for i := 0; i <= len(address); i++ {
		if i == len(address) || address[i] == ',' {
			if i > start {
				out = append(out, address[start:i])
			}
			start = i + 1
		}
	}
	return out
}
