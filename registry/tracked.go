package registry

import (
	"sync"

	"mini-rpc/message"
)

// trackedNodes is the concurrent-readable set of node keys a registry
// instance has registered locally, used by Heartbeat and Destroy to know
// what to renew or tear down.
type trackedNodes struct {
	mu    sync.RWMutex
	nodes map[string]message.ServiceMetaInfo // nodeKey -> meta
}

func newTrackedNodes() *trackedNodes {
	return &trackedNodes{nodes: make(map[string]message.ServiceMetaInfo)}
}

func (t *trackedNodes) add(nodeKey string, meta message.ServiceMetaInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[nodeKey] = meta
}

func (t *trackedNodes) remove(nodeKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, nodeKey)
}

func (t *trackedNodes) snapshot() map[string]message.ServiceMetaInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]message.ServiceMetaInfo, len(t.nodes))
	for k, v := range t.nodes {
		out[k] = v
	}
	return out
}
