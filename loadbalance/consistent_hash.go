package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"mini-rpc/message"
)

// virtualNodesPerCandidate is how many points each real candidate gets on
// the ring, so a handful of candidates still spread roughly uniformly
// instead of clustering.
const virtualNodesPerCandidate = 100

// ConsistentHash maps a request hash to an endpoint via a hash ring built
// from the current candidate set. A naive implementation would rebuild
// the ring on every call; this one caches it keyed by a fingerprint of the
// candidate set, so a stable candidate set reuses the ring across
// calls, and the ring is trivially rebuilt whenever Discover returns a
// different set of addresses.
type ConsistentHash struct {
	mu          sync.Mutex
	fingerprint string
	ring        []uint32
	nodes       map[uint32]message.ServiceMetaInfo
}

func (b *ConsistentHash) Name() string { return "consistentHash" }

func (b *ConsistentHash) Select(ctx RequestContext, candidates []message.ServiceMetaInfo) (*message.ServiceMetaInfo, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ring, nodes := b.ringFor(candidates)

	hash := crc32.ChecksumIEEE([]byte(requestKey(ctx)))
	idx := sort.Search(len(ring), func(i int) bool { return ring[i] >= hash })
	if idx == len(ring) {
		// Wrap around: a hash larger than every ring entry maps to the
		// smallest entry, preserving the ring property.
		idx = 0
	}

	node := nodes[ring[idx]]
	return &node, nil
}

// ringFor returns the hash ring for candidates, rebuilding it only when
// the candidate set's fingerprint has changed since the last call.
func (b *ConsistentHash) ringFor(candidates []message.ServiceMetaInfo) ([]uint32, map[uint32]message.ServiceMetaInfo) {
	fp := fingerprint(candidates)

	b.mu.Lock()
	defer b.mu.Unlock()
	if fp == b.fingerprint && b.ring != nil {
		return b.ring, b.nodes
	}

	ring := make([]uint32, 0, len(candidates)*virtualNodesPerCandidate)
	nodes := make(map[uint32]message.ServiceMetaInfo, len(candidates)*virtualNodesPerCandidate)
	for _, c := range candidates {
		addr := fmt.Sprintf("%s:%d", c.ServiceHost, c.ServicePort)
		for i := 0; i < virtualNodesPerCandidate; i++ {
			key := fmt.Sprintf("%s#%d", addr, i)
			h := crc32.ChecksumIEEE([]byte(key))
			ring = append(ring, h)
			nodes[h] = c
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i] < ring[j] })

	b.fingerprint, b.ring, b.nodes = fp, ring, nodes
	return ring, nodes
}

func fingerprint(candidates []message.ServiceMetaInfo) string {
	s := ""
	for _, c := range candidates {
		s += fmt.Sprintf("%s:%d,", c.ServiceHost, c.ServicePort)
	}
	return s
}

// requestKey derives the string hashed to pick a ring position. Absent any
// request-specific field, the method name keeps calls to the same method
// affine to the same endpoint; callers wanting per-argument affinity can
// set a "key" entry in RequestContext.
func requestKey(ctx RequestContext) string {
	if ctx == nil {
		return ""
	}
	if k, ok := ctx["key"]; ok {
		return k
	}
	return ctx.MethodName()
}
