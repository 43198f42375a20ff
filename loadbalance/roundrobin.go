package loadbalance

import (
	"sync/atomic"

	"mini-rpc/message"
)

// RoundRobin distributes requests evenly across candidates in arrival
// order, via a monotonic counter shared across calls. Lock-free: the
// counter is advanced with a single atomic add.
type RoundRobin struct {
	counter int64
}

func (b *RoundRobin) Select(_ RequestContext, candidates []message.ServiceMetaInfo) (*message.ServiceMetaInfo, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	index := atomic.AddInt64(&b.counter, 1) - 1
	index %= int64(len(candidates))
	return &candidates[index], nil
}

func (b *RoundRobin) Name() string { return "roundRobin" }
