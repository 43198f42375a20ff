package loadbalance

import (
	"math/rand"

	"mini-rpc/message"
)

// Random selects uniformly at random over the candidate set; it carries
// no notion of per-candidate weight.
type Random struct{}

func (b *Random) Select(_ RequestContext, candidates []message.ServiceMetaInfo) (*message.ServiceMetaInfo, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[rand.Intn(len(candidates))], nil
}

func (b *Random) Name() string { return "random" }
