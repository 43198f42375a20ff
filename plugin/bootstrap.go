package plugin

import (
	"github.com/go-redis/redis/v8"

	"mini-rpc/codec"
	"mini-rpc/loadbalance"
	"mini-rpc/registry"
	"mini-rpc/retry"
	"mini-rpc/tolerance"
)

// Interface names for the five pluggable concerns the loader backs. These
// are the strings configuration uses to pick a key's implementation.
const (
	InterfaceSerializer       = "serializer"
	InterfaceLoadBalancer     = "loadBalancer"
	InterfaceRetryStrategy    = "retryStrategy"
	InterfaceTolerantStrategy = "tolerantStrategy"
	InterfaceRegistry         = "registry"
)

// RegisterDefaults registers the framework's built-in implementations under
// their configuration-surface names and seeds each interface's class table
// with the identity mapping (key == impl name), so a caller who never
// drops a descriptor file still gets working defaults. redisClient may be
// nil; the failBack tolerance strategy is then unavailable until one is
// registered separately.
func RegisterDefaults(l *Loader, redisClient *redis.Client) {
	l.Register("jdk", func() (any, error) { return codec.ByName(codec.NameJDK) })
	l.Register("json", func() (any, error) { return codec.ByName(codec.NameJSON) })
	l.Register("kryo", func() (any, error) { return codec.ByName(codec.NameKryo) })
	l.Register("hessian", func() (any, error) { return codec.ByName(codec.NameHessian) })
	l.Seed(InterfaceSerializer, map[string]string{
		"jdk": "jdk", "json": "json", "kryo": "kryo", "hessian": "hessian",
	})

	l.Register("roundRobin", func() (any, error) { return &loadbalance.RoundRobin{}, nil })
	l.Register("random", func() (any, error) { return &loadbalance.Random{}, nil })
	l.Register("consistentHash", func() (any, error) { return &loadbalance.ConsistentHash{}, nil })
	l.Seed(InterfaceLoadBalancer, map[string]string{
		"roundRobin": "roundRobin", "random": "random", "consistentHash": "consistentHash",
	})

	l.Register("no", func() (any, error) { return &retry.None{}, nil })
	l.Register("fixedInterval", func() (any, error) { return &retry.FixedInterval{}, nil })
	l.Seed(InterfaceRetryStrategy, map[string]string{
		"no": "no", "fixedInterval": "fixedInterval",
	})

	l.Register("failFast", func() (any, error) { return &tolerance.FailFast{}, nil })
	l.Register("failSafe", func() (any, error) { return &tolerance.FailSafe{}, nil })
	l.Register("failOver", func() (any, error) { return &tolerance.FailOver{}, nil })
	if redisClient != nil {
		l.Register("failBack", func() (any, error) { return tolerance.NewFailBack(redisClient), nil })
	}
	l.Seed(InterfaceTolerantStrategy, map[string]string{
		"failFast": "failFast", "failSafe": "failSafe", "failOver": "failOver", "failBack": "failBack",
	})

	l.Register("etcd", func() (any, error) { return registry.NewEtcd(), nil })
	l.Register("consul", func() (any, error) { return registry.NewConsul(), nil })
	l.Seed(InterfaceRegistry, map[string]string{
		"etcd": "etcd", "consul": "consul",
	})
}
