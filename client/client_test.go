package client

import (
	"testing"
	"time"

	"mini-rpc/codec"
	"mini-rpc/loadbalance"
	"mini-rpc/message"
	"mini-rpc/registry"
	"mini-rpc/retry"
	"mini-rpc/server"
	"mini-rpc/tolerance"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

// mockRegistry is an in-memory RemoteRegistry stand-in, avoiding any
// dependency on a live etcd/consul for these tests.
type mockRegistry struct {
	instances map[string][]message.ServiceMetaInfo
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{instances: make(map[string][]message.ServiceMetaInfo)}
}

func (m *mockRegistry) Init(registry.Config) error { return nil }

func (m *mockRegistry) Register(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	m.instances[meta.ServiceKey()] = append(m.instances[meta.ServiceKey()], meta)
	return nil
}

func (m *mockRegistry) Unregister(meta message.ServiceMetaInfo) error {
	meta.Normalize()
	key := meta.ServiceKey()
	list := m.instances[key]
	for i, c := range list {
		if c.ServiceHost == meta.ServiceHost && c.ServicePort == meta.ServicePort {
			m.instances[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRegistry) Discover(serviceKey string) ([]message.ServiceMetaInfo, error) {
	return m.instances[serviceKey], nil
}

func (m *mockRegistry) Heartbeat()     {}
func (m *mockRegistry) Destroy() error { return nil }

func startArithServer(t *testing.T, addr string) {
	t.Helper()
	svr := server.NewServer()
	if err := svr.Expose(&Arith{}, ""); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", addr, "", 0, nil)
	time.Sleep(100 * time.Millisecond)
}

func TestProxyInvokeSingleInstance(t *testing.T) {
	startArithServer(t, ":19080")

	reg := newMockRegistry()
	reg.Register(message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 19080})

	p := NewProxy(reg, &loadbalance.RoundRobin{}, &retry.None{}, &tolerance.FailFast{}, codec.IDJSON)
	defer p.Close()

	data, err := p.Invoke("Arith", "Add", []string{"Args"}, []any{&Args{A: 1, B: 2}}, "")
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any reply, got %T: %+v", data, data)
	}
	if reply["Result"].(float64) != 3 {
		t.Fatalf("expected Result=3, got %+v", reply)
	}
}

func TestProxyNoEndpointsFailsFast(t *testing.T) {
	reg := newMockRegistry()
	p := NewProxy(reg, &loadbalance.RoundRobin{}, &retry.None{}, &tolerance.FailFast{}, codec.IDJSON)
	defer p.Close()

	_, err := p.Invoke("NoSuchService", "Method", nil, nil, "")
	if err == nil {
		t.Fatal("expected an error when no endpoints are registered")
	}
}

func TestProxyFailSafeDegradesInsteadOfErroring(t *testing.T) {
	reg := newMockRegistry()
	reg.Register(message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 19999})

	p := NewProxy(reg, &loadbalance.RoundRobin{}, &retry.None{}, &tolerance.FailSafe{}, codec.IDJSON)
	defer p.Close()

	_, err := p.Invoke("Arith", "Add", nil, []any{&Args{A: 1, B: 1}}, "")
	if err != nil {
		t.Fatalf("expected failSafe to absorb the transport failure, got %v", err)
	}
}

func TestProxyRoundRobinAcrossTwoInstances(t *testing.T) {
	startArithServer(t, ":19081")
	startArithServer(t, ":19082")

	reg := newMockRegistry()
	reg.Register(message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 19081})
	reg.Register(message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 19082})

	p := NewProxy(reg, &loadbalance.RoundRobin{}, &retry.None{}, &tolerance.FailFast{}, codec.IDJSON)
	defer p.Close()

	for i := 0; i < 6; i++ {
		if _, err := p.Invoke("Arith", "Add", nil, []any{&Args{A: i, B: i}}, ""); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
}
