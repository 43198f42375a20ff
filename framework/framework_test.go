package framework

import (
	"testing"
	"time"

	"mini-rpc/config"
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

// TestServiceNameOfDerivesStructName confirms ProxyFor/Expose callers can
// always compute the same service key server.newService would register
// under, without duplicating the struct name as a string literal.
func TestServiceNameOfDerivesStructName(t *testing.T) {
	if got := ServiceNameOf(&Arith{}); got != "Arith" {
		t.Fatalf("expected %q, got %q", "Arith", got)
	}
}

// TestEnableExposeServeProxy exercises the full Enable → Expose → Serve →
// ProxyFor → Invoke path end to end against a live etcd instance, mirroring
// the registry package's own etcd-gated tests. Requires `etcd` running
// locally on localhost:2379.
func TestEnableExposeServeProxy(t *testing.T) {
	cfg := config.Default()
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 19200
	cfg.Serializer = "json" // the jdk/gob codec requires gob.Register for custom arg types
	cfg.RegistryConfig.Address = "localhost:2379"
	cfg.RegistryConfig.TimeoutMS = 2000

	provider := New()
	if err := provider.Enable(cfg, "", ""); err != nil {
		t.Skipf("etcd not reachable, skipping: %v", err)
	}
	if err := provider.Expose(&Arith{}, ""); err != nil {
		t.Fatal(err)
	}
	go provider.Serve()
	defer provider.Shutdown(3 * time.Second)
	time.Sleep(150 * time.Millisecond)

	consumer := New()
	if err := consumer.Enable(cfg, "", ""); err != nil {
		t.Fatalf("consumer enable failed after provider succeeded: %v", err)
	}
	defer consumer.Shutdown(time.Second)

	proxy, err := consumer.ProxyFor(ServiceNameOf(&Arith{}), "")
	if err != nil {
		t.Fatal(err)
	}
	data, err := proxy.Invoke("Arith", "Add", []string{"Args"}, []any{&Args{A: 2, B: 3}}, "")
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", data)
	}
	if reply["Result"].(float64) != 5 {
		t.Fatalf("expected Result=5, got %+v", reply)
	}
}
