package test

import (
	"testing"
	"time"

	"mini-rpc/client"
	"mini-rpc/codec"
	"mini-rpc/loadbalance"
	"mini-rpc/message"
	"mini-rpc/retry"
	"mini-rpc/server"
	"mini-rpc/tolerance"
)

func setupServerAndClient(b *testing.B, addr, port string) (*server.Server, *client.Proxy) {
	b.Helper()
	svr := server.NewServer()
	if err := svr.Expose(&Arith{}, ""); err != nil {
		b.Fatal(err)
	}
	go svr.Serve("tcp", addr, "", 0, nil)
	time.Sleep(100 * time.Millisecond)

	reg := newMockRegistry()
	if err := reg.Register(message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: mustAtoi(b, port)}); err != nil {
		b.Fatal(err)
	}

	p := client.NewProxy(reg, &loadbalance.RoundRobin{}, &retry.None{}, &tolerance.FailFast{}, codec.IDJSON)
	return svr, p
}

func mustAtoi(b *testing.B, s string) int {
	b.Helper()
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			b.Fatalf("not a port number: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// BenchmarkSerialCall exercises the full discover→select→transport→
// dispatch pipeline from a single goroutine, one call at a time.
func BenchmarkSerialCall(b *testing.B) {
	svr, p := setupServerAndClient(b, ":29090", "29090")
	b.Cleanup(func() {
		p.Close()
		svr.Shutdown(3 * time.Second)
	})

	args := &Args{A: 1, B: 2}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Invoke("Arith", "Add", []string{"Args"}, []any{args}, ""); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCall drives many goroutines against one Proxy,
// exercising the multiplexed ClientTransport's pending-request map under
// concurrent load rather than a fresh connection per call.
func BenchmarkConcurrentCall(b *testing.B) {
	svr, p := setupServerAndClient(b, ":29091", "29091")
	b.Cleanup(func() {
		p.Close()
		svr.Shutdown(3 * time.Second)
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		args := &Args{A: 1, B: 2}
		for pb.Next() {
			if _, err := p.Invoke("Arith", "Add", []string{"Args"}, []any{args}, ""); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkCodecJSON measures the JSON serializer alone, off the wire.
func BenchmarkCodecJSON(b *testing.B) {
	c, err := codec.ByID(codec.IDJSON)
	if err != nil {
		b.Fatal(err)
	}
	req := &message.RpcRequest{
		ServiceName: "Arith",
		MethodName:  "Add",
		Args:        []any{&Args{A: 1, B: 2}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := c.Encode(req)
		if err != nil {
			b.Fatal(err)
		}
		var out message.RpcRequest
		if err := c.Decode(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCodecKryo measures the protowire-based compact binary
// serializer alone, off the wire.
func BenchmarkCodecKryo(b *testing.B) {
	c, err := codec.ByID(codec.IDKryo)
	if err != nil {
		b.Fatal(err)
	}
	req := &message.RpcRequest{
		ServiceName: "Arith",
		MethodName:  "Add",
		Args:        []any{&Args{A: 1, B: 2}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := c.Encode(req)
		if err != nil {
			b.Fatal(err)
		}
		var out message.RpcRequest
		if err := c.Decode(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}
