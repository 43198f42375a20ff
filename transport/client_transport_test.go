package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"mini-rpc/codec"
	"mini-rpc/message"
	"mini-rpc/server"
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

// TestClientTransportSerial sends three requests one after another over a
// single multiplexed connection.
func TestClientTransportSerial(t *testing.T) {
	svr := server.NewServer()
	if err := svr.Expose(&Arith{}, ""); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":19010", "", 0, nil)
	time.Sleep(100 * time.Millisecond)

	ct, err := Dial(":19010", codec.IDJSON, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer ct.Close()

	cases := []struct{ a, b, expect int }{
		{1, 2, 3},
		{10, 20, 30},
		{100, 200, 300},
	}
	for _, tc := range cases {
		resp, err := ct.Call(context.Background(), &message.RpcRequest{
			ServiceName: "Arith",
			MethodName:  "Add",
			Args:        []any{&Args{A: tc.a, B: tc.b}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Exception != nil {
			t.Fatalf("server error: %+v", resp.Exception)
		}
		reply, ok := resp.Data.(map[string]any)
		if !ok {
			t.Fatalf("expected map[string]any, got %T", resp.Data)
		}
		if int(reply["Result"].(float64)) != tc.expect {
			t.Fatalf("expect %d, got %v", tc.expect, reply["Result"])
		}
	}
}

// TestClientTransportConcurrent is the multiplexing stress test: many
// goroutines share one ClientTransport (one socket), each call correlated
// back to the right goroutine purely by requestId.
func TestClientTransportConcurrent(t *testing.T) {
	svr := server.NewServer()
	if err := svr.Expose(&Arith{}, ""); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":19011", "", 0, nil)
	time.Sleep(100 * time.Millisecond)

	ct, err := Dial(":19011", codec.IDJSON, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer ct.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp, err := ct.Call(context.Background(), &message.RpcRequest{
				ServiceName: "Arith",
				MethodName:  "Add",
				Args:        []any{&Args{A: n, B: n}},
			})
			if err != nil {
				t.Errorf("call failed: %v", err)
				return
			}
			if resp.Exception != nil {
				t.Errorf("server error: %+v", resp.Exception)
				return
			}
			reply, ok := resp.Data.(map[string]any)
			if !ok {
				t.Errorf("expected map[string]any, got %T", resp.Data)
				return
			}
			if int(reply["Result"].(float64)) != n*2 {
				t.Errorf("expect %d, got %v", n*2, reply["Result"])
			}
		}(i)
	}
	wg.Wait()
}
