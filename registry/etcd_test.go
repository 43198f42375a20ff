package registry

import (
	"testing"
	"time"

	"mini-rpc/message"
)

// TestEtcdRegisterAndDiscover exercises Register/Discover/Unregister
// against a live etcd instance on localhost:2379. Requires `etcd` running
// locally.
func TestEtcdRegisterAndDiscover(t *testing.T) {
	r := NewEtcd()
	if err := r.Init(Config{Address: "localhost:2379", Timeout: 2 * time.Second}); err != nil {
		t.Skipf("etcd not reachable, skipping: %v", err)
	}
	defer r.Destroy()

	inst1 := message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 8001}
	inst2 := message.ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 8002}

	if err := r.Register(inst1); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(inst2); err != nil {
		t.Fatal(err)
	}

	instances, err := r.Discover(inst1.ServiceKey())
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := r.Unregister(inst1); err != nil {
		t.Fatal(err)
	}

	// Unregister deletes the node directly; the watch-triggered
	// invalidation races the delete, so force a fresh query.
	r.cache.invalidateAll()
	instances, err = r.Discover(inst1.ServiceKey())
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance after unregister, got %d", len(instances))
	}
	if instances[0].ServicePort != inst2.ServicePort {
		t.Fatalf("expected remaining instance %v, got %v", inst2, instances[0])
	}

	r.Unregister(inst2)
}

func TestEtcdDiscoverUnknownServiceKeyReturnsEmpty(t *testing.T) {
	r := NewEtcd()
	if err := r.Init(Config{Address: "localhost:2379", Timeout: 2 * time.Second}); err != nil {
		t.Skipf("etcd not reachable, skipping: %v", err)
	}
	defer r.Destroy()

	instances, err := r.Discover("NoSuchService:1.0")
	if err != nil {
		t.Fatal(err)
	}
	if instances == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(instances) != 0 {
		t.Fatalf("expected empty list, got %d", len(instances))
	}
}
