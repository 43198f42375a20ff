package message

import "testing"

func TestServiceMetaInfoKeys(t *testing.T) {
	m := ServiceMetaInfo{ServiceName: "Arith", ServiceHost: "127.0.0.1", ServicePort: 8121}
	m.Normalize()

	if got, want := m.ServiceVersion, "1.0"; got != want {
		t.Fatalf("ServiceVersion default = %q, want %q", got, want)
	}
	if got, want := m.ServiceGroup, "default"; got != want {
		t.Fatalf("ServiceGroup default = %q, want %q", got, want)
	}
	if got, want := m.ServiceKey(), "Arith:1.0"; got != want {
		t.Fatalf("ServiceKey() = %q, want %q", got, want)
	}
	if got, want := m.ServiceNodeKey(), "Arith:1.0/127.0.0.1:8121"; got != want {
		t.Fatalf("ServiceNodeKey() = %q, want %q", got, want)
	}
}

func TestServiceMetaInfoExplicitVersion(t *testing.T) {
	m := ServiceMetaInfo{ServiceName: "Arith", ServiceVersion: "2.0", ServiceHost: "h", ServicePort: 1}
	if got, want := m.ServiceKey(), "Arith:2.0"; got != want {
		t.Fatalf("ServiceKey() = %q, want %q", got, want)
	}
}
