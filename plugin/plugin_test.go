package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"mini-rpc/errs"
)

type fakeBalancer struct{ name string }

func TestLoadAndGetInstanceReturnsSameSingleton(t *testing.T) {
	l := NewLoader()
	l.Register("fake.A", func() (any, error) { return &fakeBalancer{name: "A"}, nil })
	l.Seed("loadBalancer", map[string]string{"a": "fake.A"})

	first, err := l.GetInstance("loadBalancer", "a")
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.GetInstance("loadBalancer", "a")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected GetInstance to return the identical cached instance")
	}
}

func TestGetInstanceUnknownKeyFails(t *testing.T) {
	l := NewLoader()
	l.Seed("loadBalancer", map[string]string{"a": "fake.A"})
	_, err := l.GetInstance("loadBalancer", "nonexistent")
	var notFound *errs.PluginNotFound
	if !asPluginNotFound(err, &notFound) {
		t.Fatalf("expected PluginNotFound, got %v", err)
	}
}

func TestGetInstanceUnknownInterfaceFails(t *testing.T) {
	l := NewLoader()
	_, err := l.GetInstance("noSuchInterface", "a")
	var notFound *errs.PluginNotFound
	if !asPluginNotFound(err, &notFound) {
		t.Fatalf("expected PluginNotFound, got %v", err)
	}
}

func TestLoadDescriptorFilesCustomOverridesSystem(t *testing.T) {
	dir := t.TempDir()
	systemDir := filepath.Join(dir, "system")
	customDir := filepath.Join(dir, "custom")
	if err := os.MkdirAll(systemDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(customDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(systemDir, "loadBalancer"), []byte("a=fake.System\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(customDir, "loadBalancer"), []byte("a=fake.Custom\n\n# comment\nmalformed-line\nb=fake.B\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader()
	l.Register("fake.System", func() (any, error) { return &fakeBalancer{name: "system"}, nil })
	l.Register("fake.Custom", func() (any, error) { return &fakeBalancer{name: "custom"}, nil })
	l.Register("fake.B", func() (any, error) { return &fakeBalancer{name: "b"}, nil })

	if err := l.Load("loadBalancer", systemDir, customDir); err != nil {
		t.Fatal(err)
	}

	inst, err := l.GetInstance("loadBalancer", "a")
	if err != nil {
		t.Fatal(err)
	}
	if inst.(*fakeBalancer).name != "custom" {
		t.Fatalf("expected custom descriptor to win over system, got %v", inst)
	}

	if _, err := l.GetInstance("loadBalancer", "b"); err != nil {
		t.Fatalf("expected key b to load from custom descriptor: %v", err)
	}
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	l := NewLoader()
	if err := l.Load("loadBalancer", "/nonexistent/system", "/nonexistent/custom"); err != nil {
		t.Fatalf("missing descriptor files should not error: %v", err)
	}
}

func asPluginNotFound(err error, target **errs.PluginNotFound) bool {
	pnf, ok := err.(*errs.PluginNotFound)
	if ok {
		*target = pnf
	}
	return ok
}
