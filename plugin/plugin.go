// Package plugin is the framework's single extension point: a
// named-implementation registry (SPI-style) resolving serializers, load
// balancers, registries, retry strategies, and tolerance strategies by a
// configuration string. Shaped after a factory-by-id codec switch,
// generalized here to an arbitrary number of interfaces instead of one
// hardcoded to codecs.
package plugin

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mini-rpc/errs"
)

// Constructor builds one instance of a named implementation. Go has no
// reflective fully-qualified-class loading, so a descriptor's right-hand
// side names a constructor registered ahead of time via Register, rather
// than a class to instantiate dynamically.
type Constructor func() (any, error)

// Loader maps (interface, key) to a lazily constructed, cached singleton.
// The class table (iface -> key -> impl name) is populated by Load from
// descriptor files; the constructor table is populated by Register calls
// made at startup, before any Load.
type Loader struct {
	log *zap.Logger

	mu           sync.RWMutex
	constructors map[string]Constructor

	classMu sync.RWMutex
	classes map[string]map[string]string // iface -> key -> impl name

	instMu    sync.RWMutex
	instances map[string]any // iface + "/" + key -> instance
}

func NewLoader() *Loader {
	return &Loader{
		log:          zap.NewNop(),
		constructors: make(map[string]Constructor),
		classes:      make(map[string]map[string]string),
		instances:    make(map[string]any),
	}
}

func (l *Loader) SetLogger(log *zap.Logger) { l.log = log }

// Register makes a constructor available under implName for later
// resolution by descriptor files. Registering the same name twice
// overwrites the earlier constructor; callers own ordering.
func (l *Loader) Register(implName string, ctor Constructor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.constructors[implName] = ctor
}

// Load reads the descriptor file named iface from systemDir, then from
// customDir if present, merging them — a key present in both resolves to
// customDir's implementation ("later writes win", per the two-scan-root
// rule). Either directory may be empty or absent; a missing file is not an
// error, an unreadable one is.
func (l *Loader) Load(iface, systemDir, customDir string) error {
	merged := make(map[string]string)
	l.classMu.RLock()
	for k, v := range l.classes[iface] {
		merged[k] = v
	}
	l.classMu.RUnlock()

	for _, dir := range []string{systemDir, customDir} {
		if dir == "" {
			continue
		}
		entries, err := parseDescriptor(filepath.Join(dir, iface), l.log)
		if err != nil {
			return err
		}
		for k, v := range entries {
			merged[k] = v
		}
	}

	l.classMu.Lock()
	defer l.classMu.Unlock()
	l.classes[iface] = merged
	return nil
}

// Seed pre-populates iface's class table with defaults, before any Load
// call. A later Load still overlays system/custom descriptor files on top,
// so a seeded default remains overridable by a descriptor file entry.
func (l *Loader) Seed(iface string, defaults map[string]string) {
	l.classMu.Lock()
	defer l.classMu.Unlock()
	existing := l.classes[iface]
	if existing == nil {
		existing = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		existing[k] = v
	}
	l.classes[iface] = existing
}

// GetInstance returns the singleton backing (iface, key), constructing it
// on first use. Subsequent calls for the same pair return the identical
// object reference.
func (l *Loader) GetInstance(iface, key string) (any, error) {
	cacheKey := iface + "/" + key

	l.instMu.RLock()
	if inst, ok := l.instances[cacheKey]; ok {
		l.instMu.RUnlock()
		return inst, nil
	}
	l.instMu.RUnlock()

	l.classMu.RLock()
	byKey, ok := l.classes[iface]
	var implName string
	if ok {
		implName, ok = byKey[key]
	}
	l.classMu.RUnlock()
	if !ok {
		return nil, &errs.PluginNotFound{Interface: iface, Key: key}
	}

	l.mu.RLock()
	ctor, ok := l.constructors[implName]
	l.mu.RUnlock()
	if !ok {
		return nil, &errs.PluginNotFound{Interface: iface, Key: key}
	}

	l.instMu.Lock()
	defer l.instMu.Unlock()
	if inst, ok := l.instances[cacheKey]; ok {
		return inst, nil
	}
	inst, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("plugin: constructing %s for %s/%s: %w", implName, iface, key, err)
	}
	l.instances[cacheKey] = inst
	return inst, nil
}

// parseDescriptor reads a classpath-equivalent descriptor file: one
// key=impl entry per line. Blank lines and "#" comment lines are skipped
// silently; malformed lines (no "=", or an empty key/value) are skipped
// with a logged warning rather than failing
// the whole load, matching the reference loader's tolerance for a messy
// descriptor file. A missing file yields an empty map, not an error.
func parseDescriptor(path string, log *zap.Logger) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx <= 0 || idx == len(line)-1 {
			log.Warn("malformed plugin descriptor line, skipping",
				zap.String("path", path), zap.Int("line", lineNo))
			continue
		}
		key := strings.TrimSpace(line[:idx])
		impl := strings.TrimSpace(line[idx+1:])
		if key == "" || impl == "" {
			log.Warn("malformed plugin descriptor line, skipping",
				zap.String("path", path), zap.Int("line", lineNo))
			continue
		}
		entries[key] = impl
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
