// Package framework owns the process-wide state the reference
// implementation kept as ambient globals behind DI-container annotations:
// configuration, the plugin class table, the provider-side Server, and
// consumer-side Proxy instances. It replaces the three annotations
// (*enable*, *expose-as-service*, *inject-reference*) with three explicit
// calls — Enable, Expose, ProxyFor — each owned by one Framework value
// instead of package-level state, so a process embedding more than one
// instance (e.g. a test harness) never fights over a shared singleton.
package framework

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"mini-rpc/client"
	"mini-rpc/codec"
	"mini-rpc/config"
	"mini-rpc/loadbalance"
	"mini-rpc/message"
	"mini-rpc/plugin"
	"mini-rpc/registry"
	"mini-rpc/retry"
	"mini-rpc/server"
	"mini-rpc/tolerance"
)

// Framework is the owned handle a provider or consumer application builds
// once at startup. Its fields are lazily populated by Enable; Expose and
// ProxyFor both require a prior successful Enable.
type Framework struct {
	cfg      *config.Config
	loader   *plugin.Loader
	registry registry.RemoteRegistry
	server   *server.Server
	log      *zap.Logger

	mu       sync.Mutex
	proxies  map[string]*client.Proxy
	redisOpt *redis.Options
}

// New returns an unconfigured Framework; call Enable before Expose/ProxyFor.
func New() *Framework {
	return &Framework{
		proxies: make(map[string]*client.Proxy),
		log:     zap.NewNop(),
	}
}

func (f *Framework) SetLogger(log *zap.Logger) { f.log = log }

// RedisOptions configures the optional Redis-backed failBack tolerance
// strategy. Call before Enable; if never called, failBack is unavailable.
func (f *Framework) RedisOptions(opt *redis.Options) { f.redisOpt = opt }

// Enable loads the plugin class table (system/custom descriptor roots may
// be empty strings to rely solely on the built-in defaults), resolves and
// initializes the configured registry backend, and creates the
// provider-side Server. It does not listen for inbound calls; Serve does
// that, on ServerHost:ServerPort. cfg.Mock is not read. Mirrors the source's RpcApplication.init: resolve every pluggable
// concern from configuration once, up front.
func (f *Framework) Enable(cfg *config.Config, systemDescriptorDir, customDescriptorDir string) error {
	f.cfg = cfg
	f.loader = plugin.NewLoader()
	f.loader.SetLogger(f.log)

	var redisClient *redis.Client
	if f.redisOpt != nil {
		redisClient = redis.NewClient(f.redisOpt)
	}
	plugin.RegisterDefaults(f.loader, redisClient)

	if err := f.loader.Load(plugin.InterfaceSerializer, systemDescriptorDir, customDescriptorDir); err != nil {
		return err
	}
	if err := f.loader.Load(plugin.InterfaceLoadBalancer, systemDescriptorDir, customDescriptorDir); err != nil {
		return err
	}
	if err := f.loader.Load(plugin.InterfaceRetryStrategy, systemDescriptorDir, customDescriptorDir); err != nil {
		return err
	}
	if err := f.loader.Load(plugin.InterfaceTolerantStrategy, systemDescriptorDir, customDescriptorDir); err != nil {
		return err
	}
	if err := f.loader.Load(plugin.InterfaceRegistry, systemDescriptorDir, customDescriptorDir); err != nil {
		return err
	}

	regInstance, err := f.loader.GetInstance(plugin.InterfaceRegistry, cfg.RegistryConfig.Registry)
	if err != nil {
		return err
	}
	reg, ok := regInstance.(registry.RemoteRegistry)
	if !ok {
		return fmt.Errorf("framework: plugin %q does not implement registry.RemoteRegistry", cfg.RegistryConfig.Registry)
	}
	if err := reg.Init(registry.Config{
		Address: cfg.RegistryConfig.Address,
		Timeout: timeoutFromMS(cfg.RegistryConfig.TimeoutMS),
	}); err != nil {
		return err
	}
	f.registry = reg

	f.server = server.NewServer()
	f.server.SetLogger(f.log)
	return nil
}

// Expose registers impl (a pointer to a struct, per server.Expose's
// calling convention) under the framework's configured serviceVersion when
// version is empty, making it remotely callable once Serve starts.
func (f *Framework) Expose(impl any, version string) error {
	if version == "" {
		version = f.cfg.Version
	}
	return f.server.Expose(impl, version)
}

// Serve starts accepting inbound connections and registers every exposed
// service with the backing registry. Blocks until Shutdown is called
// elsewhere or a listener error occurs.
func (f *Framework) Serve() error {
	addr := fmt.Sprintf("%s:%d", f.cfg.ServerHost, f.cfg.ServerPort)
	return f.server.Serve("tcp", addr, f.cfg.ServerHost, f.cfg.ServerPort, f.registry)
}

// Shutdown stops the provider-side server (if started) and releases every
// consumer-side proxy's pooled connections.
func (f *Framework) Shutdown(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, p := range f.proxies {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if f.server != nil {
		if err := f.server.Shutdown(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ProxyFor returns a consumer-side proxy for serviceName/serviceVersion,
// resolving the configured load balancer, retry strategy, tolerance
// strategy and wire serializer through the plugin loader and caching one
// Proxy per (serviceName, serviceVersion) pair — mirroring the source's
// inject-reference annotation, which hands back one generated proxy
// instance per injected field.
func (f *Framework) ProxyFor(serviceName, serviceVersion string) (*client.Proxy, error) {
	if serviceVersion == "" {
		serviceVersion = f.cfg.Version
	}
	key := message.ServiceMetaInfo{ServiceName: serviceName, ServiceVersion: serviceVersion}.ServiceKey()

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.proxies[key]; ok {
		return p, nil
	}

	balInstance, err := f.loader.GetInstance(plugin.InterfaceLoadBalancer, f.cfg.LoadBalancer)
	if err != nil {
		return nil, err
	}
	bal, ok := balInstance.(loadbalance.Balancer)
	if !ok {
		return nil, fmt.Errorf("framework: plugin %q does not implement loadbalance.Balancer", f.cfg.LoadBalancer)
	}

	retryInstance, err := f.loader.GetInstance(plugin.InterfaceRetryStrategy, f.cfg.RetryStrategy)
	if err != nil {
		return nil, err
	}
	retryStrategy, ok := retryInstance.(retry.Strategy)
	if !ok {
		return nil, fmt.Errorf("framework: plugin %q does not implement retry.Strategy", f.cfg.RetryStrategy)
	}

	tolerantInstance, err := f.loader.GetInstance(plugin.InterfaceTolerantStrategy, f.cfg.TolerantStrategy)
	if err != nil {
		return nil, err
	}
	tolerantStrategy, ok := tolerantInstance.(tolerance.Strategy)
	if !ok {
		return nil, fmt.Errorf("framework: plugin %q does not implement tolerance.Strategy", f.cfg.TolerantStrategy)
	}

	serializerInstance, err := f.loader.GetInstance(plugin.InterfaceSerializer, f.cfg.Serializer)
	if err != nil {
		return nil, err
	}
	c, ok := serializerInstance.(codec.Codec)
	if !ok {
		return nil, fmt.Errorf("framework: plugin %q does not implement codec.Codec", f.cfg.Serializer)
	}

	p := client.NewProxy(f.registry, bal, retryStrategy, tolerantStrategy, c.ID())
	p.SetLogger(f.log)
	f.proxies[key] = p
	return p, nil
}

func timeoutFromMS(ms int64) time.Duration {
	if ms <= 0 {
		return 5 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// ServiceNameOf returns the struct name newService would derive from impl,
// so callers can pass the same string to Expose and later to ProxyFor
// without hand-duplicating it.
func ServiceNameOf(impl any) string {
	t := reflect.TypeOf(impl)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
