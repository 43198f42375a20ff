// Package config loads the flat "rpc.*" key table (wire serializer,
// load-balancer, retry/tolerance strategy, registry backend) from a YAML
// file into a typed Config, shaped after the game-server framework's
// ServerConfig/loadConfig pattern (config/server_config.go in
// phuhao00-pandaparty): os.ReadFile + yaml.Unmarshal into a struct carrying
// its own defaults, exposed through a package-level loader rather than a
// DI-container binding.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryConfig is the "registryConfig.*" key group.
type RegistryConfig struct {
	Registry  string `yaml:"registry"` // backing store kind: "etcd" | "consul"
	Address   string `yaml:"address"`  // coordination endpoint(s), comma-separated
	TimeoutMS int64  `yaml:"timeout"`  // connect timeout in ms
}

// Config is the full "rpc.*" configuration surface, shared by consumer and
// provider applications.
type Config struct {
	Name             string         `yaml:"name"`
	Version          string         `yaml:"version"`
	ServerHost       string         `yaml:"serverHost"`
	ServerPort       int            `yaml:"serverPort"`
	Serializer       string         `yaml:"serializer"`
	LoadBalancer     string         `yaml:"loadBalancer"`
	RetryStrategy    string         `yaml:"retryStrategy"`
	TolerantStrategy string         `yaml:"tolerantStrategy"`
	Mock             bool           `yaml:"mock"`
	RegistryConfig   RegistryConfig `yaml:"registryConfig"`
}

// Default returns the documented rpc.* defaults when no file is supplied,
// suitable for zero-config embedding.
func Default() *Config {
	return &Config{
		Name:             "mini-rpc",
		Version:          "1.0",
		ServerHost:       "localhost",
		ServerPort:       8121,
		Serializer:       "jdk",
		LoadBalancer:     "roundRobin",
		RetryStrategy:    "no",
		TolerantStrategy: "failFast",
		Mock:             false,
		RegistryConfig: RegistryConfig{
			Registry:  "etcd",
			TimeoutMS: 5000,
		},
	}
}

// Load reads a YAML file at path and overlays it onto Default(), so a
// file only needs to name the keys it overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
