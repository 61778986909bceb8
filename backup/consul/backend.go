package consul

import (
	"context"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/xmeta/backup"
)

// ConsulBackend stores backup records in the HashiCorp Consul KV store.
//
// Layout below the configured prefix:
// - records/<device>-<inode> holds the JSON record
// - paths/<sha256 of path> holds the identity key last written for a path
//
// Limitations:
// - Consul KV has a 512KB limit per value
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string `toml:"address"`

	// Token for Consul ACL authentication (optional)
	Token string `toml:"token"`

	// Datacenter to use (optional)
	Datacenter string `toml:"datacenter"`

	// Namespace for Consul Enterprise (optional)
	Namespace string `toml:"namespace"`

	// Prefix for all keys in Consul KV (default: "xmeta/")
	Prefix string `toml:"prefix"`
}

// NewConsulBackend creates a new Consul-backed backup store
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	if config.Prefix == "" {
		config.Prefix = "xmeta/"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// Fail early when the agent is unreachable
	_, err := cb.client.Status().Leader()
	return err
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backup.BackendCapabilities {
	capabilities := backup.GetAllCapabilities()
	// Consul KV has a default limit of 512KB per value
	// We set it slightly lower to account for encoding overhead
	capabilities.MaxRecordSize = 500 * 1024 // 500 KB
	return capabilities
}

// buildKey constructs the full Consul KV key below the configured prefix
func (cb *ConsulBackend) buildKey(key string) string {
	return buildKey(cb.config.Prefix, key)
}

func buildKey(prefix, key string) string {
	// Remove leading / from key if present
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	// Handle "/" prefix specially - it means no prefix, just use the key
	if prefix == "/" || prefix == "" {
		return key
	}

	// For other prefixes, ensure they end with /
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return prefix + key
}
