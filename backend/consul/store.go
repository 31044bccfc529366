package consul

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/kv"
)

// ConsulStore provides a kv.Store using HashiCorp Consul KV store.
//
// Limitations:
// - Consul KV has a 512KB limit per value, so large arrays do not fit
// - Best suited for small datasets shared between hosts
type ConsulStore struct {
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulStoreConfig
}

// ConsulStoreConfig contains configuration options for the Consul store
type ConsulStoreConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Scheme used to reach the server (default: "http")
	Scheme string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Prefix for all keys in Consul KV (default: "vds")
	// Every dataset needs its own prefix.
	Prefix string
}

// NewConsulStore creates a new Consul-backed object store
func NewConsulStore(config *ConsulStoreConfig) (*ConsulStore, error) {
	if config == nil {
		config = &ConsulStoreConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	config.Prefix = strings.Trim(config.Prefix, "/")
	if config.Prefix == "" {
		config.Prefix = "vds"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Scheme != "" {
		clientConfig.Scheme = config.Scheme
	}
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

	return &ConsulStore{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// NewConsulBackend creates a dataset backend stored under the configured prefix.
func NewConsulBackend(config *ConsulStoreConfig) (*kv.KVBackend, error) {
	store, err := NewConsulStore(config)
	if err != nil {
		return nil, err
	}
	return kv.NewKVBackend(store, backend.CapabilityPersistent, backend.CapabilityRemote), nil
}

// Name returns the identifier name defined for this store
func (cs *ConsulStore) Name() string {
	return "consul://" + cs.config.Address + "/" + cs.config.Prefix
}

// Ping verifies that the agent can reach a cluster leader.
func (cs *ConsulStore) Ping(ctx context.Context) error {
	leader, err := cs.client.Status().LeaderWithQueryOptions((&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return err
	}
	if leader == "" {
		return fmt.Errorf("no cluster leader at %s", cs.config.Address)
	}
	return nil
}

// buildKey constructs the full Consul KV key from the object key
func (cs *ConsulStore) buildKey(key string) string {
	return cs.config.Prefix + "/" + strings.TrimPrefix(key, "/")
}

func (cs *ConsulStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	q := (&api.QueryOptions{}).WithContext(ctx)

	pair, _, err := cs.kv.Get(cs.buildKey(key), q)
	if err != nil {
		return nil, false, err
	}
	if pair == nil {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

func (cs *ConsulStore) Put(ctx context.Context, key string, value []byte) error {
	w := (&api.WriteOptions{}).WithContext(ctx)

	_, err := cs.kv.Put(&api.KVPair{
		Key:   cs.buildKey(key),
		Value: value,
	}, w)
	return err
}

func (cs *ConsulStore) Delete(ctx context.Context, key string) error {
	w := (&api.WriteOptions{}).WithContext(ctx)

	_, err := cs.kv.Delete(cs.buildKey(key), w)
	return err
}

func (cs *ConsulStore) List(ctx context.Context, prefix string) ([]string, error) {
	q := (&api.QueryOptions{}).WithContext(ctx)

	consulKeys, _, err := cs.kv.Keys(cs.buildKey(prefix), "", q)
	if err != nil {
		return nil, err
	}

	base := cs.config.Prefix + "/"
	keys := make([]string, 0, len(consulKeys))
	for _, key := range consulKeys {
		keys = append(keys, strings.TrimPrefix(key, base))
	}
	return keys, nil
}
