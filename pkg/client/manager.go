package client

import (
	"sync"

	"github.com/gatehouse/gatehouse/pkg/hashring"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/types"
)

// Manager owns the current shard configuration and hands out shard
// clients. The configuration is modeled as a single immutable value:
// Reconfigure replaces the whole set and rebuilds the ring; nothing is
// ever patched in place.
//
// Clients are constructed lazily per URL and reused across
// reconfigurations that keep the URL. Clients for URLs that disappear
// have their idle connections closed after the swap.
type Manager struct {
	mu      sync.Mutex
	set     types.ShardConfigSet
	ring    *hashring.Ring
	clients map[string]*ShardClient
}

// NewManager creates a manager with the given initial configuration
func NewManager(set types.ShardConfigSet) (*Manager, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		set:     set,
		ring:    hashring.NewRing(set),
		clients: make(map[string]*ShardClient),
	}, nil
}

// GetClient resolves the shard owning the hash for (kind, op) and
// returns its client
func (m *Manager) GetClient(kind types.ElementKind, op types.OperationKind, hash int32) (*ShardClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.ring.Resolve(kind, op, hash)
	if err != nil {
		return nil, err
	}
	return m.clientLocked(cfg.URL), nil
}

// AllClients returns one client per shard configured for (kind, op), in
// range order
func (m *Manager) AllClients(kind types.ElementKind, op types.OperationKind) []*ShardClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	configs := m.ring.All(kind, op)
	clients := make([]*ShardClient, 0, len(configs))
	for _, cfg := range configs {
		clients = append(clients, m.clientLocked(cfg.URL))
	}
	return clients
}

// ClientFor returns the cached client for an explicit shard URL,
// constructing it on first use. Used for targets that are not yet part
// of the configured ring, such as the destination of a live migration.
func (m *Manager) ClientFor(url string) *ShardClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientLocked(url)
}

// Set returns the current shard configuration
func (m *Manager) Set() types.ShardConfigSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set
}

// Reconfigure atomically replaces the shard configuration. Calls already
// holding a client finish against the old shard; new resolutions see
// only the new set.
func (m *Manager) Reconfigure(set types.ShardConfigSet) error {
	if err := set.Validate(); err != nil {
		return err
	}

	keep := make(map[string]bool, len(set))
	for _, cfg := range set {
		keep[cfg.URL] = true
	}

	m.mu.Lock()
	m.set = set
	m.ring = hashring.NewRing(set)

	var obsolete []*ShardClient
	for url, c := range m.clients {
		if !keep[url] {
			obsolete = append(obsolete, c)
			delete(m.clients, url)
		}
	}
	m.mu.Unlock()

	for _, c := range obsolete {
		c.CloseIdleConnections()
	}
	log.WithComponent("client").Info().
		Int("shards", len(set)).
		Int("released", len(obsolete)).
		Msg("shard configuration replaced")
	return nil
}

// clientLocked returns the cached client for url, constructing it on
// first use. Callers hold m.mu.
func (m *Manager) clientLocked(url string) *ShardClient {
	c, ok := m.clients[url]
	if !ok {
		c = NewShardClient(url)
		m.clients[url] = c
	}
	return c
}
