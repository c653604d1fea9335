package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/netresearch/testenv/config"
)

// Key identifies a registry entry.
type Key string

// Well-known registry keys.
const (
	KeySettings Key = "settings"
	KeyToken    Key = "token"
)

// ContainerKey is the key under which the handle of kind is published.
func ContainerKey(kind ServiceKind) Key {
	return Key("container/" + string(kind))
}

type registryState int

const (
	registryOpen registryState = iota
	registrySealed
	registryCleared
)

func (s registryState) String() string {
	switch s {
	case registryOpen:
		return "initializing"
	case registrySealed:
		return "ready"
	default:
		return "torn down"
	}
}

// Registry is the process-wide store through which tests read what setup
// published. It is written while open, read only once sealed, and cleared
// by teardown.
type Registry struct {
	mu      sync.RWMutex
	state   registryState
	entries map[Key]any
	ready   chan struct{}
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry returns an empty, open registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Key]any),
		ready:   make(chan struct{}),
	}
}

// Set stores value under key. It fails once the registry is sealed or cleared.
func (r *Registry) Set(key Key, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != registryOpen {
		return &RegistryUsageError{Op: "set", Key: string(key), State: r.state.String()}
	}
	r.entries[key] = value
	return nil
}

// Get returns the value under key. Reads are only valid while sealed.
func (r *Registry) Get(key Key) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != registrySealed {
		return nil, &RegistryUsageError{Op: "get", Key: string(key), State: r.state.String()}
	}
	v, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}
	return v, nil
}

// Seal makes the registry immutable and readable. Sealing twice is a no-op.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case registrySealed:
		return nil
	case registryCleared:
		return &RegistryUsageError{Op: "seal", State: r.state.String()}
	}
	r.state = registrySealed
	close(r.ready)
	return nil
}

// Clear drops every entry. Later reads and writes fail.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Key]any)
	r.state = registryCleared
}

// Sealed reports whether the registry is readable.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == registrySealed
}

// WaitReady blocks until the registry is sealed or ctx is done.
func (r *Registry) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Token returns the published access token ("" when none was obtained).
func (r *Registry) Token() (string, error) {
	v, err := r.Get(KeyToken)
	if err != nil {
		return "", err
	}
	token, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("registry entry %s holds %T, not a token", KeyToken, v)
	}
	return token, nil
}

// Handle returns the published handle of kind.
func (r *Registry) Handle(kind ServiceKind) (*ContainerHandle, error) {
	v, err := r.Get(ContainerKey(kind))
	if err != nil {
		return nil, err
	}
	h, ok := v.(*ContainerHandle)
	if !ok {
		return nil, fmt.Errorf("registry entry %s holds %T, not a container handle", ContainerKey(kind), v)
	}
	return h, nil
}

// ContainerURI returns the connection URI of the published container of kind.
func (r *Registry) ContainerURI(kind ServiceKind) (string, error) {
	h, err := r.Handle(kind)
	if err != nil {
		return "", err
	}
	return h.URI, nil
}

// Settings returns a copy of the published settings.
func (r *Registry) Settings() (*config.Settings, error) {
	v, err := r.Get(KeySettings)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*config.Settings)
	if !ok {
		return nil, fmt.Errorf("registry entry %s holds %T, not settings", KeySettings, v)
	}
	return s.Clone(), nil
}

// Published is what postInit sees of a freshly provisioned environment:
// the frozen settings, the handles, and write access to the still-open
// registry.
type Published struct {
	settings *config.Settings
	handles  map[ServiceKind]*ContainerHandle
	registry *Registry
}

// Settings returns a copy of the published settings.
func (p *Published) Settings() *config.Settings { return p.settings.Clone() }

// Handle returns the handle of kind, if it was provisioned.
func (p *Published) Handle(kind ServiceKind) (*ContainerHandle, bool) {
	h, ok := p.handles[kind]
	return h, ok
}

// Set publishes an additional entry.
func (p *Published) Set(key Key, value any) error {
	return p.registry.Set(key, value)
}

// SetToken publishes the access token.
func (p *Published) SetToken(token string) error {
	return p.registry.Set(KeyToken, token)
}
