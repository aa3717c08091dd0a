package hexy

import (
	"sync"

	"go.uber.org/zap"
)

// Registry maps tokens to providers.
//
// Exactly one provider is kept per token. Registering a provider for a token
// that already has one replaces it (last write wins); the replacement is
// logged at warn level and counted by RegisterMany so callers can detect it.
type Registry struct {
	mu        sync.RWMutex
	providers map[Token]*Provider
	order     []Token
	// ver changes on every mutation; caches derived from the registry
	// compare it to detect staleness.
	ver uint64

	logger *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := newOptions(opts)
	return &Registry{
		providers: make(map[Token]*Provider),
		logger:    o.logger,
	}
}

// Register stores p, replacing any provider already registered for the same
// token. No instance is built. It fails only when p is invalid.
func (r *Registry) Register(p *Provider) error {
	_, err := r.register(p)
	return err
}

// RegisterMany registers providers in order, like sequential Register calls.
// It stops at the first invalid provider and reports how many registrations
// replaced an existing provider.
func (r *Registry) RegisterMany(providers ...*Provider) (replaced int, err error) {
	for _, p := range providers {
		ok, err := r.register(p)
		if err != nil {
			return replaced, err
		}
		if ok {
			replaced++
		}
	}
	return replaced, nil
}

func (r *Registry) register(p *Provider) (replaced bool, err error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	prev, exists := r.providers[p.token]
	r.providers[p.token] = p
	r.ver++
	if !exists {
		r.order = append(r.order, p.token)
	}
	r.mu.Unlock()

	if exists && prev != p {
		r.logger.Warn("provider replaced",
			zap.Stringer("token", p.token),
			zap.Stringer("previous", prev.strategy.Kind()),
			zap.Stringer("next", p.strategy.Kind()),
		)
	}
	return exists && prev != p, nil
}

// Has reports whether a provider is registered for tok. It never constructs
// anything.
func (r *Registry) Has(tok Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[tok]
	return ok
}

// Lookup returns the provider registered for tok.
func (r *Registry) Lookup(tok Token) (*Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[tok]
	return p, ok
}

// Tokens returns the registered tokens in first-registration order.
func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Token(nil), r.order...)
}

// Providers returns the registered providers in first-registration order.
func (r *Registry) Providers() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Provider, 0, len(r.order))
	for _, tok := range r.order {
		out = append(out, r.providers[tok])
	}
	return out
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[Token]*Provider)
	r.order = nil
	r.ver++
}

func (r *Registry) version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ver
}
