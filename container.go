package hexy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Resolver produces instances for tokens.
type Resolver interface {
	Resolve(ctx context.Context, tok Token) (any, error)
}

type cachedInstance struct {
	instance any
	provider *Provider
}

// Container is the resolver. It owns a Registry and the singleton instance
// cache, and provides:
// 1) lazy, dependency-first construction with per-lifetime caching
// 2) cycle detection along the active resolution path
// 3) singleflight deduplication, so concurrent requests build a singleton once
// 4) reverse-construction-order teardown
//
// A Container is safe for concurrent use.
type Container struct {
	registry *Registry
	logger   *zap.Logger

	mu        sync.RWMutex
	instances map[Token]cachedInstance
	built     []Token
	flights   map[Token]*singleflight.Group

	// acyclic records the registry version at which a token's dependency
	// closure was last found free of cycles.
	acyclic map[Token]uint64
}

// NewContainer returns a container with an empty registry.
func NewContainer(opts ...Option) *Container {
	o := newOptions(opts)
	return &Container{
		registry:  NewRegistry(opts...),
		logger:    o.logger,
		instances: make(map[Token]cachedInstance),
		flights:   make(map[Token]*singleflight.Group),
		acyclic:   make(map[Token]uint64),
	}
}

// Registry returns the provider registry owned by c.
func (c *Container) Registry() *Registry { return c.registry }

// Register is shorthand for c.Registry().Register.
func (c *Container) Register(p *Provider) error { return c.registry.Register(p) }

// RegisterMany is shorthand for c.Registry().RegisterMany.
func (c *Container) RegisterMany(providers ...*Provider) (int, error) {
	return c.registry.RegisterMany(providers...)
}

// Has reports whether a provider is registered for tok.
func (c *Container) Has(tok Token) bool { return c.registry.Has(tok) }

// Resolve returns the instance for tok, building it and its dependencies
// first when needed.
//
// It fails with ProviderNotFoundError when tok (or any transitive
// dependency) has no provider, with CircularDependencyError when tok is
// requested again while under construction, and with ConstructionError when
// a provider body or post-construction hook fails. Failures from any depth
// are returned unchanged.
func (c *Container) Resolve(ctx context.Context, tok Token) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.resolve(ctx, tok)
}

func (c *Container) resolve(ctx context.Context, tok Token) (any, error) {
	p, ok := c.registry.Lookup(tok)
	if !ok {
		return nil, ProviderNotFoundError{Token: tok}
	}

	if p.lifetime == Singleton {
		if inst, ok := c.cached(tok); ok {
			return inst, nil
		}
	}

	stack := resolveStack(ctx)
	if stack.len() == 0 {
		if err := c.checkAcyclic(tok); err != nil {
			return nil, err
		}
	}
	withStack, err := pushResolveStack(ctx, stack, tok)
	if err != nil {
		return nil, err
	}

	if p.lifetime == Transient {
		inst, err := c.construct(withStack, p)
		if err != nil {
			return nil, err
		}
		if err := c.runConstructHook(withStack, p, inst); err != nil {
			return nil, err
		}
		return inst, nil
	}

	// The flight covers construct and store only. The hook runs outside it,
	// on the goroutine that built the instance, because a hook may resolve
	// tokens whose flights are waiting on this one.
	var fresh bool
	v, err, _ := c.flight(tok).Do("", func() (any, error) {
		if inst, ok := c.cached(tok); ok {
			return inst, nil
		}
		inst, err := c.construct(withStack, p)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.instances[tok] = cachedInstance{instance: inst, provider: p}
		c.built = append(c.built, tok)
		c.mu.Unlock()
		fresh = true
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	if fresh {
		if err := c.runConstructHook(withStack, p, v); err != nil {
			c.evict(ctx, tok)
			return nil, err
		}
	}
	return v, nil
}

// construct resolves the declared dependencies in order and runs the
// provider strategy. ctx already carries tok on its resolution stack.
func (c *Container) construct(ctx context.Context, p *Provider) (inst any, err error) {
	deps := p.strategy.Deps()
	args := make([]any, len(deps))
	for i, dep := range deps {
		v, err := c.resolve(ctx, dep)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	defer func() {
		if rec := recover(); rec != nil {
			inst = nil
			err = ConstructionError{Token: p.token, Err: PanicError{Value: rec}}
		}
	}()

	inst, err = p.strategy.build(args)
	if err != nil {
		return nil, ConstructionError{Token: p.token, Err: err}
	}
	c.logger.Debug("instance constructed",
		zap.Stringer("token", p.token),
		zap.Stringer("strategy", p.strategy.Kind()),
		zap.Stringer("lifetime", p.lifetime),
	)
	return inst, nil
}

func (c *Container) runConstructHook(ctx context.Context, p *Provider, inst any) (err error) {
	if p.onConstruct == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = ConstructionError{Token: p.token, Err: PanicError{Value: rec}}
		}
	}()
	if err := p.onConstruct(ctx, inst); err != nil {
		return ConstructionError{Token: p.token, Err: err}
	}
	return nil
}

// evict drops a singleton whose post-construction hook failed and releases
// it through its teardown hook.
func (c *Container) evict(ctx context.Context, tok Token) {
	c.mu.Lock()
	entry, ok := c.instances[tok]
	delete(c.instances, tok)
	for i := len(c.built) - 1; i >= 0; i-- {
		if c.built[i] == tok {
			c.built = append(c.built[:i], c.built[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if err := teardown(ctx, entry); err != nil {
		c.logger.Error("teardown after failed construction hook",
			zap.Stringer("token", tok),
			zap.Error(err),
		)
	}
}

func (c *Container) cached(tok Token) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.instances[tok]
	return entry.instance, ok
}

func (c *Container) flight(tok Token) *singleflight.Group {
	c.mu.RLock()
	g, ok := c.flights[tok]
	c.mu.RUnlock()
	if ok {
		return g
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok = c.flights[tok]; !ok {
		g = &singleflight.Group{}
		c.flights[tok] = g
	}
	return g
}

// checkAcyclic walks the declared dependencies of tok before a top-level
// build starts. Concurrent builds wait on each other's singleflight, so a
// cycle must be rejected before any of its members is entered.
func (c *Container) checkAcyclic(tok Token) error {
	version := c.registry.version()

	c.mu.RLock()
	checked, ok := c.acyclic[tok]
	c.mu.RUnlock()
	if ok && checked == version {
		return nil
	}

	if cycle := findCycle(c.registry, []Token{tok}); cycle != nil {
		return CircularDependencyError{Path: cycle}
	}

	c.mu.Lock()
	c.acyclic[tok] = version
	c.mu.Unlock()
	return nil
}

// Resolved returns a cached singleton without triggering a build.
func (c *Container) Resolved(tok Token) (any, bool) {
	return c.cached(tok)
}

// Warm builds the given singletons concurrently, or every registered
// singleton when no token is given. Transient tokens are skipped.
func (c *Container) Warm(ctx context.Context, tokens ...Token) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tokens) == 0 {
		tokens = c.registry.Tokens()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tok := range tokens {
		p, ok := c.registry.Lookup(tok)
		if ok && p.lifetime == Transient {
			continue
		}
		tok := tok
		g.Go(func() error {
			_, err := c.Resolve(gctx, tok)
			return err
		})
	}
	return g.Wait()
}

// Validate checks every registered provider without constructing anything:
// each declared dependency must have a provider and the dependency graph
// must be acyclic.
func (c *Container) Validate() error {
	graph, err := c.Graph()
	if err != nil {
		return err
	}
	errs := make([]error, 0, len(graph.Missing))
	for _, e := range graph.Missing {
		errs = append(errs, DependencyNotFoundError{From: e.From, To: e.To})
	}
	return errors.Join(errs...)
}

// ClearInstances runs the pre-teardown hook of every cached singleton, in
// reverse construction order, then empties the instance cache. Providers
// stay registered and are rebuilt on the next Resolve.
//
// Every hook runs, even when ctx is already done; hooks receive ctx and are
// expected to honor it themselves. Resolving from inside a teardown hook is
// not supported.
func (c *Container) ClearInstances(ctx context.Context) error {
	return c.closeSelected(ctx, nil)
}

// CloseTokens tears down the cached singletons of tokens, in reverse
// construction order, and drops them from the cache. Tokens without a cached
// instance are ignored.
func (c *Container) CloseTokens(ctx context.Context, tokens []Token) error {
	if len(tokens) == 0 {
		return nil
	}
	selected := make(map[Token]struct{}, len(tokens))
	for _, tok := range tokens {
		selected[tok] = struct{}{}
	}
	return c.closeSelected(ctx, selected)
}

// InjectResolved stores an instance built elsewhere as the cached singleton
// of tok, as if it had been constructed here. The construction hook is not
// run. It fails when tok has no singleton provider.
func (c *Container) InjectResolved(tok Token, instance any) error {
	p, ok := c.registry.Lookup(tok)
	if !ok {
		return ProviderNotFoundError{Token: tok}
	}
	if p.lifetime != Singleton {
		return fmt.Errorf("inject %s: provider is %s", tok.String(), p.lifetime)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.instances[tok]; !exists {
		c.built = append(c.built, tok)
	}
	c.instances[tok] = cachedInstance{instance: instance, provider: p}
	return nil
}

// closeSelected tears down the cached instances in selected, or all of them
// when selected is nil.
func (c *Container) closeSelected(ctx context.Context, selected map[Token]struct{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	order := make([]Token, 0, len(c.built))
	entries := make(map[Token]cachedInstance, len(c.instances))
	kept := c.built[:0:0]
	for _, tok := range c.built {
		if selected != nil {
			if _, ok := selected[tok]; !ok {
				kept = append(kept, tok)
				continue
			}
		}
		order = append(order, tok)
		entries[tok] = c.instances[tok]
		delete(c.instances, tok)
	}
	c.built = kept
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		tok := order[i]
		if err := teardown(ctx, entries[tok]); err != nil {
			c.logger.Error("teardown failed", zap.Stringer("token", tok), zap.Error(err))
			errs = append(errs, fmt.Errorf("teardown %s: %w", tok.String(), err))
			continue
		}
		c.logger.Debug("instance torn down", zap.Stringer("token", tok))
	}
	return errors.Join(errs...)
}

// Reset clears the instances like ClearInstances and then empties the
// provider registry.
func (c *Container) Reset(ctx context.Context) error {
	err := c.ClearInstances(ctx)
	c.registry.clear()

	c.mu.Lock()
	c.flights = make(map[Token]*singleflight.Group)
	c.acyclic = make(map[Token]uint64)
	c.mu.Unlock()
	return err
}

func teardown(ctx context.Context, entry cachedInstance) error {
	if entry.provider.onTeardown != nil {
		return entry.provider.onTeardown(ctx, entry.instance)
	}
	// Pre-built values are owned by whoever built them.
	if entry.provider.strategy.Kind() == ValueKind {
		return nil
	}
	if closer, ok := entry.instance.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ResolveAs is a typed wrapper around Resolve.
func ResolveAs[T any](ctx context.Context, r Resolver, tok Token) (T, error) {
	var zero T
	v, err := r.Resolve(ctx, tok)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, TypeMismatchError{
			Token:    tok,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   fmt.Sprintf("%T", v),
		}
	}
	return typed, nil
}

// MustResolve panics on resolution error; intended for bootstrap code paths.
func MustResolve[T any](ctx context.Context, r Resolver, tok Token) T {
	v, err := ResolveAs[T](ctx, r, tok)
	if err != nil {
		panic(err)
	}
	return v
}

type resolveStackContextKey struct{}

// resolvePath is the set of tokens under construction in one top-level
// Resolve call, kept with their order for cycle diagnostics. It is
// copied on push so a context never observes a later push.
type resolvePath struct {
	order []Token
	index map[Token]int
}

func resolveStack(ctx context.Context) *resolvePath {
	path, _ := ctx.Value(resolveStackContextKey{}).(*resolvePath)
	return path
}

func (p *resolvePath) len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

func pushResolveStack(ctx context.Context, path *resolvePath, current Token) (context.Context, error) {
	if path != nil {
		if i, ok := path.index[current]; ok {
			cycle := append([]Token(nil), path.order[i:]...)
			cycle = append(cycle, current)
			return nil, CircularDependencyError{Path: cycle}
		}
	}

	n := path.len()
	next := &resolvePath{
		order: make([]Token, 0, n+1),
		index: make(map[Token]int, n+1),
	}
	if path != nil {
		next.order = append(next.order, path.order...)
		for tok, i := range path.index {
			next.index[tok] = i
		}
	}
	next.index[current] = n
	next.order = append(next.order, current)
	return context.WithValue(ctx, resolveStackContextKey{}, next), nil
}
