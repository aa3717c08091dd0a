package hexy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Application is the composition root: it feeds the providers of its
// modules into one Container and exposes resolution.
//
// Create one per process (or per test) and pass it explicitly to the code
// that needs it.
type Application struct {
	container *Container
	logger    *zap.Logger

	mu       sync.RWMutex
	modules  map[string]*Module
	order    []string
	shutdown bool
}

// New returns an application with an empty container.
func New(opts ...Option) *Application {
	o := newOptions(opts)
	return &Application{
		container: NewContainer(opts...),
		logger:    o.logger,
		modules:   make(map[string]*Module),
	}
}

// Container returns the application's resolver.
func (a *Application) Container() *Container { return a.container }

// RegisterModule registers every provider returned by m.AllProviders. A
// module registered under an existing name replaces the previous entry in
// the module registry; its providers follow the container's last-write-wins
// policy.
func (a *Application) RegisterModule(m *Module) error {
	if m == nil {
		return fmt.Errorf("register module: module is nil")
	}

	if a.isShutdown() {
		return fmt.Errorf("register module %s: %w", m.name, ErrAlreadyShutdown)
	}

	// Validate first so a bad provider leaves the registry untouched.
	providers := m.AllProviders()
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("register module %s: %w", m.name, err)
		}
	}
	replaced, err := a.container.RegisterMany(providers...)
	if err != nil {
		return fmt.Errorf("register module %s: %w", m.name, err)
	}

	a.mu.Lock()
	if _, exists := a.modules[m.name]; exists {
		a.logger.Warn("module replaced", zap.String("module", m.name))
	} else {
		a.order = append(a.order, m.name)
	}
	a.modules[m.name] = m
	a.mu.Unlock()

	a.logger.Debug("module registered",
		zap.String("module", m.name),
		zap.String("layer", m.layer),
		zap.Int("providers", len(providers)),
		zap.Int("replaced", replaced),
	)
	return nil
}

// RegisterModules registers modules in order and stops at the first error.
func (a *Application) RegisterModules(ms ...*Module) error {
	for _, m := range ms {
		if err := a.RegisterModule(m); err != nil {
			return err
		}
	}
	return nil
}

// Resolve delegates to the container. It fails with ErrAlreadyShutdown once
// Shutdown has been called.
func (a *Application) Resolve(ctx context.Context, tok Token) (any, error) {
	if a.isShutdown() {
		return nil, ErrAlreadyShutdown
	}
	return a.container.Resolve(ctx, tok)
}

func (a *Application) isShutdown() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shutdown
}

// Get is the typed entry point of an Application.
//
//	svc, err := hexy.Get[*UserService](ctx, app, hexy.Type[*UserService]())
func Get[T any](ctx context.Context, a *Application, tok Token) (T, error) {
	return ResolveAs[T](ctx, a, tok)
}

// Module returns the module registered under name.
func (a *Application) Module(name string) (*Module, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.modules[name]
	return m, ok
}

// Modules returns the registered modules in registration order.
func (a *Application) Modules() []*Module {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Module, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.modules[name])
	}
	return out
}

// Shutdown runs the pre-teardown hooks of every cached instance and drops
// the instance cache. Afterwards Resolve and RegisterModule fail with
// ErrAlreadyShutdown. Later calls still tear down instances that a resolve
// already in flight cached after the first call, then return
// ErrAlreadyShutdown.
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		if err := a.container.ClearInstances(ctx); err != nil {
			return errors.Join(ErrAlreadyShutdown, err)
		}
		return ErrAlreadyShutdown
	}
	a.shutdown = true
	a.mu.Unlock()

	a.logger.Info("application shutting down", zap.Int("modules", len(a.Modules())))
	return a.container.ClearInstances(ctx)
}

// Reset tears down every instance and forgets all providers and modules,
// leaving an empty application ready for new registrations.
func (a *Application) Reset(ctx context.Context) error {
	err := a.container.Reset(ctx)

	a.mu.Lock()
	a.modules = make(map[string]*Module)
	a.order = nil
	a.shutdown = false
	a.mu.Unlock()
	return err
}
