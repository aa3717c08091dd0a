package reload

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	hexy "github.com/regd25/hexy-sub004"
)

type snapshotNode struct {
	provider *hexy.Provider
	deps     []hexy.Token
}

// Result describes the instance changes of one reconciliation.
type Result struct {
	Added     []hexy.Token // Token is provided only by the new module set.
	Removed   []hexy.Token // Token is provided only by the old module set.
	Reused    []hexy.Token // Same provider and no dependency rebuilt.
	Rebuilt   []hexy.Token // Added, provider replaced, or a dependency rebuilt.
	ClosedOld []hexy.Token // Old instances torn down after the swap (removed + rebuilt).
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger of the reconciler and of every application it
// builds.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l == nil {
			return
		}
		r.logger = l
		r.appOpts = append(r.appOpts, hexy.WithLogger(l))
	}
}

// WithApplicationOptions passes opts to every application the reconciler
// builds.
func WithApplicationOptions(opts ...hexy.Option) Option {
	return func(r *Reconciler) { r.appOpts = append(r.appOpts, opts...) }
}

// Reconciler keeps the active application and switches it to new module
// sets incrementally.
//
// A provider counts as unchanged when the very same *hexy.Provider is
// registered for its token in both sets. Keep provider values in
// package-level variables (or otherwise reuse them) to benefit from reuse.
type Reconciler struct {
	logger  *zap.Logger
	appOpts []hexy.Option

	mu       sync.RWMutex
	current  *hexy.Application
	snapshot map[hexy.Token]snapshotNode
}

// New returns a reconciler. When initial is not empty it is reconciled
// right away.
func New(initial []*hexy.Module, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if len(initial) == 0 {
		return r, nil
	}
	if _, err := r.Reconcile(context.Background(), initial); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the active application, nil before the first reconcile.
func (r *Reconciler) Current() *hexy.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reconcile switches the reconciler to modules. On failure the current
// application and its instances are left untouched.
func (r *Reconciler) Reconcile(ctx context.Context, modules []*hexy.Module) (Result, error) {
	next := hexy.New(r.appOpts...)
	if err := next.RegisterModules(modules...); err != nil {
		return Result{}, fmt.Errorf("build next application: %w", err)
	}
	if err := next.Container().Validate(); err != nil {
		return Result{}, fmt.Errorf("validate next application: %w", err)
	}
	nextSnapshot, nextTopo, err := buildSnapshot(next.Container())
	if err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	if r.current == nil {
		r.current = next
		r.snapshot = nextSnapshot
		r.mu.Unlock()
		r.logger.Info("application loaded", zap.Int("providers", len(nextTopo)))
		return Result{
			Added:   append([]hexy.Token(nil), nextTopo...),
			Rebuilt: append([]hexy.Token(nil), nextTopo...),
		}, nil
	}

	old := r.current
	oldTopo := old.Container().Registry().Tokens()
	diff := diffSnapshots(r.snapshot, nextSnapshot, oldTopo, nextTopo)

	injected := make(map[hexy.Token]struct{}, len(diff.Reused))
	for _, tok := range diff.Reused {
		instance, ok := old.Container().Resolved(tok)
		if !ok {
			continue
		}
		if err := next.Container().InjectResolved(tok, instance); err != nil {
			r.mu.Unlock()
			return Result{}, fmt.Errorf("inject reused instance %s: %w", tok.String(), err)
		}
		injected[tok] = struct{}{}
	}

	if len(diff.Rebuilt) > 0 {
		if err := next.Container().Warm(ctx, diff.Rebuilt...); err != nil {
			r.mu.Unlock()
			_ = next.Container().CloseTokens(context.Background(), notIn(nextTopo, injected))
			return Result{}, fmt.Errorf("prewarm rebuilt instances: %w", err)
		}
	}

	r.current = next
	r.snapshot = nextSnapshot
	r.mu.Unlock()

	r.logger.Info("application swapped",
		zap.Int("added", len(diff.Added)),
		zap.Int("removed", len(diff.Removed)),
		zap.Int("reused", len(diff.Reused)),
		zap.Int("rebuilt", len(diff.Rebuilt)),
	)

	if err := old.Container().CloseTokens(ctx, diff.ClosedOld); err != nil {
		return diff, fmt.Errorf("switch success but close old failed: %w", err)
	}
	return diff, nil
}

// buildSnapshot records the provider and declared dependencies of every
// registered token, with the tokens in topological order.
func buildSnapshot(c *hexy.Container) (map[hexy.Token]snapshotNode, []hexy.Token, error) {
	graph, err := c.Graph()
	if err != nil {
		return nil, nil, fmt.Errorf("build snapshot: %w", err)
	}

	out := make(map[hexy.Token]snapshotNode, len(graph.Nodes))
	topo := make([]hexy.Token, 0, len(graph.TopoOrder))
	for _, tok := range graph.TopoOrder {
		p, ok := c.Registry().Lookup(tok)
		if !ok {
			continue
		}
		out[tok] = snapshotNode{provider: p, deps: p.Deps()}
		topo = append(topo, tok)
	}
	return out, topo, nil
}

func diffSnapshots(
	oldSnap map[hexy.Token]snapshotNode,
	newSnap map[hexy.Token]snapshotNode,
	oldTopo []hexy.Token,
	newTopo []hexy.Token,
) Result {
	addedSet := make(map[hexy.Token]struct{})
	removedSet := make(map[hexy.Token]struct{})
	changedSet := make(map[hexy.Token]struct{})

	for tok, newNode := range newSnap {
		oldNode, ok := oldSnap[tok]
		if !ok {
			addedSet[tok] = struct{}{}
			continue
		}
		if newNode.provider != oldNode.provider {
			changedSet[tok] = struct{}{}
		}
	}
	for tok := range oldSnap {
		if _, ok := newSnap[tok]; !ok {
			removedSet[tok] = struct{}{}
		}
	}

	// A node whose dependency is rebuilt is rebuilt too; topological order
	// guarantees dependencies are decided first.
	rebuildSet := make(map[hexy.Token]struct{}, len(newSnap))
	for tok := range addedSet {
		rebuildSet[tok] = struct{}{}
	}
	for tok := range changedSet {
		rebuildSet[tok] = struct{}{}
	}
	for _, tok := range newTopo {
		if _, already := rebuildSet[tok]; already {
			continue
		}
		for _, dep := range newSnap[tok].deps {
			if _, changed := rebuildSet[dep]; changed {
				rebuildSet[tok] = struct{}{}
				break
			}
		}
	}

	result := Result{
		Added:     make([]hexy.Token, 0, len(addedSet)),
		Removed:   make([]hexy.Token, 0, len(removedSet)),
		Reused:    make([]hexy.Token, 0, len(newSnap)),
		Rebuilt:   make([]hexy.Token, 0, len(rebuildSet)),
		ClosedOld: make([]hexy.Token, 0, len(removedSet)+len(rebuildSet)),
	}

	for _, tok := range newTopo {
		if _, ok := addedSet[tok]; ok {
			result.Added = append(result.Added, tok)
		}
		if _, ok := rebuildSet[tok]; ok {
			result.Rebuilt = append(result.Rebuilt, tok)
		} else {
			result.Reused = append(result.Reused, tok)
		}
	}

	for _, tok := range oldTopo {
		if _, ok := removedSet[tok]; ok {
			result.Removed = append(result.Removed, tok)
			result.ClosedOld = append(result.ClosedOld, tok)
			continue
		}
		if _, rebuild := rebuildSet[tok]; rebuild {
			result.ClosedOld = append(result.ClosedOld, tok)
		}
	}

	return result
}

func notIn(tokens []hexy.Token, skip map[hexy.Token]struct{}) []hexy.Token {
	out := make([]hexy.Token, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := skip[tok]; !ok {
			out = append(out, tok)
		}
	}
	return out
}
