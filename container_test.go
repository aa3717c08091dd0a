package hexy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCloseRecorder struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (r *testCloseRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.order = append(*r.order, r.name)
	return nil
}

type counted struct {
	n int
}

func countingFactory(calls *int32) FactoryFunc {
	return func(...any) (any, error) {
		return &counted{n: int(atomic.AddInt32(calls, 1))}, nil
	}
}

func mustRegister(t *testing.T, c *Container, ps ...*Provider) {
	t.Helper()
	_, err := c.RegisterMany(ps...)
	require.NoError(t, err)
}

func TestContainer_ResolveAndGraph(t *testing.T) {
	type dbResource struct{ dsn string }
	type svcResource struct{ db *dbResource }

	var svcBuildCount int32
	c := NewContainer()
	mustRegister(t, c,
		Value(Type[*dbResource](), &dbResource{dsn: "dsn://main"}),
		Recipe(Type[*svcResource](), func(db *dbResource) *svcResource {
			atomic.AddInt32(&svcBuildCount, 1)
			return &svcResource{db: db}
		}),
	)

	graph, err := c.Graph()
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, Type[*svcResource](), graph.Edges[0].From)
	assert.Equal(t, Type[*dbResource](), graph.Edges[0].To)
	assert.Equal(t, []Token{Type[*dbResource](), Type[*svcResource]()}, graph.TopoOrder)
	assert.Contains(t, graph.DOT(), "digraph hexy")
	assert.Contains(t, graph.Mermaid(), "graph TD")

	svc, err := ResolveAs[*svcResource](context.Background(), c, Type[*svcResource]())
	require.NoError(t, err)
	assert.Equal(t, "dsn://main", svc.db.dsn)

	again, err := ResolveAs[*svcResource](context.Background(), c, Type[*svcResource]())
	require.NoError(t, err)
	assert.Same(t, svc, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&svcBuildCount))

	_, ok := c.Resolved(Type[*dbResource]())
	assert.True(t, ok)
}

func TestContainer_SingletonUniqueness(t *testing.T) {
	var calls int32
	c := NewContainer()
	mustRegister(t, c, Factory(Named("s"), countingFactory(&calls), nil))

	first, err := c.Resolve(context.Background(), Named("s"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		v, err := c.Resolve(context.Background(), Named("s"))
		require.NoError(t, err)
		assert.Same(t, first, v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContainer_TransientFreshness(t *testing.T) {
	var calls int32
	c := NewContainer()
	mustRegister(t, c, Factory(Named("t"), countingFactory(&calls), nil, AsTransient()))

	a, err := c.Resolve(context.Background(), Named("t"))
	require.NoError(t, err)
	b, err := c.Resolve(context.Background(), Named("t"))
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	_, cached := c.Resolved(Named("t"))
	assert.False(t, cached)
}

func TestContainer_TransientDependsOnSingleton(t *testing.T) {
	var singletonCalls, transientCalls int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("shared"), countingFactory(&singletonCalls), nil),
		Factory(Named("request"), func(deps ...any) (any, error) {
			atomic.AddInt32(&transientCalls, 1)
			return deps[0], nil
		}, []Token{Named("shared")}, AsTransient()),
	)

	a, err := c.Resolve(context.Background(), Named("request"))
	require.NoError(t, err)
	b, err := c.Resolve(context.Background(), Named("request"))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), atomic.LoadInt32(&singletonCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&transientCalls))
}

func TestContainer_CycleDetected(t *testing.T) {
	c := NewContainer()
	never := func(...any) (any, error) { panic("must not be called") }
	mustRegister(t, c,
		Factory(Named("a"), never, []Token{Named("b")}),
		Factory(Named("b"), never, []Token{Named("a")}),
		Value(Named("ok"), 1),
	)

	_, err := c.Resolve(context.Background(), Named("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)

	var cycleErr CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []Token{Named("a"), Named("b"), Named("a")}, cycleErr.Path)
	assert.Equal(t, "circular dependency detected: name:a -> name:b -> name:a", err.Error())

	// The failed resolve leaves nothing behind.
	v, err := c.Resolve(context.Background(), Named("ok"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Breaking the cycle makes the graph resolvable.
	mustRegister(t, c, Value(Named("b"), "b"))
	_, err = c.Resolve(context.Background(), Named("a"))
	require.ErrorIs(t, err, ErrConstructionFailed)
	var pe PanicError
	require.ErrorAs(t, err, &pe)
}

func TestContainer_SelfDependency(t *testing.T) {
	c := NewContainer()
	mustRegister(t, c, Factory(Named("self"), func(...any) (any, error) { return 1, nil }, []Token{Named("self")}))

	_, err := c.Resolve(context.Background(), Named("self"))
	var cycleErr CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []Token{Named("self"), Named("self")}, cycleErr.Path)
	assert.Equal(t, Named("self"), cycleErr.Requested())
}

func TestResolveStack_ReentryAndIsolation(t *testing.T) {
	ctx := context.Background()
	ctxA, err := pushResolveStack(ctx, resolveStack(ctx), Named("a"))
	require.NoError(t, err)
	ctxB, err := pushResolveStack(ctxA, resolveStack(ctxA), Named("b"))
	require.NoError(t, err)

	_, err = pushResolveStack(ctxB, resolveStack(ctxB), Named("a"))
	var cycleErr CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []Token{Named("a"), Named("b"), Named("a")}, cycleErr.Path)

	// A sibling push from ctxA never sees b.
	ctxC, err := pushResolveStack(ctxA, resolveStack(ctxA), Named("c"))
	require.NoError(t, err)
	assert.Equal(t, []Token{Named("a"), Named("c")}, resolveStack(ctxC).order)
	assert.Equal(t, 1, resolveStack(ctxA).len())
	assert.Equal(t, 0, resolveStack(ctx).len())
}

func TestContainer_ProviderNotFound(t *testing.T) {
	type svc struct{}
	c := NewContainer()
	mustRegister(t, c, Recipe(Type[*svc](), func(db tokenLogger) *svc { return &svc{} }))

	_, err := c.Resolve(context.Background(), Named("ghost"))
	require.ErrorIs(t, err, ErrProviderNotFound)
	assert.Equal(t, ProviderNotFoundError{Token: Named("ghost")}, err)

	// A missing transitive dependency is reported unchanged, naming the
	// dependency rather than the requested token.
	_, err = c.Resolve(context.Background(), Type[*svc]())
	var notFound ProviderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, Type[tokenLogger](), notFound.Token)

	var re ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, Type[tokenLogger](), re.Requested())
}

func TestContainer_ConstructionFailed(t *testing.T) {
	errBoom := errors.New("boom")
	var calls int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("db"), func(...any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errBoom
		}, nil),
		Factory(Named("svc"), func(deps ...any) (any, error) { return deps[0], nil }, []Token{Named("db")}),
	)

	_, err := c.Resolve(context.Background(), Named("svc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, ErrConstructionFailed)

	var ce ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Named("db"), ce.Token)
	assert.Same(t, errBoom, ce.Err)

	// Failures are not cached.
	_, err = c.Resolve(context.Background(), Named("svc"))
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestContainer_RecipeErrorAndPanic(t *testing.T) {
	errBad := errors.New("bad config")
	c := NewContainer()
	mustRegister(t, c,
		Recipe(Named("err"), func() (*counted, error) { return nil, errBad }),
		Factory(Named("panic"), func(...any) (any, error) { panic("kaboom") }, nil),
	)

	_, err := c.Resolve(context.Background(), Named("err"))
	require.ErrorIs(t, err, errBad)

	_, err = c.Resolve(context.Background(), Named("panic"))
	require.ErrorIs(t, err, ErrConstructionFailed)
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Equal(t, "construct name:panic: panic: kaboom", err.Error())
}

func TestContainer_ConcurrentSingletonBuildsOnce(t *testing.T) {
	var calls int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("slow"), func(...any) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return &counted{n: int(atomic.AddInt32(&calls, 1))}, nil
		}, nil),
		Factory(Named("top"), func(deps ...any) (any, error) { return deps[0], nil }, []Token{Named("slow")}),
	)

	const workers = 64
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := Named("slow")
			if i%2 == 0 {
				tok = Named("top")
			}
			v, err := c.Resolve(context.Background(), tok)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestContainer_ConstructHookExactlyOnce(t *testing.T) {
	var singletonHooks, transientHooks int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("s"), countingFactory(new(int32)), nil, OnConstruct(func(context.Context, any) error {
			atomic.AddInt32(&singletonHooks, 1)
			return nil
		})),
		Factory(Named("t"), countingFactory(new(int32)), nil, AsTransient(), OnConstruct(func(context.Context, any) error {
			atomic.AddInt32(&transientHooks, 1)
			return nil
		})),
	)

	for i := 0; i < 10; i++ {
		_, err := c.Resolve(context.Background(), Named("s"))
		require.NoError(t, err)
		_, err = c.Resolve(context.Background(), Named("t"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&singletonHooks))
	assert.Equal(t, int32(10), atomic.LoadInt32(&transientHooks))
}

func TestContainer_ConstructHookExactlyOnceConcurrent(t *testing.T) {
	var hooks int32
	c := NewContainer()
	mustRegister(t, c, Factory(Named("s"), func(...any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return &counted{n: 1}, nil
	}, nil, OnConstruct(func(context.Context, any) error {
		atomic.AddInt32(&hooks, 1)
		return nil
	})))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve(context.Background(), Named("s"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&hooks))
}

func TestContainer_ConstructHookSeesCachedInstance(t *testing.T) {
	c := NewContainer()
	var fromHook any
	mustRegister(t, c, Factory(Named("s"), countingFactory(new(int32)), nil,
		OnConstruct(func(ctx context.Context, inst any) error {
			v, err := c.Resolve(ctx, Named("s"))
			fromHook = v
			return err
		}),
	))

	v, err := c.Resolve(context.Background(), Named("s"))
	require.NoError(t, err)
	assert.Same(t, v, fromHook)
}

func TestContainer_ConstructHookResolvingDependentDoesNotDeadlock(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fromHook any

	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("y"), func(...any) (any, error) {
			close(started)
			<-release
			return &counted{n: 1}, nil
		}, nil, OnConstruct(func(ctx context.Context, _ any) error {
			v, err := c.Resolve(ctx, Named("x"))
			fromHook = v
			return err
		})),
		Factory(Named("x"), func(deps ...any) (any, error) {
			return deps[0], nil
		}, []Token{Named("y")}),
	)

	type result struct {
		v   any
		err error
	}
	yDone := make(chan result, 1)
	xDone := make(chan result, 1)
	go func() {
		v, err := c.Resolve(context.Background(), Named("y"))
		yDone <- result{v, err}
	}()
	<-started
	go func() {
		v, err := c.Resolve(context.Background(), Named("x"))
		xDone <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for _, done := range []chan result{yDone, xDone} {
		select {
		case r := <-done:
			require.NoError(t, r.err)
		case <-time.After(2 * time.Second):
			t.Fatal("resolve did not return")
		}
	}
	y, ok := c.Resolved(Named("y"))
	require.True(t, ok)
	x, ok := c.Resolved(Named("x"))
	require.True(t, ok)
	assert.Same(t, y, x)
	assert.Same(t, x, fromHook)
}

func TestContainer_ConstructHookCycleReportsFullPath(t *testing.T) {
	var teardowns int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("x"), func(deps ...any) (any, error) { return deps[0], nil }, []Token{Named("y")}),
		Factory(Named("y"), countingFactory(new(int32)), nil,
			OnConstruct(func(ctx context.Context, _ any) error {
				_, err := c.Resolve(ctx, Named("x"))
				return err
			}),
			OnTeardown(func(context.Context, any) error {
				atomic.AddInt32(&teardowns, 1)
				return nil
			}),
		),
	)

	_, err := c.Resolve(context.Background(), Named("x"))
	var cycle CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []Token{Named("x"), Named("y"), Named("x")}, cycle.Path)
	require.ErrorIs(t, err, ErrConstructionFailed)

	_, cached := c.Resolved(Named("y"))
	assert.False(t, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&teardowns))
}

func TestContainer_ConstructHookFailureEvicts(t *testing.T) {
	errHook := errors.New("not ready")
	var calls, teardowns int32
	fail := true
	c := NewContainer()
	mustRegister(t, c, Factory(Named("s"), countingFactory(&calls), nil,
		OnConstruct(func(context.Context, any) error {
			if fail {
				return errHook
			}
			return nil
		}),
		OnTeardown(func(context.Context, any) error {
			atomic.AddInt32(&teardowns, 1)
			return nil
		}),
	))

	_, err := c.Resolve(context.Background(), Named("s"))
	require.ErrorIs(t, err, errHook)
	require.ErrorIs(t, err, ErrConstructionFailed)
	_, cached := c.Resolved(Named("s"))
	assert.False(t, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&teardowns))

	fail = false
	v, err := c.Resolve(context.Background(), Named("s"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.(*counted).n)
}

func TestContainer_ClearInstancesReverseOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
		calls int32
	)
	recorder := func(name string) FactoryFunc {
		return func(...any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return &testCloseRecorder{name: name, order: &order, mu: &mu}, nil
		}
	}

	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("db"), recorder("db"), nil),
		Factory(Named("repo"), recorder("repo"), []Token{Named("db")}),
		Factory(Named("svc"), recorder("svc"), []Token{Named("repo")}),
		Value(Named("external"), &testCloseRecorder{name: "external", order: &order, mu: &mu}),
	)

	_, err := c.Resolve(context.Background(), Named("svc"))
	require.NoError(t, err)
	_, err = c.Resolve(context.Background(), Named("external"))
	require.NoError(t, err)

	require.NoError(t, c.ClearInstances(context.Background()))
	assert.Equal(t, []string{"svc", "repo", "db"}, order, "values are never closed")

	_, cached := c.Resolved(Named("db"))
	assert.False(t, cached)
	assert.True(t, c.Has(Named("db")))

	_, err = c.Resolve(context.Background(), Named("svc"))
	require.NoError(t, err)
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestContainer_ClearInstancesJoinsErrors(t *testing.T) {
	errA := errors.New("close a")
	errB := errors.New("close b")
	var closed []string
	hook := func(name string, err error) Hook {
		return func(context.Context, any) error {
			closed = append(closed, name)
			return err
		}
	}

	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("a"), countingFactory(new(int32)), nil, OnTeardown(hook("a", errA))),
		Factory(Named("b"), countingFactory(new(int32)), []Token{Named("a")}, OnTeardown(hook("b", errB))),
		Factory(Named("c"), countingFactory(new(int32)), []Token{Named("b")}, OnTeardown(hook("c", nil))),
	)
	_, err := c.Resolve(context.Background(), Named("c"))
	require.NoError(t, err)

	err = c.ClearInstances(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"c", "b", "a"}, closed)
}

func TestContainer_ClearInstancesRunsHooksOnCanceledContext(t *testing.T) {
	var teardowns int32
	var seen []error
	hook := OnTeardown(func(ctx context.Context, _ any) error {
		atomic.AddInt32(&teardowns, 1)
		seen = append(seen, ctx.Err())
		return nil
	})
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("a"), countingFactory(new(int32)), nil, hook),
		Factory(Named("b"), countingFactory(new(int32)), []Token{Named("a")}, hook),
	)
	_, err := c.Resolve(context.Background(), Named("b"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.ClearInstances(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&teardowns))
	assert.Equal(t, []error{context.Canceled, context.Canceled}, seen)
	_, cached := c.Resolved(Named("a"))
	assert.False(t, cached)

	require.NoError(t, c.ClearInstances(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&teardowns))
}

func TestContainer_CloseTokensAndInject(t *testing.T) {
	var closed []string
	hook := func(name string) Hook {
		return func(context.Context, any) error {
			closed = append(closed, name)
			return nil
		}
	}
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("a"), countingFactory(new(int32)), nil, OnTeardown(hook("a"))),
		Factory(Named("b"), countingFactory(new(int32)), []Token{Named("a")}, OnTeardown(hook("b"))),
		Factory(Named("t"), countingFactory(new(int32)), nil, AsTransient()),
	)

	injected := &counted{n: 42}
	require.NoError(t, c.InjectResolved(Named("a"), injected))
	require.ErrorIs(t, c.InjectResolved(Named("ghost"), 1), ErrProviderNotFound)
	require.Error(t, c.InjectResolved(Named("t"), 1))

	b, err := c.Resolve(context.Background(), Named("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.(*counted).n)
	a, err := c.Resolve(context.Background(), Named("a"))
	require.NoError(t, err)
	assert.Same(t, injected, a)

	require.NoError(t, c.CloseTokens(context.Background(), []Token{Named("b")}))
	assert.Equal(t, []string{"b"}, closed)
	_, cached := c.Resolved(Named("a"))
	assert.True(t, cached)

	require.NoError(t, c.ClearInstances(context.Background()))
	assert.Equal(t, []string{"b", "a"}, closed)
}

func TestContainer_LastRegistrationWins(t *testing.T) {
	c := NewContainer()
	mustRegister(t, c, Value(Named("port"), 8080))
	mustRegister(t, c, Value(Named("port"), 9090))

	v, err := c.Resolve(context.Background(), Named("port"))
	require.NoError(t, err)
	assert.Equal(t, 9090, v)
}

func TestContainer_Warm(t *testing.T) {
	var singletonCalls, transientCalls int32
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("a"), countingFactory(&singletonCalls), nil),
		Factory(Named("b"), countingFactory(&singletonCalls), []Token{Named("a")}),
		Factory(Named("t"), countingFactory(&transientCalls), nil, AsTransient()),
	)

	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&singletonCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&transientCalls))

	_, ok := c.Resolved(Named("b"))
	assert.True(t, ok)

	err := c.Warm(context.Background(), Named("ghost"))
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestContainer_Validate(t *testing.T) {
	c := NewContainer()
	mustRegister(t, c,
		Factory(Named("svc"), countingFactory(new(int32)), []Token{Named("repo"), Named("clock")}),
		Value(Named("clock"), time.Now),
	)

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	var missing DependencyNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, Named("svc"), missing.From)
	assert.Equal(t, Named("repo"), missing.To)

	graph, err := c.Graph()
	require.NoError(t, err)
	require.Len(t, graph.Missing, 1)
	assert.Contains(t, graph.DOT(), "style=dashed")
	assert.Contains(t, graph.Mermaid(), "-.->")

	mustRegister(t, c, Value(Named("repo"), "repo"))
	require.NoError(t, c.Validate())

	mustRegister(t, c, Factory(Named("clock"), countingFactory(new(int32)), []Token{Named("svc")}))
	require.ErrorIs(t, c.Validate(), ErrCircularDependency)
}

func TestContainer_Reset(t *testing.T) {
	var teardowns int32
	c := NewContainer()
	mustRegister(t, c, Factory(Named("a"), countingFactory(new(int32)), nil,
		OnTeardown(func(context.Context, any) error {
			atomic.AddInt32(&teardowns, 1)
			return nil
		}),
	))
	_, err := c.Resolve(context.Background(), Named("a"))
	require.NoError(t, err)

	require.NoError(t, c.Reset(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&teardowns))
	assert.False(t, c.Has(Named("a")))
	assert.Equal(t, 0, c.Registry().Len())

	_, err = c.Resolve(context.Background(), Named("a"))
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestResolveAs_TypeMismatch(t *testing.T) {
	c := NewContainer()
	mustRegister(t, c, Value(Named("port"), 8080))

	_, err := ResolveAs[string](context.Background(), c, Named("port"))
	var mismatch TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "string", mismatch.Expected)
	assert.Equal(t, "int", mismatch.Actual)

	assert.Equal(t, 8080, MustResolve[int](context.Background(), c, Named("port")))
	assert.Panics(t, func() { MustResolve[int](context.Background(), c, Named("ghost")) })
}

func TestContainer_NilContext(t *testing.T) {
	c := NewContainer()
	mustRegister(t, c, Value(Named("v"), 1))

	v, err := c.Resolve(nil, Named("v"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
