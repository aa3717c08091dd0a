package hexy

import (
	"context"
	"fmt"
	"reflect"
)

// Lifetime decides how many instances a provider produces within one
// Container.
type Lifetime uint8

const (
	// Singleton providers are constructed at most once per Container and the
	// instance is cached. This is the default.
	Singleton Lifetime = iota
	// Transient providers are constructed on every resolution and never cached.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("Lifetime(%d)", uint8(l))
	}
}

// ParseLifetime parses the names produced by Lifetime.String. The empty
// string parses as Singleton.
func ParseLifetime(s string) (Lifetime, error) {
	switch s {
	case "", "singleton":
		return Singleton, nil
	case "transient":
		return Transient, nil
	default:
		return 0, fmt.Errorf("unknown lifetime %q", s)
	}
}

// StrategyKind names the construction strategy of a provider.
type StrategyKind uint8

const (
	// ValueKind providers hand out a pre-built instance.
	ValueKind StrategyKind = iota + 1
	// FactoryKind providers call a function with the resolved dependencies.
	FactoryKind
	// RecipeKind providers call a typed Go constructor whose dependency tokens
	// come from its parameter types or an explicit list.
	RecipeKind
)

func (k StrategyKind) String() string {
	switch k {
	case ValueKind:
		return "value"
	case FactoryKind:
		return "factory"
	case RecipeKind:
		return "recipe"
	default:
		return "invalid"
	}
}

// Strategy describes how a provider builds its instance. The set of variants
// is closed: ValueStrategy, FactoryStrategy and RecipeStrategy.
type Strategy interface {
	Kind() StrategyKind
	// Deps returns the dependency tokens in declaration order.
	Deps() []Token

	build(deps []any) (any, error)
}

// ValueStrategy hands out a pre-built value.
type ValueStrategy struct {
	Value any
}

func (ValueStrategy) Kind() StrategyKind { return ValueKind }

func (ValueStrategy) Deps() []Token { return nil }

func (s ValueStrategy) build([]any) (any, error) { return s.Value, nil }

// FactoryFunc receives the resolved dependencies positionally, in the order
// they were declared.
type FactoryFunc func(deps ...any) (any, error)

// FactoryStrategy builds instances with a FactoryFunc.
type FactoryStrategy struct {
	DependsOn []Token
	Fn        FactoryFunc
}

func (FactoryStrategy) Kind() StrategyKind { return FactoryKind }

func (s FactoryStrategy) Deps() []Token { return append([]Token(nil), s.DependsOn...) }

func (s FactoryStrategy) build(deps []any) (any, error) { return s.Fn(deps...) }

// RecipeStrategy builds instances with a Go constructor function of shape
// func(A, B, ...) T or func(A, B, ...) (T, error).
type RecipeStrategy struct {
	DependsOn []Token
	fn        reflect.Value
}

func (RecipeStrategy) Kind() StrategyKind { return RecipeKind }

func (s RecipeStrategy) Deps() []Token { return append([]Token(nil), s.DependsOn...) }

// Out returns the constructor's first result type.
func (s RecipeStrategy) Out() reflect.Type {
	if !s.fn.IsValid() {
		return nil
	}
	return s.fn.Type().Out(0)
}

func (s RecipeStrategy) build(deps []any) (any, error) {
	fnType := s.fn.Type()
	args := make([]reflect.Value, len(deps))
	for i, dep := range deps {
		in := fnType.In(i)
		if dep == nil {
			args[i] = reflect.Zero(in)
			continue
		}
		v := reflect.ValueOf(dep)
		if !v.Type().AssignableTo(in) {
			return nil, fmt.Errorf("argument %d: %s is not assignable to %s", i, v.Type(), in)
		}
		args[i] = v
	}

	out := s.fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// Hook is a lifecycle callback receiving the instance it was registered for.
type Hook func(ctx context.Context, instance any) error

// Provider is a registered construction recipe: the triple (token, strategy,
// lifetime) plus optional lifecycle hooks.
//
// Providers are immutable after construction and are shared by pointer, so
// the same *Provider may appear in several modules and applications.
type Provider struct {
	token    Token
	strategy Strategy
	lifetime Lifetime

	onConstruct Hook
	onTeardown  Hook

	// err records a construction mistake detected by the helper that built
	// the provider; it is reported by Validate.
	err error
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLifetime sets the provider lifetime.
func WithLifetime(l Lifetime) ProviderOption {
	return func(p *Provider) { p.lifetime = l }
}

// AsTransient is shorthand for WithLifetime(Transient).
func AsTransient() ProviderOption { return WithLifetime(Transient) }

// OnConstruct registers a post-construction hook. It runs exactly once for
// every instance the provider produces, after the instance is cached.
func OnConstruct(h Hook) ProviderOption {
	return func(p *Provider) { p.onConstruct = h }
}

// OnTeardown registers a pre-teardown hook, run once for each cached
// instance when the container clears its instances. Without one, instances
// implementing io.Closer are closed instead.
func OnTeardown(h Hook) ProviderOption {
	return func(p *Provider) { p.onTeardown = h }
}

// NewProvider assembles a provider from an explicit strategy.
func NewProvider(tok Token, s Strategy, opts ...ProviderOption) *Provider {
	p := &Provider{token: tok, strategy: s, lifetime: Singleton}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Value registers a pre-built instance.
func Value(tok Token, v any, opts ...ProviderOption) *Provider {
	return NewProvider(tok, ValueStrategy{Value: v}, opts...)
}

// Factory registers fn, called with the instances of deps in order.
func Factory(tok Token, fn FactoryFunc, deps []Token, opts ...ProviderOption) *Provider {
	return NewProvider(tok, FactoryStrategy{DependsOn: append([]Token(nil), deps...), Fn: fn}, opts...)
}

// Recipe registers a Go constructor. Each parameter of type P becomes a
// dependency on Type[P], in parameter order, so the dependency list is read
// from the constructor's signature without calling it.
//
//	hexy.Recipe(hexy.Type[*UserService](), NewUserService)
func Recipe(tok Token, constructor any, opts ...ProviderOption) *Provider {
	fn, err := checkConstructor(constructor)
	if err != nil {
		p := NewProvider(tok, RecipeStrategy{}, opts...)
		p.err = err
		return p
	}
	fnType := fn.Type()
	deps := make([]Token, fnType.NumIn())
	for i := range deps {
		deps[i] = TypeOf(fnType.In(i))
	}
	return NewProvider(tok, RecipeStrategy{DependsOn: deps, fn: fn}, opts...)
}

// RecipeWith registers a Go constructor with an explicit dependency list,
// for parameters that are satisfied by named or handle tokens. The list
// length must match the constructor's arity.
func RecipeWith(tok Token, constructor any, deps []Token, opts ...ProviderOption) *Provider {
	fn, err := checkConstructor(constructor)
	if err == nil && fn.Type().NumIn() != len(deps) {
		err = fmt.Errorf("constructor takes %d arguments, %d dependencies declared", fn.Type().NumIn(), len(deps))
	}
	p := NewProvider(tok, RecipeStrategy{DependsOn: append([]Token(nil), deps...), fn: fn}, opts...)
	p.err = err
	return p
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func checkConstructor(constructor any) (reflect.Value, error) {
	if constructor == nil {
		return reflect.Value{}, fmt.Errorf("constructor is nil")
	}
	fn := reflect.ValueOf(constructor)
	typ := fn.Type()
	if typ.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("constructor must be a function, got %s", typ)
	}
	if fn.IsNil() {
		return reflect.Value{}, fmt.Errorf("constructor is nil")
	}
	if typ.IsVariadic() {
		return reflect.Value{}, fmt.Errorf("constructor must not be variadic")
	}
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return reflect.Value{}, fmt.Errorf("constructor must return (T) or (T, error)")
	}
	if typ.NumOut() == 2 && typ.Out(1) != errorType {
		return reflect.Value{}, fmt.Errorf("second return value must be error, got %s", typ.Out(1))
	}
	return fn, nil
}

// Token returns the token the provider builds.
func (p *Provider) Token() Token { return p.token }

// Strategy returns the construction strategy.
func (p *Provider) Strategy() Strategy { return p.strategy }

// Lifetime returns the provider lifetime.
func (p *Provider) Lifetime() Lifetime { return p.lifetime }

// Deps returns the declared dependency tokens in order.
func (p *Provider) Deps() []Token {
	if p.strategy == nil {
		return nil
	}
	return p.strategy.Deps()
}

// Validate reports whether the provider can be registered.
func (p *Provider) Validate() error {
	if p == nil {
		return InvalidProviderError{Reason: "provider is nil"}
	}
	if p.token.IsZero() {
		return InvalidProviderError{Reason: "token is zero"}
	}
	if p.err != nil {
		return InvalidProviderError{Token: p.token, Reason: p.err.Error()}
	}
	if p.lifetime != Singleton && p.lifetime != Transient {
		return InvalidProviderError{Token: p.token, Reason: "unknown lifetime " + p.lifetime.String()}
	}
	switch s := p.strategy.(type) {
	case nil:
		return InvalidProviderError{Token: p.token, Reason: "strategy is nil"}
	case ValueStrategy:
	case FactoryStrategy:
		if s.Fn == nil {
			return InvalidProviderError{Token: p.token, Reason: "factory func is nil"}
		}
	case RecipeStrategy:
		if !s.fn.IsValid() {
			return InvalidProviderError{Token: p.token, Reason: "recipe has no constructor"}
		}
	default:
		return InvalidProviderError{Token: p.token, Reason: fmt.Sprintf("unsupported strategy %T", s)}
	}
	for i, dep := range p.Deps() {
		if dep.IsZero() {
			return InvalidProviderError{Token: p.token, Reason: fmt.Sprintf("dependency %d is a zero token", i)}
		}
	}
	return nil
}

func (p *Provider) String() string {
	kind := StrategyKind(0)
	if p.strategy != nil {
		kind = p.strategy.Kind()
	}
	return fmt.Sprintf("%s (%s, %s)", p.token, kind, p.lifetime)
}
