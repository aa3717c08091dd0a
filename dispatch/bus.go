// Package dispatch routes commands and queries to handlers resolved from a
// hexy container by naming convention: the handler of a message whose Go
// type is named CreateUser is registered under hexy.Named("handler:CreateUser").
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	hexy "github.com/regd25/hexy-sub004"
)

// ErrHandlerNotFound matches HandlerNotFoundError.
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerNotFoundError means no handler is registered for the message.
type HandlerNotFoundError struct {
	Message string
	Token   hexy.Token
}

func (e HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for %s (%s)", e.Message, e.Token.String())
}

func (e HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }

// InvalidHandlerError means the instance registered under a handler token
// does not implement Handler.
type InvalidHandlerError struct {
	Token  hexy.Token
	Actual string
}

func (e InvalidHandlerError) Error() string {
	return fmt.Sprintf("%s resolved to %s, which does not implement dispatch.Handler", e.Token.String(), e.Actual)
}

// Handler handles one kind of message.
type Handler interface {
	Handle(ctx context.Context, msg any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, msg any) (any, error) { return f(ctx, msg) }

// MessageName returns the name of msg's Go type, with pointers dereferenced.
func MessageName(msg any) string {
	t := reflect.TypeOf(msg)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// HandlerToken returns the token the handler of msg is registered under.
func HandlerToken(msg any) hexy.Token {
	return hexy.Named("handler:" + MessageName(msg))
}

// HandlerTokenFor is HandlerToken for the message type M.
func HandlerTokenFor[M any]() hexy.Token {
	t := reflect.TypeOf((*M)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return hexy.Named("handler:" + t.Name())
}

// Provide returns a provider registering h as the handler of M.
func Provide[M any](h Handler, opts ...hexy.ProviderOption) *hexy.Provider {
	return hexy.Value(HandlerTokenFor[M](), h, opts...)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// Bus dispatches messages to the handlers found in a resolver.
type Bus struct {
	resolver hexy.Resolver
	logger   *zap.Logger
}

// NewBus returns a bus resolving handlers from r.
func NewBus(r hexy.Resolver, opts ...Option) *Bus {
	b := &Bus{resolver: r, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dispatch resolves the handler of msg and calls it. The context passed to
// the handler carries a correlation id, reused when ctx already has one.
//
// A missing handler yields HandlerNotFoundError. Any other resolution
// failure, including a missing dependency of the handler, is returned as is.
func (b *Bus) Dispatch(ctx context.Context, msg any) (any, error) {
	if msg == nil {
		return nil, fmt.Errorf("dispatch: message is nil")
	}
	name := MessageName(msg)
	if name == "" {
		return nil, fmt.Errorf("dispatch: message of type %T has no type name", msg)
	}
	tok := HandlerToken(msg)

	ctx, id := ensureCorrelationID(ctx)
	log := b.logger.With(zap.String("message", name), zap.String("correlation_id", id))

	v, err := b.resolver.Resolve(ctx, tok)
	if err != nil {
		var notFound hexy.ProviderNotFoundError
		if errors.As(err, &notFound) && notFound.Token == tok {
			log.Warn("no handler registered")
			return nil, HandlerNotFoundError{Message: name, Token: tok}
		}
		return nil, err
	}
	h, ok := v.(Handler)
	if !ok {
		return nil, InvalidHandlerError{Token: tok, Actual: fmt.Sprintf("%T", v)}
	}

	start := time.Now()
	out, err := h.Handle(ctx, msg)
	if err != nil {
		log.Debug("message failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}
	log.Debug("message handled", zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Send dispatches msg and asserts the result to R.
func Send[R any](ctx context.Context, b *Bus, msg any) (R, error) {
	var zero R
	out, err := b.Dispatch(ctx, msg)
	if err != nil {
		return zero, err
	}
	typed, ok := out.(R)
	if !ok {
		return zero, fmt.Errorf("dispatch %s: result is %T, want %s",
			MessageName(msg), out, reflect.TypeOf((*R)(nil)).Elem())
	}
	return typed, nil
}

type correlationKey struct{}

// WithCorrelationID returns a context carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id carried by ctx.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

func ensureCorrelationID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id, ok := CorrelationID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
