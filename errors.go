package hexy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderNotFound matches ProviderNotFoundError and
	// DependencyNotFoundError.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrCircularDependency matches CircularDependencyError.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrConstructionFailed matches ConstructionError.
	ErrConstructionFailed = errors.New("construction failed")

	// ErrAlreadyShutdown is returned by an Application once Shutdown has
	// been called: by later Shutdown calls, Resolve and RegisterModule.
	ErrAlreadyShutdown = errors.New("application already shut down")
)

// ResolveError is implemented by the three failures Resolve produces on its
// own: ProviderNotFoundError, CircularDependencyError and ConstructionError.
type ResolveError interface {
	error
	// Requested returns the token whose resolution failed.
	Requested() Token
}

// ProviderNotFoundError means no provider is registered for Token.
type ProviderNotFoundError struct {
	Token Token
}

func (e ProviderNotFoundError) Error() string {
	return "provider not found: " + e.Token.String()
}

func (e ProviderNotFoundError) Requested() Token { return e.Token }

func (e ProviderNotFoundError) Is(target error) bool { return target == ErrProviderNotFound }

// CircularDependencyError means a token was requested again while it was
// still under construction. Path starts and ends with the re-entered token.
type CircularDependencyError struct {
	Path []Token
}

func (e CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return "circular dependency detected: " + joinTokens(e.Path, " -> ")
}

func (e CircularDependencyError) Requested() Token {
	if len(e.Path) == 0 {
		return Token{}
	}
	return e.Path[len(e.Path)-1]
}

func (e CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// ConstructionError means the strategy or a lifecycle hook of Token failed.
// Err is the original failure, untouched.
type ConstructionError struct {
	Token Token
	Err   error
}

func (e ConstructionError) Error() string {
	return fmt.Sprintf("construct %s: %v", e.Token.String(), e.Err)
}

func (e ConstructionError) Requested() Token { return e.Token }

func (e ConstructionError) Unwrap() error { return e.Err }

func (e ConstructionError) Is(target error) bool { return target == ErrConstructionFailed }

// PanicError carries a value recovered from a panicking provider body.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// DependencyNotFoundError is reported by Container.Validate when From
// declares a dependency on a token without a provider.
type DependencyNotFoundError struct {
	From Token
	To   Token
}

func (e DependencyNotFoundError) Error() string {
	return fmt.Sprintf("dependency not found: %s -> %s", e.From.String(), e.To.String())
}

func (e DependencyNotFoundError) Is(target error) bool { return target == ErrProviderNotFound }

// InvalidProviderError means a provider was rejected at registration.
type InvalidProviderError struct {
	Token  Token
	Reason string
}

func (e InvalidProviderError) Error() string {
	if e.Token.IsZero() {
		return "invalid provider: " + e.Reason
	}
	return fmt.Sprintf("invalid provider %s: %s", e.Token.String(), e.Reason)
}

// TypeMismatchError means ResolveAs could not assert the instance to the
// requested type.
type TypeMismatchError struct {
	Token    Token
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for %s: expected=%s actual=%s",
		e.Token.String(), e.Expected, e.Actual)
}

func joinTokens(tokens []Token, sep string) string {
	parts := make([]string, len(tokens))
	for i := range tokens {
		parts[i] = tokens[i].String()
	}
	return strings.Join(parts, sep)
}
