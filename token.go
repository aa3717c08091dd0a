package hexy

import (
	"reflect"

	"github.com/google/uuid"
)

// TokenKind tells which identity a Token carries.
type TokenKind uint8

const (
	// TypeToken identifies a contract by its static Go type.
	TypeToken TokenKind = iota + 1
	// NameToken identifies a contract by a string name.
	NameToken
	// HandleToken identifies a contract by a dedicated unique handle.
	HandleToken
)

func (k TokenKind) String() string {
	switch k {
	case TypeToken:
		return "type"
	case NameToken:
		return "name"
	case HandleToken:
		return "handle"
	default:
		return "invalid"
	}
}

// Token is the identity of a requested contract.
//
// Tokens are comparable values and can be used as map keys. Two tokens are
// equal when they carry the same kind and the same nominal identity: the same
// Go type, the same name, or the same handle.
type Token struct {
	kind   TokenKind
	name   string
	typ    reflect.Type
	handle uuid.UUID
}

// Type returns the token for the static Go type T.
//
// Interface types are supported through the type parameter directly:
//
//	hexy.Type[Logger]()
//	hexy.Type[*PostgresRepository]()
func Type[T any]() Token {
	return TypeOf(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeOf returns the token for t. A nil t yields the zero Token.
func TypeOf(t reflect.Type) Token {
	if t == nil {
		return Token{}
	}
	return Token{kind: TypeToken, name: typeName(t), typ: t}
}

// Named returns the token for a string name.
func Named(name string) Token {
	if name == "" {
		return Token{}
	}
	return Token{kind: NameToken, name: name}
}

// NewHandle returns a fresh token that is equal only to itself and its copies.
// The name is a label for diagnostics and does not take part in equality.
func NewHandle(name string) Token {
	return Token{kind: HandleToken, name: name, handle: uuid.New()}
}

// Kind returns the token kind. The zero Token has kind 0.
func (t Token) Kind() TokenKind { return t.kind }

// Name returns the diagnostic name: the type name, the string name or the
// handle label.
func (t Token) Name() string { return t.name }

// GoType returns the Go type for TypeToken tokens and nil otherwise.
func (t Token) GoType() reflect.Type { return t.typ }

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool { return t.kind == 0 }

func (t Token) String() string {
	switch t.kind {
	case TypeToken, NameToken:
		return t.kind.String() + ":" + t.name
	case HandleToken:
		return "handle:" + t.name + "#" + t.handle.String()
	default:
		return "<zero token>"
	}
}

// typeName renders a package-qualified name, which unlike reflect.Type.String
// cannot collide between two packages sharing a base name.
func typeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	case reflect.Map:
		return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
	default:
		return t.String()
	}
}
