package hexy

import "fmt"

// ExportKind tells which item an Export carries.
type ExportKind uint8

const (
	// ExportsToken exports the module's own provider for a token.
	ExportsToken ExportKind = iota + 1
	// ExportsProvider exports the module's own provider for the provider's
	// token.
	ExportsProvider
	// ExportsModule re-exports the exported surface of another module.
	ExportsModule
)

func (k ExportKind) String() string {
	switch k {
	case ExportsToken:
		return "token"
	case ExportsProvider:
		return "provider"
	case ExportsModule:
		return "module"
	default:
		return "invalid"
	}
}

// Export is one entry of a module's export list: a token, a provider or a
// module. Build it with ExportToken, ExportProvider or ExportModule.
type Export struct {
	kind     ExportKind
	token    Token
	provider *Provider
	module   *Module
}

// ExportToken exports tok.
func ExportToken(tok Token) Export { return Export{kind: ExportsToken, token: tok} }

// ExportProvider exports p's token.
func ExportProvider(p *Provider) Export { return Export{kind: ExportsProvider, provider: p} }

// ExportModule re-exports m's exported surface (never its internal providers).
func ExportModule(m *Module) Export { return Export{kind: ExportsModule, module: m} }

// Kind returns the export kind.
func (e Export) Kind() ExportKind { return e.kind }

func (e Export) String() string {
	switch e.kind {
	case ExportsToken:
		return "token " + e.token.String()
	case ExportsProvider:
		return "provider " + e.provider.token.String()
	case ExportsModule:
		return "module " + e.module.name
	default:
		return "invalid export"
	}
}

// Module is a named bundle of providers with explicit visibility: importers
// only see what the module exports.
//
// A Module is immutable once built and may be shared between applications.
type Module struct {
	name      string
	layer     string
	providers []*Provider
	imports   []*Module
	exports   []Export
}

// ModuleOption configures a Module under construction.
type ModuleOption func(*Module)

// Providers adds providers owned by the module.
func Providers(ps ...*Provider) ModuleOption {
	return func(m *Module) { m.providers = append(m.providers, ps...) }
}

// Imports adds modules whose exported providers this module can use.
func Imports(ms ...*Module) ModuleOption {
	return func(m *Module) { m.imports = append(m.imports, ms...) }
}

// Exports adds items to the export list.
func Exports(es ...Export) ModuleOption {
	return func(m *Module) { m.exports = append(m.exports, es...) }
}

// ExportsTokens is shorthand for Exports with one ExportToken per token.
func ExportsTokens(toks ...Token) ModuleOption {
	return func(m *Module) {
		for _, tok := range toks {
			m.exports = append(m.exports, ExportToken(tok))
		}
	}
}

// InLayer tags the module with an architectural layer, checked by
// Application.ValidateLayerDependencies.
func InLayer(layer string) ModuleOption {
	return func(m *Module) { m.layer = layer }
}

// NewModule builds a module. It fails on an empty name, a nil provider,
// a nil import or a malformed export.
//
// Exporting a token the module has no provider for is not an error: the
// export contributes nothing, and a consumer relying on it fails at resolve
// time with ProviderNotFoundError. This keeps forward declarations possible.
func NewModule(name string, opts ...ModuleOption) (*Module, error) {
	if name == "" {
		return nil, fmt.Errorf("new module: name is empty")
	}
	m := &Module{name: name}
	for _, opt := range opts {
		opt(m)
	}

	for i, p := range m.providers {
		if p == nil {
			return nil, fmt.Errorf("new module %s: provider %d is nil", name, i)
		}
	}
	for i, imp := range m.imports {
		if imp == nil {
			return nil, fmt.Errorf("new module %s: import %d is nil", name, i)
		}
	}
	for i, e := range m.exports {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("new module %s: export %d: %w", name, i, err)
		}
	}
	return m, nil
}

// MustModule is like NewModule but panics on error; intended for
// package-level module declarations.
func MustModule(name string, opts ...ModuleOption) *Module {
	m, err := NewModule(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (e Export) validate() error {
	switch e.kind {
	case ExportsToken:
		if e.token.IsZero() {
			return fmt.Errorf("zero token")
		}
	case ExportsProvider:
		if e.provider == nil {
			return fmt.Errorf("nil provider")
		}
	case ExportsModule:
		if e.module == nil {
			return fmt.Errorf("nil module")
		}
	default:
		return fmt.Errorf("unknown export kind %d", e.kind)
	}
	return nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Layer returns the layer tag, empty when untagged.
func (m *Module) Layer() string { return m.layer }

// Imports returns the imported modules.
func (m *Module) Imports() []*Module { return append([]*Module(nil), m.imports...) }

// Exports returns the export list.
func (m *Module) Exports() []Export { return append([]Export(nil), m.exports...) }

// OwnProviders returns the providers declared by the module itself.
func (m *Module) OwnProviders() []*Provider { return append([]*Provider(nil), m.providers...) }

// AllProviders returns the module's own providers followed by the exported
// providers of each imported module, in import order. Internal providers of
// imported modules are never included.
func (m *Module) AllProviders() []*Provider {
	out := append([]*Provider(nil), m.providers...)
	for _, imp := range m.imports {
		out = append(out, imp.ExportedProviders()...)
	}
	return out
}

// ExportedProviders returns the own providers whose token is exported,
// followed by the exported providers of every module listed in the exports.
func (m *Module) ExportedProviders() []*Provider {
	exported := make(map[Token]struct{}, len(m.exports))
	var reexports []*Provider
	for _, e := range m.exports {
		switch e.kind {
		case ExportsToken:
			exported[e.token] = struct{}{}
		case ExportsProvider:
			exported[e.provider.token] = struct{}{}
		case ExportsModule:
			reexports = append(reexports, e.module.ExportedProviders()...)
		}
	}

	out := make([]*Provider, 0, len(exported)+len(reexports))
	for _, p := range m.providers {
		if _, ok := exported[p.token]; ok {
			out = append(out, p)
		}
	}
	return append(out, reexports...)
}

// ExportedTokens returns the tokens of ExportedProviders, without
// duplicates, in order.
func (m *Module) ExportedTokens() []Token {
	providers := m.ExportedProviders()
	seen := make(map[Token]struct{}, len(providers))
	out := make([]Token, 0, len(providers))
	for _, p := range providers {
		if _, ok := seen[p.token]; ok {
			continue
		}
		seen[p.token] = struct{}{}
		out = append(out, p.token)
	}
	return out
}

func (m *Module) String() string { return "module " + m.name }
