package config

import (
	"fmt"

	hexy "github.com/regd25/hexy-sub004"
)

// Declared is the instance produced by a provider built from a ProviderSpec.
// Resolving a declared token never runs user code; it returns the
// declaration together with the resolved dependencies.
type Declared struct {
	Module string
	Spec   ProviderSpec
	Deps   []any
}

// BuildModules turns the module declarations into hexy modules, in
// declaration order. Every token is a hexy.Named token. Imports and
// re-exports must name declared modules and must not form a cycle.
func (c *Config) BuildModules() ([]*hexy.Module, error) {
	specs := make(map[string]ModuleSpec, len(c.Modules))
	for _, m := range c.Modules {
		specs[m.Name] = m
	}

	built := make(map[string]*hexy.Module, len(c.Modules))
	visiting := make(map[string]bool, len(c.Modules))

	var build func(name string, path []string) (*hexy.Module, error)
	build = func(name string, path []string) (*hexy.Module, error) {
		if m, ok := built[name]; ok {
			return m, nil
		}
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("module %s: not declared", name)
		}
		path = append(path, name)
		if visiting[name] {
			return nil, fmt.Errorf("module import cycle: %v", path)
		}
		visiting[name] = true
		defer delete(visiting, name)

		resolveAll := func(names []string) ([]*hexy.Module, error) {
			out := make([]*hexy.Module, 0, len(names))
			for _, n := range names {
				m, err := build(n, path)
				if err != nil {
					return nil, fmt.Errorf("module %s: %w", spec.Name, err)
				}
				out = append(out, m)
			}
			return out, nil
		}

		imports, err := resolveAll(spec.Imports)
		if err != nil {
			return nil, err
		}
		reexports, err := resolveAll(spec.Reexports)
		if err != nil {
			return nil, err
		}

		providers := make([]*hexy.Provider, 0, len(spec.Providers))
		for _, ps := range spec.Providers {
			p, err := declaredProvider(spec.Name, ps)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}

		exports := make([]hexy.Export, 0, len(spec.Exports)+len(reexports))
		for _, tok := range spec.Exports {
			exports = append(exports, hexy.ExportToken(hexy.Named(tok)))
		}
		for _, m := range reexports {
			exports = append(exports, hexy.ExportModule(m))
		}

		m, err := hexy.NewModule(spec.Name,
			hexy.InLayer(spec.Layer),
			hexy.Providers(providers...),
			hexy.Imports(imports...),
			hexy.Exports(exports...),
		)
		if err != nil {
			return nil, err
		}
		built[name] = m
		return m, nil
	}

	out := make([]*hexy.Module, 0, len(c.Modules))
	for _, spec := range c.Modules {
		m, err := build(spec.Name, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func declaredProvider(module string, ps ProviderSpec) (*hexy.Provider, error) {
	lifetime, err := hexy.ParseLifetime(ps.Lifetime)
	if err != nil {
		return nil, fmt.Errorf("module %s: provider %s: %w", module, ps.Token, err)
	}
	deps := make([]hexy.Token, len(ps.Deps))
	for i, d := range ps.Deps {
		deps[i] = hexy.Named(d)
	}
	return hexy.Factory(hexy.Named(ps.Token), func(resolved ...any) (any, error) {
		return &Declared{Module: module, Spec: ps, Deps: resolved}, nil
	}, deps, hexy.WithLifetime(lifetime)), nil
}

// Application registers the declared modules into a new application.
func (c *Config) Application(opts ...hexy.Option) (*hexy.Application, error) {
	modules, err := c.BuildModules()
	if err != nil {
		return nil, err
	}
	app := hexy.New(opts...)
	if err := app.RegisterModules(modules...); err != nil {
		return nil, err
	}
	return app, nil
}
