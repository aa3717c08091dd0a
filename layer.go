package hexy

import (
	"fmt"
	"sort"
)

// Conventional layer names used by DefaultLayerPolicy.
const (
	LayerDomain         = "domain"
	LayerApplication    = "application"
	LayerInfrastructure = "infrastructure"
	LayerPresentation   = "presentation"
)

// LayerPolicy maps a layer to the layers its modules may import.
type LayerPolicy map[string][]string

// DefaultLayerPolicy is the hexagonal layering: the domain depends on
// nothing outside itself and every outer layer may depend inwards.
func DefaultLayerPolicy() LayerPolicy {
	return LayerPolicy{
		LayerDomain:         {LayerDomain},
		LayerApplication:    {LayerDomain, LayerApplication},
		LayerInfrastructure: {LayerDomain, LayerApplication, LayerInfrastructure},
		LayerPresentation:   {LayerDomain, LayerApplication, LayerPresentation},
	}
}

// Allows reports whether a module in layer from may import one in layer to.
func (p LayerPolicy) Allows(from, to string) bool {
	for _, allowed := range p[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LayerViolation is one import that breaks the layer policy.
type LayerViolation struct {
	Module      string `json:"module" yaml:"module"`
	Layer       string `json:"layer" yaml:"layer"`
	Import      string `json:"import" yaml:"import"`
	ImportLayer string `json:"importLayer" yaml:"importLayer"`
	Reason      string `json:"reason" yaml:"reason"`
}

func (v LayerViolation) String() string {
	return fmt.Sprintf("%s (%s) -> %s (%s): %s", v.Module, v.Layer, v.Import, v.ImportLayer, v.Reason)
}

// ValidateLayerDependencies checks the imports of every registered module,
// and of the modules they import transitively, against policy. A nil policy
// means DefaultLayerPolicy.
//
// The check is advisory: violations are returned, never raised, and the
// caller decides whether any of them is fatal. Modules without a layer tag
// are skipped, as are imports of untagged modules.
func (a *Application) ValidateLayerDependencies(policy LayerPolicy) []LayerViolation {
	return ValidateLayers(a.Modules(), policy)
}

// ValidateLayers is ValidateLayerDependencies over an explicit module list.
func ValidateLayers(modules []*Module, policy LayerPolicy) []LayerViolation {
	if policy == nil {
		policy = DefaultLayerPolicy()
	}

	var out []LayerViolation
	visited := make(map[*Module]struct{})
	var walk func(m *Module)
	walk = func(m *Module) {
		if _, ok := visited[m]; ok {
			return
		}
		visited[m] = struct{}{}

		for _, imp := range m.imports {
			if m.layer != "" && imp.layer != "" {
				if v, bad := checkImport(policy, m, imp); bad {
					out = append(out, v)
				}
			}
			walk(imp)
		}
	}
	for _, m := range modules {
		walk(m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Import < out[j].Import
	})
	return out
}

func checkImport(policy LayerPolicy, m, imp *Module) (LayerViolation, bool) {
	v := LayerViolation{
		Module:      m.name,
		Layer:       m.layer,
		Import:      imp.name,
		ImportLayer: imp.layer,
	}
	if _, known := policy[m.layer]; !known {
		v.Reason = fmt.Sprintf("layer %q is not declared in the policy", m.layer)
		return v, true
	}
	if !policy.Allows(m.layer, imp.layer) {
		v.Reason = fmt.Sprintf("layer %q may not depend on layer %q", m.layer, imp.layer)
		return v, true
	}
	return v, false
}
