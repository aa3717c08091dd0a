package hexy

import (
	"fmt"
	"strings"
)

type GraphNode struct {
	Token    Token  `json:"-"`
	ID       string `json:"id"`
	Strategy string `json:"strategy"`
	Lifetime string `json:"lifetime"`
}

// GraphEdge means "From depends on To".
type GraphEdge struct {
	From Token `json:"-"`
	To   Token `json:"-"`

	FromID string `json:"from"`
	ToID   string `json:"to"`
}

// Graph is a snapshot of the declared dependency graph. It is computed from
// provider declarations alone; nothing is constructed.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	// Missing lists edges whose target has no provider.
	Missing   []GraphEdge `json:"missing,omitempty"`
	TopoOrder []Token     `json:"-"`
}

// Graph returns the dependency graph of every registered provider, with a
// topological order (dependencies first). It fails with
// CircularDependencyError when the declarations contain a cycle.
func (c *Container) Graph() (Graph, error) {
	providers := c.registry.Providers()

	g := Graph{
		Nodes: make([]GraphNode, 0, len(providers)),
		Edges: make([]GraphEdge, 0, len(providers)),
	}
	roots := make([]Token, 0, len(providers))
	for _, p := range providers {
		roots = append(roots, p.token)
		g.Nodes = append(g.Nodes, GraphNode{
			Token:    p.token,
			ID:       p.token.String(),
			Strategy: p.strategy.Kind().String(),
			Lifetime: p.lifetime.String(),
		})
		for _, dep := range p.Deps() {
			e := GraphEdge{From: p.token, To: dep, FromID: p.token.String(), ToID: dep.String()}
			if c.registry.Has(dep) {
				g.Edges = append(g.Edges, e)
			} else {
				g.Missing = append(g.Missing, e)
			}
		}
	}

	topo, cycle := topoSort(c.registry, roots)
	if cycle != nil {
		return Graph{}, CircularDependencyError{Path: cycle}
	}
	g.TopoOrder = topo
	return g, nil
}

// findCycle returns the first dependency cycle reachable from roots, or nil.
func findCycle(reg *Registry, roots []Token) []Token {
	_, cycle := topoSort(reg, roots)
	return cycle
}

// topoSort walks the declared dependencies depth-first from roots. Tokens
// without a provider are skipped; they fail later at resolve time.
func topoSort(reg *Registry, roots []Token) (topo []Token, cycle []Token) {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[Token]uint8, len(roots))
	stack := make([]Token, 0, len(roots))
	stackPos := make(map[Token]int, len(roots))

	var dfs func(tok Token) []Token
	dfs = func(tok Token) []Token {
		switch state[tok] {
		case stateDone:
			return nil
		case stateVisiting:
			path := append([]Token(nil), stack[stackPos[tok]:]...)
			return append(path, tok)
		}

		p, ok := reg.Lookup(tok)
		if !ok {
			state[tok] = stateDone
			return nil
		}

		state[tok] = stateVisiting
		stackPos[tok] = len(stack)
		stack = append(stack, tok)

		for _, dep := range p.Deps() {
			if cycle := dfs(dep); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, tok)
		state[tok] = stateDone
		topo = append(topo, tok)
		return nil
	}

	for _, tok := range roots {
		if cycle := dfs(tok); cycle != nil {
			return nil, cycle
		}
	}
	return topo, nil
}

// DOT exports Graphviz DOT text. Missing dependencies are drawn dashed.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph hexy {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		label := escapeDOT(n.ID) + "\\n(" + escapeDOT(n.Strategy+", "+n.Lifetime) + ")"
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, label))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.FromID]
		to, okTo := aliases[e.ToID]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -> %s;\n", from, to))
	}
	for i, e := range g.Missing {
		from, ok := aliases[e.FromID]
		if !ok {
			continue
		}
		alias := fmt.Sprintf("m%d", i)
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\", style=dashed];\n", alias, escapeDOT(e.ToID)))
		b.WriteString(fmt.Sprintf("  %s -> %s [style=dashed];\n", from, alias))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		label := escapeMermaid(n.ID) + "<br/>(" + escapeMermaid(n.Strategy+", "+n.Lifetime) + ")"
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, label))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.FromID]
		to, okTo := aliases[e.ToID]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
	}
	for i, e := range g.Missing {
		from, ok := aliases[e.FromID]
		if !ok {
			continue
		}
		alias := fmt.Sprintf("m%d", i)
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, escapeMermaid(e.ToID)))
		b.WriteString(fmt.Sprintf("    %s -.-> %s\n", from, alias))
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
