package store

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph is the reference graph between registered top-level types.
// An edge From -> To means entities of To hold references into From, so
// From's repair should run first for a single pass to settle a cascade.
// References from or to sub types are attributed to their parent type.
type DependencyGraph struct {
	// Nodes lists top-level type names in registration order.
	Nodes []string `json:"nodes"`

	// Edges lists every distinct reference edge.
	Edges []DependencyEdge `json:"edges"`

	// Levels groups the nodes by topological depth.
	Levels [][]string `json:"levels"`

	position map[string]int
	out      map[string][]string
	in       map[string][]string
}

// DependencyEdge is one declared reference between types.
type DependencyEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Field string `json:"field"`
	Many  bool   `json:"many,omitempty"`
}

// OrderDiagnostic describes a reference whose repair may need more than one
// reconciliation pass to converge.
type OrderDiagnostic struct {
	Type    string `json:"type"`
	Field   string `json:"field"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// DependencyGraph builds the reference graph of the registry. It fails when
// the references form a cycle.
func (s *Store) DependencyGraph() (*DependencyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &DependencyGraph{
		Nodes:    make([]string, 0, len(s.types)),
		Edges:    make([]DependencyEdge, 0),
		position: make(map[string]int, len(s.types)),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
	}
	for _, t := range s.types {
		g.Nodes = append(g.Nodes, t.name)
		g.position[t.name] = t.position
	}

	seen := make(map[[2]string]bool)
	for _, top := range s.types {
		for _, entry := range append([]*registered{top}, top.subs...) {
			for _, ref := range entry.def.References {
				target, ok := s.byName[ref.Target]
				if !ok {
					continue
				}
				from := rootOf(target).name
				if from == top.name {
					continue
				}
				g.Edges = append(g.Edges, DependencyEdge{
					From:  from,
					To:    entry.name,
					Field: ref.Field,
					Many:  ref.Many,
				})
				if seen[[2]string{from, top.name}] {
					continue
				}
				seen[[2]string{from, top.name}] = true
				g.out[from] = append(g.out[from], top.name)
				g.in[top.name] = append(g.in[top.name], from)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, newError(ErrorClassRegistration, ErrCodeDependencyCycle,
			fmt.Sprintf("circular reference detected: %s", strings.Join(cycle, " -> ")), nil)
	}
	g.computeLevels()
	return g, nil
}

func rootOf(t *registered) *registered {
	if t.parent != nil {
		return t.parent
	}
	return t
}

// findCycle runs a depth-first search and returns the first cycle found.
func (g *DependencyGraph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(node string, path []string) []string
	visit = func(node string, path []string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.out[node] {
			if !visited[next] {
				if cycle := visit(next, path); cycle != nil {
					return cycle
				}
				continue
			}
			if onStack[next] {
				for i, id := range path {
					if id == next {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, next)
					}
				}
			}
		}
		onStack[node] = false
		return nil
	}

	for _, node := range g.Nodes {
		if !visited[node] {
			if cycle := visit(node, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// computeLevels assigns topological levels with Kahn's algorithm. Nodes in a
// level keep registration order.
func (g *DependencyGraph) computeLevels() {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, node := range g.Nodes {
		inDegree[node] = len(g.in[node])
	}

	current := make([]string, 0)
	for _, node := range g.Nodes {
		if inDegree[node] == 0 {
			current = append(current, node)
		}
	}

	g.Levels = make([][]string, 0)
	for len(current) > 0 {
		g.Levels = append(g.Levels, current)
		next := make([]string, 0)
		for _, node := range current {
			for _, dependent := range g.out[node] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.SliceStable(next, func(i, j int) bool {
			return g.position[next[i]] < g.position[next[j]]
		})
		current = next
	}
}

// Order flattens the levels into one dependency-respecting sequence.
func (g *DependencyGraph) Order() []string {
	out := make([]string, 0, len(g.Nodes))
	for _, level := range g.Levels {
		out = append(out, level...)
	}
	return out
}

// ToDOT renders the graph in Graphviz DOT format. Single references are
// solid edges, multi-valued references dashed.
func (g *DependencyGraph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph EntityTypes {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, nodes := range g.Levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, node := range nodes {
			sb.WriteString(fmt.Sprintf("    %q [label=\"%s\\n#%d\"];\n", node, node, g.position[node]))
		}
		sb.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		style := "style=solid"
		if e.Many {
			style = "style=dashed"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q [label=%q, %s];\n", e.From, rootName(e.To), e.Field, style))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func rootName(qualified string) string {
	if i := strings.IndexByte(qualified, '.'); i >= 0 {
		return qualified[:i]
	}
	return qualified
}

// OrderDiagnostics lists references that a single reconciliation pass in
// registration order may not settle: targets registered after the
// referencing type, and targets that are not registered at all.
func (s *Store) OrderDiagnostics() []OrderDiagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []OrderDiagnostic
	for _, top := range s.types {
		for _, entry := range append([]*registered{top}, top.subs...) {
			for _, ref := range entry.def.References {
				target, ok := s.byName[ref.Target]
				if !ok {
					out = append(out, OrderDiagnostic{
						Type:    entry.name,
						Field:   ref.Field,
						Target:  ref.Target,
						Message: "target type is not registered, reference is left unrepaired",
					})
					continue
				}
				root := rootOf(target)
				if root.position > top.position {
					out = append(out, OrderDiagnostic{
						Type:   entry.name,
						Field:  ref.Field,
						Target: ref.Target,
						Message: fmt.Sprintf("target is registered after %s, a cascade through it needs a second pass",
							top.name),
					})
				}
			}
		}
	}
	return out
}
