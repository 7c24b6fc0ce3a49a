// Package scheduler implements the DAG scheduler (C6): it takes the
// resolver's ordered step list (or several, merged from independent
// tool installs), adds the implicit PM-lock and service-serialization
// edges §4.6 requires on top of the resolver's explicit depends_on
// edges, validates the result, and dispatches ready steps to a
// worker-budgeted pool.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/tsukumogami/provisor/internal/resolver"
)

// pmFamilies are the distro families (the "family" metadata the
// resolver puts on a packages step) whose package manager holds an
// exclusive lock, so their steps must be forced into a total order:
// debian (apt/dpkg), rhel (dnf/yum, rpmdb), suse (zypper), arch (pacman).
var pmFamilies = map[string]bool{
	"debian": true, "rhel": true, "suse": true, "arch": true,
}

// node is one step plus its resolved predecessor set (explicit +
// implicit edges), keyed by step ID for O(1) lookup during dispatch.
type node struct {
	step        resolver.Step
	dependsOn   map[string]bool
	dependents  []string
	pmFamily    string // non-empty if this is a "packages" step
	serviceUnit string // non-empty if this is a "service" step
}

// DAG is a validated, edge-complete dependency graph over a step set.
type DAG struct {
	nodes map[string]*node
	order []string // insertion order, used to break ties deterministically
}

// Build assembles a DAG from one or more resolver plans' steps,
// merging their step ID namespaces (the resolver guarantees IDs are
// unique within a plan via its own counter, but two merged plans can
// collide if both start counting from 1; whenever more than one plan
// is given, Build prefixes every step id with "p<plan index>-").
func Build(plans ...*resolver.Plan) (*DAG, error) {
	d := &DAG{nodes: make(map[string]*node)}

	for pi, p := range plans {
		if p == nil {
			continue
		}
		idPrefix := ""
		if len(plans) > 1 {
			idPrefix = fmt.Sprintf("p%d-", pi)
		}
		remap := make(map[string]string, len(p.Steps))
		for _, s := range p.Steps {
			remap[s.ID] = idPrefix + s.ID
		}
		for _, s := range p.Steps {
			s.ID = remap[s.ID]
			deps := make([]string, 0, len(s.DependsOn))
			for _, dep := range s.DependsOn {
				deps = append(deps, remap[dep])
			}
			s.DependsOn = deps

			n := &node{step: s, dependsOn: make(map[string]bool, len(deps))}
			for _, dep := range deps {
				n.dependsOn[dep] = true
			}
			if s.Type == "packages" {
				if family, ok := s.Metadata["family"].(string); ok && pmFamilies[family] {
					n.pmFamily = family
				}
			}
			if s.Type == "service" {
				if unit, ok := s.Metadata["unit"].(string); ok {
					n.serviceUnit = unit
				}
			}
			if _, exists := d.nodes[s.ID]; exists {
				return nil, fmt.Errorf("scheduler: duplicate step id %q", s.ID)
			}
			d.nodes[s.ID] = n
			d.order = append(d.order, s.ID)
		}
	}

	d.addImplicitEdges()

	for id, n := range d.nodes {
		for dep := range n.dependsOn {
			if _, ok := d.nodes[dep]; !ok {
				return nil, fmt.Errorf("scheduler: step %q depends on unknown step %q", id, dep)
			}
		}
	}
	if cyclePath, ok := d.findCycle(); ok {
		return nil, fmt.Errorf("scheduler: dependency cycle: %v", cyclePath)
	}

	d.computeDependents()
	return d, nil
}

// addImplicitEdges forces a total order within each PM family and
// within each service unit, following plan/insertion order (the
// "natural plan order" §4.6 specifies).
func (d *DAG) addImplicitEdges() {
	lastByFamily := make(map[string]string)
	lastByUnit := make(map[string]string)
	for _, id := range d.order {
		n := d.nodes[id]
		if n.pmFamily != "" {
			if prev, ok := lastByFamily[n.pmFamily]; ok {
				n.dependsOn[prev] = true
			}
			lastByFamily[n.pmFamily] = id
		}
		if n.serviceUnit != "" {
			if prev, ok := lastByUnit[n.serviceUnit]; ok {
				n.dependsOn[prev] = true
			}
			lastByUnit[n.serviceUnit] = id
		}
	}
}

func (d *DAG) computeDependents() {
	for id, n := range d.nodes {
		for dep := range n.dependsOn {
			d.nodes[dep].dependents = append(d.nodes[dep].dependents, id)
		}
	}
	for _, n := range d.nodes {
		sort.Strings(n.dependents)
	}
}

// findCycle runs a DFS with a visiting set, returning the cycle's step
// ids if one is found.
func (d *DAG) findCycle() ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.nodes))
	var path []string

	var visit func(id string) ([]string, bool)
	visit = func(id string) ([]string, bool) {
		color[id] = gray
		path = append(path, id)
		deps := make([]string, 0, len(d.nodes[id].dependsOn))
		for dep := range d.nodes[id].dependsOn {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case gray:
				return append(append([]string{}, path...), dep), true
			case white:
				if cyc, found := visit(dep); found {
					return cyc, true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil, false
	}

	for _, id := range d.order {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}
	return nil, false
}

// Steps returns every step in the DAG, deterministic insertion order.
func (d *DAG) Steps() []resolver.Step {
	out := make([]resolver.Step, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id].step)
	}
	return out
}
