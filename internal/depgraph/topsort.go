// Package depgraph implements Kahn's-algorithm topological sort, used
// both to order extension activation (dependencies before dependents)
// and to resolve task dependency chains.
package depgraph

import (
	"sort"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Graph maps a node to the list of nodes that depend on it (its
// dependents). A node with no entry is treated as having no
// dependents, not as missing.
type Graph map[string][]string

// TopologicalSort returns nodes in dependency order — a node always
// appears after everything it (transitively) depends on — given the
// full vertex set and a dependents graph. It reports CircularDependency
// when the sort cannot place every node, i.e. a cycle exists.
func TopologicalSort(nodes []string, graph Graph) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, dependents := range graph {
		for _, d := range dependents {
			if _, ok := inDegree[d]; ok {
				inDegree[d]++
			}
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue) // deterministic output for equal-priority nodes

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		var freed []string
		for _, d := range graph[n] {
			if _, ok := inDegree[d]; !ok {
				continue
			}
			inDegree[d]--
			if inDegree[d] == 0 {
				freed = append(freed, d)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(order) < len(nodes) {
		return nil, coreerrors.CircularDependency("dependency graph contains a cycle among %d unresolved nodes", len(nodes)-len(order))
	}
	return order, nil
}

// DependsOnGraph inverts a dependency map (node -> its dependencies)
// into the dependents graph TopologicalSort expects.
func DependsOnGraph(dependsOn map[string][]string) Graph {
	g := make(Graph)
	for node, deps := range dependsOn {
		for _, dep := range deps {
			g[dep] = append(g[dep], node)
		}
	}
	return g
}

// TransitiveDependencies returns root plus every node root
// (transitively) depends on, via DFS with a visiting set so a cycle is
// reported as CircularDependency rather than recursing forever.
func TransitiveDependencies(root string, dependsOn map[string][]string) ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []string

	var visit func(node string) error
	visit = func(node string) error {
		if visited[node] {
			return nil
		}
		if visiting[node] {
			return coreerrors.CircularDependency("cycle detected at node %q", node)
		}
		visiting[node] = true
		for _, dep := range dependsOn[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[node] = false
		visited[node] = true
		order = append(order, node)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}
