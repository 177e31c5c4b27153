// SPDX-License-Identifier: MPL-2.0

// Package dag orders modules so that every module comes after the modules
// it depends on.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports nodes that could not be ordered because they sit on
	// or behind a dependency cycle.
	CycleError[K comparable] struct {
		Cycle []K
	}

	// Graph is a directed graph keyed by K. An edge from A to B means A
	// must come before B. Duplicate edges are ignored.
	Graph[K comparable] struct {
		adjacency map[K][]K
		edges     map[[2]K]struct{}
		// nodes keeps insertion order so sorting is deterministic.
		nodes   []K
		nodeSet map[K]struct{}
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}

// New creates an empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		adjacency: make(map[K][]K),
		edges:     make(map[[2]K]struct{}),
		nodeSet:   make(map[K]struct{}),
	}
}

// AddNode adds a node. Adding a known node is a no-op.
func (g *Graph[K]) AddNode(n K) {
	if _, ok := g.nodeSet[n]; ok {
		return
	}
	g.nodeSet[n] = struct{}{}
	g.nodes = append(g.nodes, n)
}

// AddEdge records that from must come before to, adding both nodes.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]K{from, to}
	if _, dup := g.edges[key]; dup {
		return
	}
	g.edges[key] = struct{}{}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int { return len(g.nodes) }

// TopologicalSort returns the nodes in dependency order using Kahn's
// algorithm. Nodes at the same level keep their insertion order.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[K]int, len(g.nodes))
	for _, neighbors := range g.adjacency {
		for _, n := range neighbors {
			inDegree[n]++
		}
	}

	queue := make([]K, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	result := make([]K, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)
		for _, next := range g.adjacency[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) == len(g.nodes) {
		return result, nil
	}
	var cycle []K
	for _, n := range g.nodes {
		if inDegree[n] > 0 {
			cycle = append(cycle, n)
		}
	}
	return result, &CycleError[K]{Cycle: cycle}
}
