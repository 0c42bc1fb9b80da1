// Package graph provides a directed graph, generic over its vertex type,
// with the traversals the recomputation engine needs: transpose, iterative
// post-order, Kosaraju strongly connected components, topological sort, and
// reachability subgraphs. All traversals are iterative so that dependency
// chains thousands of cells deep do not exhaust the stack.
package graph

import "errors"

// ErrCyclical is returned by TopologicalSort on a graph with a directed
// cycle.
var ErrCyclical = errors.New("topological sort is only possible for directed acyclic graphs")

type Graph[T comparable] struct {
	adjacency map[T][]T
	transpose *Graph[T]
}

// New builds a graph from an adjacency list. Vertices that appear only as
// edge targets are added with an empty adjacency list. The transpose is
// materialised once and shares a back-pointer with the graph.
func New[T comparable](adjacency map[T][]T) *Graph[T] {
	g := &Graph[T]{adjacency: adjacency}
	g.normalize()
	g.transpose = g.computeTranspose()
	return g
}

func (g *Graph[T]) normalize() {
	var missing []T
	for _, edges := range g.adjacency {
		for _, v := range edges {
			if _, ok := g.adjacency[v]; !ok {
				missing = append(missing, v)
			}
		}
	}
	for _, v := range missing {
		if _, ok := g.adjacency[v]; !ok {
			g.adjacency[v] = nil
		}
	}
}

func (g *Graph[T]) computeTranspose() *Graph[T] {
	reversed := make(map[T][]T, len(g.adjacency))
	for u := range g.adjacency {
		reversed[u] = nil
	}
	for u, edges := range g.adjacency {
		for _, v := range edges {
			reversed[v] = append(reversed[v], u)
		}
	}
	t := &Graph[T]{adjacency: reversed, transpose: g}
	return t
}

// Transpose returns the graph with every edge reversed.
func (g *Graph[T]) Transpose() *Graph[T] {
	return g.transpose
}

// Vertices returns all vertices in the graph.
func (g *Graph[T]) Vertices() []T {
	out := make([]T, 0, len(g.adjacency))
	for u := range g.adjacency {
		out = append(out, u)
	}
	return out
}

// OutNeighbors returns the vertices v with an edge u -> v.
func (g *Graph[T]) OutNeighbors(u T) []T {
	return g.adjacency[u]
}

// InNeighbors returns the vertices v with an edge v -> u.
func (g *Graph[T]) InNeighbors(u T) []T {
	return g.transpose.adjacency[u]
}

// HasEdge reports whether the edge u -> v exists.
func (g *Graph[T]) HasEdge(u, v T) bool {
	for _, w := range g.adjacency[u] {
		if w == v {
			return true
		}
	}
	return false
}

// frame is an explicit DFS stack entry: a vertex plus the index of the next
// edge to follow.
type frame[T comparable] struct {
	vertex T
	edge   int
}

// PostOrder returns the vertices in depth-first finish order, visiting
// every vertex once.
func (g *Graph[T]) PostOrder() []T {
	visited := make(map[T]bool, len(g.adjacency))
	order := make([]T, 0, len(g.adjacency))

	for v := range g.adjacency {
		if visited[v] {
			continue
		}
		g.postOrderFrom(v, visited, &order)
	}
	return order
}

func (g *Graph[T]) postOrderFrom(root T, visited map[T]bool, order *[]T) {
	stack := []frame[T]{{vertex: root}}
	visited[root] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := g.adjacency[top.vertex]
		advanced := false
		for top.edge < len(edges) {
			next := edges[top.edge]
			top.edge++
			if !visited[next] {
				visited[next] = true
				stack = append(stack, frame[T]{vertex: next})
				advanced = true
				break
			}
		}
		if advanced {
			continue
		}
		*order = append(*order, top.vertex)
		stack = stack[:len(stack)-1]
	}
}

// StronglyConnectedComponents returns every strongly connected component,
// each as a list of its vertices. This is Kosaraju's algorithm: a
// depth-first finish order on the graph, then assignment passes on the
// transpose in reverse finish order.
func (g *Graph[T]) StronglyConnectedComponents() [][]T {
	order := g.PostOrder()

	assigned := make(map[T]int, len(order))
	var components [][]T

	for i := len(order) - 1; i >= 0; i-- {
		root := order[i]
		if _, ok := assigned[root]; ok {
			continue
		}
		id := len(components)
		component := []T{}
		stack := []T{root}
		assigned[root] = id
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, v)
			for _, u := range g.InNeighbors(v) {
				if _, ok := assigned[u]; !ok {
					assigned[u] = id
					stack = append(stack, u)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

// IsCyclical reports whether the graph contains any directed cycle,
// self-loops included.
func (g *Graph[T]) IsCyclical() bool {
	for _, component := range g.StronglyConnectedComponents() {
		if len(component) > 1 {
			return true
		}
		if g.HasEdge(component[0], component[0]) {
			return true
		}
	}
	return false
}

// TopologicalSort returns the vertices ordered so that every edge u -> v
// has u before v. Returns ErrCyclical when no such order exists.
func (g *Graph[T]) TopologicalSort() ([]T, error) {
	if g.IsCyclical() {
		return nil, ErrCyclical
	}
	order := g.PostOrder()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Reachable returns the subgraph induced by every vertex reachable from the
// given set, the set itself included.
func (g *Graph[T]) Reachable(from []T) *Graph[T] {
	visited := make(map[T]bool)
	var keep []T

	for _, root := range from {
		if _, ok := g.adjacency[root]; !ok {
			continue
		}
		if visited[root] {
			continue
		}
		visited[root] = true
		stack := []T{root}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			keep = append(keep, v)
			for _, u := range g.adjacency[v] {
				if !visited[u] {
					visited[u] = true
					stack = append(stack, u)
				}
			}
		}
	}
	return g.Subgraph(keep)
}

// Subgraph filters the graph to the given vertex set, dropping edges with
// either endpoint outside it.
func (g *Graph[T]) Subgraph(vertices []T) *Graph[T] {
	keep := make(map[T]bool, len(vertices))
	for _, v := range vertices {
		keep[v] = true
	}
	adjacency := make(map[T][]T, len(vertices))
	for u, edges := range g.adjacency {
		if !keep[u] {
			continue
		}
		var kept []T
		for _, v := range edges {
			if keep[v] {
				kept = append(kept, v)
			}
		}
		adjacency[u] = kept
	}
	return New(adjacency)
}
