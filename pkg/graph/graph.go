package graph

import (
	"sort"
	"sync"

	"github.com/ha1tch/minired/pkg/models"
)

// Index is an undirected graph over person names. Each friendship is recorded
// once under its canonical pair; the adjacency map is a lookup index derived
// from those records.
type Index struct {
	edges     map[models.Friendship]struct{}
	adjacency map[string]map[string]struct{} // node -> neighbors
	mu        sync.RWMutex
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		edges:     make(map[models.Friendship]struct{}),
		adjacency: make(map[string]map[string]struct{}),
	}
}

// AddNode registers a node; adding an existing node is a no-op
func (g *Index) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.adjacency[name]; !exists {
		g.adjacency[name] = make(map[string]struct{})
	}
}

// HasNode reports whether the node is registered
func (g *Index) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.adjacency[name]
	return exists
}

// RemoveNode removes a node and all its edges, returning the number of edges removed
func (g *Index) RemoveNode(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := g.detach(name)
	delete(g.adjacency, name)
	return removed
}

// RemoveEdges removes every edge touching name but keeps the node
func (g *Index) RemoveEdges(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.detach(name)
}

// detach must be called with the write lock held
func (g *Index) detach(name string) int {
	neighbors, exists := g.adjacency[name]
	if !exists {
		return 0
	}

	removed := 0
	for neighbor := range neighbors {
		delete(g.edges, models.Canonical(name, neighbor))
		delete(g.adjacency[neighbor], name)
		removed++
	}
	g.adjacency[name] = make(map[string]struct{})
	return removed
}

// AddEdge connects two existing, distinct nodes. It returns false when the
// edge already exists, a == b, or either node is unknown.
func (g *Index) AddEdge(a, b string) bool {
	if a == b {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.adjacency[a]; !ok {
		return false
	}
	if _, ok := g.adjacency[b]; !ok {
		return false
	}

	edge := models.Canonical(a, b)
	if _, exists := g.edges[edge]; exists {
		return false
	}

	g.edges[edge] = struct{}{}
	g.adjacency[a][b] = struct{}{}
	g.adjacency[b][a] = struct{}{}
	return true
}

// RemoveEdge removes the edge between a and b in either order and returns
// the number of edges removed
func (g *Index) RemoveEdge(a, b string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge := models.Canonical(a, b)
	if _, exists := g.edges[edge]; !exists {
		return 0
	}

	delete(g.edges, edge)
	delete(g.adjacency[a], b)
	delete(g.adjacency[b], a)
	return 1
}

// HasEdge reports whether a and b are connected
func (g *Index) HasEdge(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.edges[models.Canonical(a, b)]
	return exists
}

// Neighbors returns the neighbors of a node sorted by name
func (g *Index) Neighbors(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	neighbors := g.adjacency[name]
	result := make([]string, 0, len(neighbors))
	for n := range neighbors {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// Degree returns the number of edges touching name
func (g *Index) Degree(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adjacency[name])
}

// NodeCount returns the number of nodes in the graph
func (g *Index) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adjacency)
}

// EdgeCount returns the number of undirected edges
func (g *Index) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Edges returns all edges in canonical form, sorted
func (g *Index) Edges() []models.Friendship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]models.Friendship, 0, len(g.edges))
	for e := range g.edges {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Left != result[j].Left {
			return result[i].Left < result[j].Left
		}
		return result[i].Right < result[j].Right
	})
	return result
}
