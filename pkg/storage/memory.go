package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ha1tch/minired/pkg/graph"
	"github.com/ha1tch/minired/pkg/models"
)

// MemoryStore implements Store in process memory, optionally persisted to a
// JSON snapshot file on Close
type MemoryStore struct {
	people       map[string]models.Person
	graph        *graph.Index
	snapshotPath string
	mu           sync.RWMutex
}

// snapshot is the on-disk format of a MemoryStore
type snapshot struct {
	People      []models.Person     `json:"people"`
	Friendships []models.Friendship `json:"friendships"`
}

// NewMemoryStore creates an in-memory store. If snapshotPath is set and the
// file exists, its contents are loaded.
func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	s := &MemoryStore{
		people:       make(map[string]models.Person),
		graph:        graph.NewIndex(),
		snapshotPath: snapshotPath,
	}

	if snapshotPath != "" {
		if err := s.load(snapshotPath); err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
	}

	return s, nil
}

// Info returns store information
func (s *MemoryStore) Info() StoreInfo {
	return StoreInfo{
		Type:       "memory",
		Version:    "1.0.0",
		Persistent: s.snapshotPath != "",
	}
}

// UpsertPerson creates or replaces a person
func (s *MemoryStore) UpsertPerson(ctx context.Context, p models.Person) (models.Person, error) {
	if err := requireName(p.Name); err != nil {
		return models.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.people[p.Name] = p
	s.graph.AddNode(p.Name)
	return p, nil
}

// GetPerson retrieves a person by exact name
func (s *MemoryStore) GetPerson(ctx context.Context, name string) (models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.people[name]
	if !ok {
		return models.Person{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// ListPeople returns all people sorted by name
func (s *MemoryStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Person, 0, len(s.people))
	for _, p := range s.people {
		result = append(result, p)
	}
	sortPeople(result)
	return result, nil
}

// DeletePerson removes a person and its friendships under one lock
func (s *MemoryStore) DeletePerson(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.graph.HasNode(name) {
		return nil
	}
	s.graph.RemoveNode(name)
	delete(s.people, name)
	return nil
}

// CountPeople returns the number of people. Every person is a node of the
// index and every node is a person.
func (s *MemoryStore) CountPeople(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.NodeCount(), nil
}

// CreateFriendship connects two existing people
func (s *MemoryStore) CreateFriendship(ctx context.Context, a, b string) (bool, error) {
	if !validPair(a, b) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.AddEdge(a, b), nil
}

// DeleteFriendship removes the edge between a and b
func (s *MemoryStore) DeleteFriendship(ctx context.Context, a, b string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.RemoveEdge(a, b), nil
}

// ListNeighbors returns the friends of name
func (s *MemoryStore) ListNeighbors(ctx context.Context, name string) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.graph.Neighbors(name)
	result := make([]models.Person, 0, len(names))
	for _, n := range names {
		if p, ok := s.people[n]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// AreFriends reports whether a and b are connected
func (s *MemoryStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.HasEdge(a, b), nil
}

// DegreeOf returns the number of friends of name
func (s *MemoryStore) DegreeOf(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Degree(name), nil
}

// CascadeDelete removes every friendship touching name
func (s *MemoryStore) CascadeDelete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph.RemoveEdges(name)
	return nil
}

// CountFriendships returns the number of undirected edges
func (s *MemoryStore) CountFriendships(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.EdgeCount(), nil
}

// ListFriendships returns all edges in canonical order
func (s *MemoryStore) ListFriendships(ctx context.Context) ([]models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Edges(), nil
}

// Save writes the snapshot file if one is configured
func (s *MemoryStore) Save() error {
	if s.snapshotPath == "" {
		return nil
	}

	s.mu.RLock()
	snap := snapshot{
		People:      make([]models.Person, 0, len(s.people)),
		Friendships: s.graph.Edges(),
	}
	for _, p := range s.people {
		snap.People = append(snap.People, p)
	}
	s.mu.RUnlock()
	sortPeople(snap.People)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.snapshotPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tempFile := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempFile, s.snapshotPath)
}

// Close persists the snapshot
func (s *MemoryStore) Close() error {
	return s.Save()
}

func (s *MemoryStore) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's okay
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	for _, p := range snap.People {
		if requireName(p.Name) != nil {
			continue
		}
		s.people[p.Name] = p
		s.graph.AddNode(p.Name)
	}
	for _, f := range snap.Friendships {
		s.graph.AddEdge(f.Left, f.Right)
	}
	return nil
}

func sortPeople(people []models.Person) {
	sort.Slice(people, func(i, j int) bool {
		return people[i].Name < people[j].Name
	})
}

func sortFriendships(edges []models.Friendship) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Left != edges[j].Left {
			return edges[i].Left < edges[j].Left
		}
		return edges[i].Right < edges[j].Right
	})
}
