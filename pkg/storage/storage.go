package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/validation"
)

var (
	// ErrNotFound is returned when a person is not found
	ErrNotFound = errors.New("person not found")
	// ErrNotEmpty is returned when a migration target already holds data
	ErrNotEmpty = errors.New("store is not empty")
)

// BackendError wraps a failure of the underlying storage engine
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err is or wraps a BackendError
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// wrapErr wraps a driver error once. Sentinel, validation and already
// wrapped errors pass through untouched.
func wrapErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || validation.IsValidationError(err) || IsBackendError(err) {
		return err
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// requireName rejects blank person names before they reach a backend
func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return validation.NewValidationError("name", "is required")
	}
	return nil
}

// validPair reports whether a friendship between a and b may be stored
func validPair(a, b string) bool {
	return strings.TrimSpace(a) != "" && strings.TrimSpace(b) != "" && a != b
}

// PersonStore holds Person records keyed by name
type PersonStore interface {
	// UpsertPerson creates the person or overwrites city and hobby
	UpsertPerson(ctx context.Context, p models.Person) (models.Person, error)
	// GetPerson returns ErrNotFound when the name is unknown
	GetPerson(ctx context.Context, name string) (models.Person, error)
	// ListPeople returns everyone sorted by name
	ListPeople(ctx context.Context) ([]models.Person, error)
	// DeletePerson removes the person and every friendship touching it in
	// one unit of work. Unknown names are a no-op.
	DeletePerson(ctx context.Context, name string) error
	CountPeople(ctx context.Context) (int, error)
}

// FriendshipStore holds undirected friendship edges in canonical order
type FriendshipStore interface {
	// CreateFriendship reports whether a new edge was stored. Existing
	// edges, self pairs and unknown endpoints yield false without error.
	CreateFriendship(ctx context.Context, a, b string) (bool, error)
	// DeleteFriendship removes the edge in either order and returns the
	// number of edges removed
	DeleteFriendship(ctx context.Context, a, b string) (int, error)
	// ListNeighbors returns the friends of name sorted by name
	ListNeighbors(ctx context.Context, name string) ([]models.Person, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	DegreeOf(ctx context.Context, name string) (int, error)
	// CascadeDelete removes every edge touching name
	CascadeDelete(ctx context.Context, name string) error
	CountFriendships(ctx context.Context) (int, error)
	// ListFriendships returns every edge in canonical form, sorted
	ListFriendships(ctx context.Context) ([]models.Friendship, error)
}

// Store defines the core interface for graph storage backends
type Store interface {
	PersonStore
	FriendshipStore

	// Lifecycle
	Close() error
}

// Recommender defines optional native recommendation queries. Results
// exclude the person and their friends and are sorted by name.
type Recommender interface {
	RecommendByAttribute(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error)
}

// Executor defines optional execution of backend-native statements
// (Cypher, SQL) used for bootstrap scripts
type Executor interface {
	Exec(ctx context.Context, statement string) error
}

// StoreInfo provides metadata about the store implementation
type StoreInfo struct {
	Type              string // "memory", "sqlite", "neo4j"
	Version           string
	Persistent        bool
	NativeRecommender bool
	SupportsExec      bool
}

// InfoProvider allows stores to provide metadata about their capabilities
type InfoProvider interface {
	Info() StoreInfo
}
