package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/validation"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteBackend = "sqlite"

// SQLiteStore implements Store interface using SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	config SQLiteConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	DBPath      string
	EnableWAL   bool // Write-Ahead Logging for better concurrency
	CacheSize   int  // Page cache size in KB
	BusyTimeout int  // Milliseconds to wait on locked database
}

// NewSQLiteStore creates a new SQLite-based storage
func NewSQLiteStore(dbPath string, config SQLiteConfig) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "minired.db"
	}

	// Connection-scoped pragmas go in the DSN so every pooled connection gets them
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", dbPath, config.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		config: config,
	}

	if err := store.initialize(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *SQLiteStore) initialize(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", s.config.CacheSize),
	}
	if s.config.EnableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS people (
			name TEXT PRIMARY KEY,
			city TEXT NOT NULL DEFAULT '',
			hobby TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_people_city ON people(city);
		CREATE INDEX IF NOT EXISTS idx_people_hobby ON people(hobby);

		-- One row per undirected edge, endpoints in canonical order
		CREATE TABLE IF NOT EXISTS friendships (
			left_name TEXT NOT NULL REFERENCES people(name) ON DELETE CASCADE,
			right_name TEXT NOT NULL REFERENCES people(name) ON DELETE CASCADE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (left_name, right_name),
			CHECK (left_name < right_name)
		);

		CREATE INDEX IF NOT EXISTS idx_friendships_right ON friendships(right_name);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// Info returns store information
func (s *SQLiteStore) Info() StoreInfo {
	return StoreInfo{
		Type:              sqliteBackend,
		Version:           "1.0.0",
		Persistent:        true,
		NativeRecommender: true,
		SupportsExec:      true,
	}
}

// UpsertPerson inserts a person or overwrites city and hobby
func (s *SQLiteStore) UpsertPerson(ctx context.Context, p models.Person) (models.Person, error) {
	if err := requireName(p.Name); err != nil {
		return models.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (name, city, hobby)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE
		SET city = excluded.city, hobby = excluded.hobby, updated_at = CURRENT_TIMESTAMP
	`, p.Name, p.City, p.Hobby)
	if err != nil {
		return models.Person{}, s.constraintErr("upsert person", err)
	}

	return p, nil
}

// GetPerson retrieves a person by exact name
func (s *SQLiteStore) GetPerson(ctx context.Context, name string) (models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p models.Person
	err := s.db.QueryRowContext(ctx, `
		SELECT name, city, hobby FROM people WHERE name = ?
	`, name).Scan(&p.Name, &p.City, &p.Hobby)

	if err == sql.ErrNoRows {
		return models.Person{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return models.Person{}, wrapErr(sqliteBackend, "get person", err)
	}

	return p, nil
}

// ListPeople returns all people sorted by name
func (s *SQLiteStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people, err := s.queryPeople(ctx, `SELECT name, city, hobby FROM people ORDER BY name`)
	return people, wrapErr(sqliteBackend, "list people", err)
}

// DeletePerson removes a person and its friendships in one transaction
func (s *SQLiteStore) DeletePerson(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(sqliteBackend, "delete person", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM friendships WHERE left_name = ? OR right_name = ?
	`, name, name); err != nil {
		return wrapErr(sqliteBackend, "delete person", fmt.Errorf("failed to delete friendships: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM people WHERE name = ?`, name); err != nil {
		return wrapErr(sqliteBackend, "delete person", err)
	}

	return wrapErr(sqliteBackend, "delete person", tx.Commit())
}

// CountPeople returns the number of people
func (s *SQLiteStore) CountPeople(ctx context.Context) (int, error) {
	return s.count(ctx, "count people", `SELECT COUNT(*) FROM people`)
}

// CreateFriendship stores the canonical edge if both endpoints exist
func (s *SQLiteStore) CreateFriendship(ctx context.Context, a, b string) (bool, error) {
	if !validPair(a, b) {
		return false, nil
	}
	edge := models.Canonical(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapErr(sqliteBackend, "create friendship", err)
	}
	defer tx.Rollback()

	var endpoints int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM people WHERE name IN (?, ?)
	`, edge.Left, edge.Right).Scan(&endpoints); err != nil {
		return false, wrapErr(sqliteBackend, "create friendship", err)
	}
	if endpoints != 2 {
		return false, nil
	}

	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO friendships (left_name, right_name) VALUES (?, ?)
	`, edge.Left, edge.Right)
	if err != nil {
		return false, wrapErr(sqliteBackend, "create friendship", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(sqliteBackend, "create friendship", err)
	}

	if err := tx.Commit(); err != nil {
		return false, wrapErr(sqliteBackend, "create friendship", err)
	}

	return rows > 0, nil
}

// DeleteFriendship removes the edge in either stored direction
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, a, b string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (left_name = ? AND right_name = ?)
		   OR (left_name = ? AND right_name = ?)
	`, a, b, b, a)
	if err != nil {
		return 0, wrapErr(sqliteBackend, "delete friendship", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr(sqliteBackend, "delete friendship", err)
	}

	return int(rows), nil
}

// ListNeighbors returns the friends of name sorted by name
func (s *SQLiteStore) ListNeighbors(ctx context.Context, name string) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people, err := s.queryPeople(ctx, `
		SELECT p.name, p.city, p.hobby
		FROM friendships f
		JOIN people p
		  ON p.name = CASE WHEN f.left_name = ? THEN f.right_name ELSE f.left_name END
		WHERE f.left_name = ? OR f.right_name = ?
		ORDER BY p.name
	`, name, name, name)
	return people, wrapErr(sqliteBackend, "list neighbors", err)
}

// AreFriends reports whether the canonical edge exists
func (s *SQLiteStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	edge := models.Canonical(a, b)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM friendships WHERE left_name = ? AND right_name = ?)
	`, edge.Left, edge.Right).Scan(&exists)
	if err != nil {
		return false, wrapErr(sqliteBackend, "are friends", err)
	}
	return exists, nil
}

// DegreeOf returns the number of edges touching name
func (s *SQLiteStore) DegreeOf(ctx context.Context, name string) (int, error) {
	return s.count(ctx, "degree", `
		SELECT COUNT(*) FROM friendships WHERE left_name = ? OR right_name = ?
	`, name, name)
}

// CascadeDelete removes every edge touching name
func (s *SQLiteStore) CascadeDelete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM friendships WHERE left_name = ? OR right_name = ?
	`, name, name)
	return wrapErr(sqliteBackend, "cascade delete", err)
}

// CountFriendships returns the number of undirected edges
func (s *SQLiteStore) CountFriendships(ctx context.Context) (int, error) {
	return s.count(ctx, "count friendships", `SELECT COUNT(*) FROM friendships`)
}

// ListFriendships returns all edges in canonical order
func (s *SQLiteStore) ListFriendships(ctx context.Context) ([]models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT left_name, right_name FROM friendships ORDER BY left_name, right_name
	`)
	if err != nil {
		return nil, wrapErr(sqliteBackend, "list friendships", err)
	}
	defer rows.Close()

	results := []models.Friendship{}
	for rows.Next() {
		var f models.Friendship
		if err := rows.Scan(&f.Left, &f.Right); err != nil {
			return nil, wrapErr(sqliteBackend, "list friendships", err)
		}
		results = append(results, f)
	}

	return results, wrapErr(sqliteBackend, "list friendships", rows.Err())
}

// RecommendByAttribute finds people sharing attr with name who are not yet friends
func (s *SQLiteStore) RecommendByAttribute(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error) {
	if !attr.Valid() {
		return nil, fmt.Errorf("invalid attribute: %s", attr)
	}
	column := string(attr)

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT c.name, c.city, c.hobby
		FROM people p
		JOIN people c ON c.%[1]s = p.%[1]s AND c.name <> p.name
		WHERE p.name = ?
		  AND p.%[1]s <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM friendships f
			WHERE (f.left_name = p.name AND f.right_name = c.name)
			   OR (f.left_name = c.name AND f.right_name = p.name)
		  )
		ORDER BY c.name
	`, column)

	people, err := s.queryPeople(ctx, query, name)
	return people, wrapErr(sqliteBackend, "recommend by "+column, err)
}

// Exec runs a bootstrap SQL statement
func (s *SQLiteStore) Exec(ctx context.Context, statement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, statement)
	return s.constraintErr("exec", err)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryPeople(ctx context.Context, query string, args ...interface{}) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.Person{}
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.Name, &p.City, &p.Hobby); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, p)
	}

	return results, rows.Err()
}

func (s *SQLiteStore) count(ctx context.Context, op, query string, args ...interface{}) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapErr(sqliteBackend, op, err)
	}
	return n, nil
}

// constraintErr reports constraint violations as validation errors
func (s *SQLiteStore) constraintErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "constraint failed") {
		return &validation.ValidationError{Message: "constraint violation", Err: wrapErr(sqliteBackend, op, err)}
	}
	return wrapErr(sqliteBackend, op, err)
}
