package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/validation"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const neo4jBackend = "neo4j"

// Neo4jConfig holds connection settings for a Neo4j server
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string // empty selects the server default
}

// Neo4jStore implements Store on a Neo4j graph. People are :Person nodes
// keyed by name; each friendship is one :FRIEND_OF relationship pointing
// from the lower name to the higher one and is always matched undirected.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

// Info returns store information
func (s *Neo4jStore) Info() StoreInfo {
	return StoreInfo{
		Type:              neo4jBackend,
		Version:           "1.0.0",
		Persistent:        true,
		NativeRecommender: true,
		SupportsExec:      true,
	}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// collect runs a query in its own session and returns every record
func (s *Neo4jStore) collect(ctx context.Context, mode neo4j.AccessMode, op, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := s.session(ctx, mode)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, s.classify(op, err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, s.classify(op, err)
	}
	return records, nil
}

// UpsertPerson merges the person node and overwrites city and hobby
func (s *Neo4jStore) UpsertPerson(ctx context.Context, p models.Person) (models.Person, error) {
	if err := requireName(p.Name); err != nil {
		return models.Person{}, err
	}

	query := `
		MERGE (p:Person {name: $name})
		ON CREATE SET p.city = $city, p.hobby = $hobby
		ON MATCH  SET p.city = $city, p.hobby = $hobby
		RETURN p.name AS name, p.city AS city, p.hobby AS hobby
	`
	records, err := s.collect(ctx, neo4j.AccessModeWrite, "upsert person", query, map[string]interface{}{
		"name":  p.Name,
		"city":  p.City,
		"hobby": p.Hobby,
	})
	if err != nil {
		return models.Person{}, err
	}
	if len(records) == 0 {
		return p, nil
	}
	return personFromRecord(records[0]), nil
}

// GetPerson retrieves a person by exact name
func (s *Neo4jStore) GetPerson(ctx context.Context, name string) (models.Person, error) {
	records, err := s.collect(ctx, neo4j.AccessModeRead, "get person", `
		MATCH (p:Person {name: $name})
		RETURN p.name AS name, p.city AS city, p.hobby AS hobby
	`, map[string]interface{}{"name": name})
	if err != nil {
		return models.Person{}, err
	}
	if len(records) == 0 {
		return models.Person{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return personFromRecord(records[0]), nil
}

// ListPeople returns all people sorted by name
func (s *Neo4jStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	records, err := s.collect(ctx, neo4j.AccessModeRead, "list people", `
		MATCH (p:Person)
		RETURN p.name AS name, p.city AS city, p.hobby AS hobby
		ORDER BY name
	`, nil)
	if err != nil {
		return nil, err
	}
	return peopleFromRecords(records), nil
}

// DeletePerson removes the node and all its relationships in one statement
func (s *Neo4jStore) DeletePerson(ctx context.Context, name string) error {
	_, err := s.collect(ctx, neo4j.AccessModeWrite, "delete person", `
		MATCH (p:Person {name: $name})
		DETACH DELETE p
	`, map[string]interface{}{"name": name})
	return err
}

// CountPeople returns the number of people
func (s *Neo4jStore) CountPeople(ctx context.Context) (int, error) {
	return s.count(ctx, neo4j.AccessModeRead, "count people", `MATCH (p:Person) RETURN count(p) AS total`, nil)
}

// CreateFriendship merges the canonical relationship between two existing people
func (s *Neo4jStore) CreateFriendship(ctx context.Context, a, b string) (bool, error) {
	if !validPair(a, b) {
		return false, nil
	}
	edge := models.Canonical(a, b)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Matching both ends first turns a missing endpoint into zero rows
	result, err := session.Run(ctx, `
		MATCH (l:Person {name: $left}), (r:Person {name: $right})
		MERGE (l)-[f:FRIEND_OF]->(r)
		ON CREATE SET f.created_at = datetime()
		RETURN f
	`, map[string]interface{}{"left": edge.Left, "right": edge.Right})
	if err != nil {
		return false, s.classify("create friendship", err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return false, s.classify("create friendship", err)
	}
	return summary.Counters().RelationshipsCreated() > 0, nil
}

// DeleteFriendship deletes every relationship between a and b, whatever its direction
func (s *Neo4jStore) DeleteFriendship(ctx context.Context, a, b string) (int, error) {
	if a == b {
		return 0, nil
	}
	return s.count(ctx, neo4j.AccessModeWrite, "delete friendship", `
		OPTIONAL MATCH (:Person {name: $a})-[f:FRIEND_OF]-(:Person {name: $b})
		DELETE f
		RETURN count(f) AS total
	`, map[string]interface{}{"a": a, "b": b})
}

// ListNeighbors returns the friends of name sorted by name
func (s *Neo4jStore) ListNeighbors(ctx context.Context, name string) ([]models.Person, error) {
	records, err := s.collect(ctx, neo4j.AccessModeRead, "list neighbors", `
		MATCH (:Person {name: $name})-[:FRIEND_OF]-(f:Person)
		RETURN DISTINCT f.name AS name, f.city AS city, f.hobby AS hobby
		ORDER BY name
	`, map[string]interface{}{"name": name})
	if err != nil {
		return nil, err
	}
	return peopleFromRecords(records), nil
}

// AreFriends reports whether any relationship connects a and b
func (s *Neo4jStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	n, err := s.count(ctx, neo4j.AccessModeRead, "are friends", `
		OPTIONAL MATCH (:Person {name: $a})-[f:FRIEND_OF]-(:Person {name: $b})
		RETURN count(f) AS total
	`, map[string]interface{}{"a": a, "b": b})
	return n > 0, err
}

// DegreeOf returns the number of relationships touching name
func (s *Neo4jStore) DegreeOf(ctx context.Context, name string) (int, error) {
	return s.count(ctx, neo4j.AccessModeRead, "degree", `
		OPTIONAL MATCH (:Person {name: $name})-[f:FRIEND_OF]-()
		RETURN count(f) AS total
	`, map[string]interface{}{"name": name})
}

// CascadeDelete removes every relationship touching name
func (s *Neo4jStore) CascadeDelete(ctx context.Context, name string) error {
	_, err := s.collect(ctx, neo4j.AccessModeWrite, "cascade delete", `
		MATCH (:Person {name: $name})-[f:FRIEND_OF]-()
		DELETE f
	`, map[string]interface{}{"name": name})
	return err
}

// CountFriendships counts relationships once each by matching one direction
func (s *Neo4jStore) CountFriendships(ctx context.Context) (int, error) {
	return s.count(ctx, neo4j.AccessModeRead, "count friendships", `
		MATCH ()-[f:FRIEND_OF]->()
		RETURN count(f) AS total
	`, nil)
}

// ListFriendships returns all edges in canonical order
func (s *Neo4jStore) ListFriendships(ctx context.Context) ([]models.Friendship, error) {
	records, err := s.collect(ctx, neo4j.AccessModeRead, "list friendships", `
		MATCH (a:Person)-[:FRIEND_OF]->(b:Person)
		RETURN a.name AS left, b.name AS right
	`, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.Friendship]struct{}, len(records))
	results := make([]models.Friendship, 0, len(records))
	for _, record := range records {
		f := models.Canonical(getStringFromRecord(record, "left"), getStringFromRecord(record, "right"))
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		results = append(results, f)
	}
	sortFriendships(results)
	return results, nil
}

// RecommendByAttribute runs the recommendation as a single Cypher query
func (s *Neo4jStore) RecommendByAttribute(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error) {
	if !attr.Valid() {
		return nil, fmt.Errorf("invalid attribute: %s", attr)
	}

	query := fmt.Sprintf(`
		MATCH (p:Person {name: $name})
		WHERE p.%[1]s IS NOT NULL AND p.%[1]s <> ''
		MATCH (c:Person)
		WHERE c.%[1]s = p.%[1]s AND c <> p AND NOT (p)-[:FRIEND_OF]-(c)
		RETURN c.name AS name, c.city AS city, c.hobby AS hobby
		ORDER BY name
	`, string(attr))

	records, err := s.collect(ctx, neo4j.AccessModeRead, "recommend by "+string(attr), query,
		map[string]interface{}{"name": name})
	if err != nil {
		return nil, err
	}
	return peopleFromRecords(records), nil
}

// Exec runs a bootstrap Cypher statement
func (s *Neo4jStore) Exec(ctx context.Context, statement string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement, nil)
	if err != nil {
		return s.classify("exec", err)
	}
	_, err = result.Consume(ctx)
	return s.classify("exec", err)
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4jStore) count(ctx context.Context, mode neo4j.AccessMode, op, query string, params map[string]interface{}) (int, error) {
	records, err := s.collect(ctx, mode, op, query, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return getIntFromRecord(records[0], "total"), nil
}

// classify maps schema constraint failures to validation errors and wraps
// everything else as a backend error
func (s *Neo4jStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "ConstraintValidationFailed") {
		return &validation.ValidationError{Message: "constraint violation", Err: wrapErr(neo4jBackend, op, err)}
	}
	return wrapErr(neo4jBackend, op, err)
}

func personFromRecord(record *neo4j.Record) models.Person {
	return models.Person{
		Name:  getStringFromRecord(record, "name"),
		City:  getStringFromRecord(record, "city"),
		Hobby: getStringFromRecord(record, "hobby"),
	}
}

func peopleFromRecords(records []*neo4j.Record) []models.Person {
	people := make([]models.Person, 0, len(records))
	for _, record := range records {
		people = append(people, personFromRecord(record))
	}
	return people
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}
