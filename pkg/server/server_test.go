package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ha1tch/minired/pkg/cache"
	"github.com/ha1tch/minired/pkg/config"
	"github.com/ha1tch/minired/pkg/metrics"
	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/server"
	"github.com/ha1tch/minired/pkg/service"
	"github.com/ha1tch/minired/pkg/storage"
)

// TestServer holds test server instance and helpers
type TestServer struct {
	server *server.Server
	ts     *httptest.Server
	cfg    *config.Config
	t      *testing.T
}

// setupTestServer creates a test server over a fresh store
func setupTestServer(t *testing.T) *TestServer {
	store, err := storage.NewStore("memory", map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	return setupTestServerWithStore(t, store)
}

func setupTestServerWithStore(t *testing.T, store storage.Store) *TestServer {
	cfg := config.Default()
	cfg.Host = "localhost"
	cfg.Port = 0 // Let httptest choose port

	memCache := cache.NewMemoryCache(1000, cfg.CacheDuration())
	collector := metrics.NewCollector("minired")
	logger := zerolog.Nop()

	svc := service.New(store, memCache, nil, collector, logger)
	srv := server.New(cfg, svc, collector, logger)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		memCache.Close()
		store.Close()
	})

	return &TestServer{
		server: srv,
		ts:     ts,
		cfg:    cfg,
		t:      t,
	}
}

// doRequest makes HTTP request and returns response
func (ts *TestServer) doRequest(method, path string, body interface{}) (*http.Response, []byte) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, ts.ts.URL+path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		ts.t.Fatal(err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()

	respBody := &bytes.Buffer{}
	respBody.ReadFrom(resp.Body)

	return resp, respBody.Bytes()
}

// decode unmarshals body into v or fails the test
func (ts *TestServer) decode(body []byte, v interface{}) {
	ts.t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		ts.t.Fatalf("invalid JSON %q: %v", string(body), err)
	}
}

func (ts *TestServer) addPerson(name, city, hobby string) {
	ts.t.Helper()
	resp, body := ts.doRequest("POST", "/api/v1/people", models.Person{Name: name, City: city, Hobby: hobby})
	if resp.StatusCode != http.StatusCreated {
		ts.t.Fatalf("Failed to create %s: %d %s", name, resp.StatusCode, string(body))
	}
}

func names(people []models.Person) string {
	result := make([]string, 0, len(people))
	for _, p := range people {
		result = append(result, p.Name)
	}
	return strings.Join(result, ",")
}

// TestHealthEndpoints tests health and version endpoints
func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("GET /health", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}

		var result map[string]interface{}
		ts.decode(body, &result)

		if result["status"] != "ok" {
			t.Errorf("Expected status ok, got %v", result["status"])
		}
		if result["store"] != "memory" {
			t.Errorf("Expected store memory, got %v", result["store"])
		}
	})

	t.Run("GET /version", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/version", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}

		var result map[string]interface{}
		ts.decode(body, &result)

		if result["version"] != config.Version {
			t.Errorf("Expected version %s, got %v", config.Version, result["version"])
		}
	})

	t.Run("GET /metrics", func(t *testing.T) {
		ts.doRequest("GET", "/api/v1/stats", nil)

		resp, body := ts.doRequest("GET", "/metrics", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), `minired_http_requests_total{method="GET",route="/api/v1/stats",status="200"}`) {
			t.Errorf("Expected stats request to be counted, got:\n%s", string(body))
		}
		if !strings.Contains(string(body), `minired_operations_total{operation="stats",status="ok"}`) {
			t.Error("Expected stats operation to be counted")
		}
	})
}

// TestPeopleCRUD tests registration, lookup and deletion
func TestPeopleCRUD(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("POST /api/v1/people - Create", func(t *testing.T) {
		resp, body := ts.doRequest("POST", "/api/v1/people", map[string]string{
			"name":  "Ana",
			"city":  "Rosario",
			"hobby": "lectura",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, string(body))
		}

		var p models.Person
		ts.decode(body, &p)
		if p != (models.Person{Name: "Ana", City: "Rosario", Hobby: "lectura"}) {
			t.Errorf("Unexpected person %+v", p)
		}
	})

	t.Run("POST /api/v1/people - Upsert overwrites", func(t *testing.T) {
		ts.addPerson("Ana", "Mendoza", "")

		resp, body := ts.doRequest("GET", "/api/v1/people/Ana", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}

		var p models.Person
		ts.decode(body, &p)
		if p.City != "Mendoza" || p.Hobby != "" {
			t.Errorf("Expected overwritten attributes, got %+v", p)
		}
	})

	t.Run("POST /api/v1/people - Blank name", func(t *testing.T) {
		resp, body := ts.doRequest("POST", "/api/v1/people", map[string]string{"name": "  "})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", resp.StatusCode, string(body))
		}

		var errResp models.ErrorResponse
		ts.decode(body, &errResp)
		if errResp.Error.Status != http.StatusBadRequest || errResp.Error.Message == "" {
			t.Errorf("Unexpected error body %s", string(body))
		}
	})

	t.Run("POST /api/v1/people - Invalid JSON", func(t *testing.T) {
		req, _ := http.NewRequest("POST", ts.ts.URL+"/api/v1/people", strings.NewReader("{"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("GET /api/v1/people - List sorted", func(t *testing.T) {
		ts.addPerson("Caro", "Cordoba", "ajedrez")
		ts.addPerson("Beto", "Rosario", "lectura")

		resp, body := ts.doRequest("GET", "/api/v1/people", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}

		var people []models.Person
		ts.decode(body, &people)
		if got := names(people); got != "Ana,Beto,Caro" {
			t.Errorf("Expected Ana,Beto,Caro, got %s", got)
		}
	})

	t.Run("GET /api/v1/people/{name} - Names are case sensitive", func(t *testing.T) {
		resp, _ := ts.doRequest("GET", "/api/v1/people/ana", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("GET /api/v1/people/{name} - Escaped name", func(t *testing.T) {
		ts.addPerson("Ana María", "Salta", "")

		resp, body := ts.doRequest("GET", "/api/v1/people/Ana%20Mar%C3%ADa", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}
	})

	t.Run("GET /api/v1/people/{name} - Percent sign in name", func(t *testing.T) {
		ts.addPerson("a%41", "Salta", "")
		ts.addPerson("aA", "Jujuy", "")
		ts.addPerson("x/y", "Tucuman", "")

		cases := []struct {
			path string
			want string
		}{
			{"/api/v1/people/a%2541", "a%41"},
			{"/api/v1/people/aA", "aA"},
			{"/api/v1/people/x%2Fy", "x/y"},
		}
		for _, c := range cases {
			resp, body := ts.doRequest("GET", c.path, nil)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s: expected 200, got %d: %s", c.path, resp.StatusCode, string(body))
				continue
			}
			var p models.Person
			ts.decode(body, &p)
			if p.Name != c.want {
				t.Errorf("%s: expected %q, got %q", c.path, c.want, p.Name)
			}
		}

		resp, _ := ts.doRequest("DELETE", "/api/v1/people/a%2541", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
		resp, _ = ts.doRequest("GET", "/api/v1/people/aA", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Deleting a%%41 must leave aA in place, got %d", resp.StatusCode)
		}
	})

	t.Run("DELETE /api/v1/people/{name} - Delete", func(t *testing.T) {
		resp, body := ts.doRequest("DELETE", "/api/v1/people/Caro", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}

		resp, _ = ts.doRequest("GET", "/api/v1/people/Caro", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
		}

		// Deleting an absent person is a no-op
		resp, _ = ts.doRequest("DELETE", "/api/v1/people/Caro", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200 for repeated delete, got %d", resp.StatusCode)
		}
	})
}

// TestFriendshipScenario walks the register, befriend, recommend and
// delete flow end to end
func TestFriendshipScenario(t *testing.T) {
	ts := setupTestServer(t)

	ts.addPerson("Ana", "Rosario", "lectura")
	ts.addPerson("Beto", "Rosario", "lectura")
	ts.addPerson("Caro", "Cordoba", "ajedrez")

	recommend := func(attr string) string {
		resp, body := ts.doRequest("GET", "/api/v1/people/Ana/recommendations/"+attr, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}
		var people []models.Person
		ts.decode(body, &people)
		return names(people)
	}

	if got := recommend("city"); got != "Beto" {
		t.Errorf("Expected city recommendation Beto, got %q", got)
	}
	if got := recommend("hobby"); got != "Beto" {
		t.Errorf("Expected hobby recommendation Beto, got %q", got)
	}

	t.Run("PUT friendship - Created", func(t *testing.T) {
		resp, body := ts.doRequest("PUT", "/api/v1/people/Ana/friends/Beto", nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, string(body))
		}

		var result models.FriendshipResult
		ts.decode(body, &result)
		if result.Created == nil || !*result.Created {
			t.Errorf("Expected created=true, got %s", string(body))
		}
	})

	t.Run("PUT friendship - Reversed is unchanged", func(t *testing.T) {
		resp, body := ts.doRequest("PUT", "/api/v1/people/Beto/friends/Ana", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}

		var result models.FriendshipResult
		ts.decode(body, &result)
		if result.Created == nil || *result.Created {
			t.Errorf("Expected created=false, got %s", string(body))
		}
	})

	if got := recommend("city"); got != "" {
		t.Errorf("Expected no city recommendation, got %q", got)
	}

	t.Run("GET friends", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/api/v1/people/Beto/friends", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		var friends []models.Person
		ts.decode(body, &friends)
		if got := names(friends); got != "Ana" {
			t.Errorf("Expected Ana, got %q", got)
		}
	})

	t.Run("GET stats", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/api/v1/stats", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}

		var stats map[string]interface{}
		ts.decode(body, &stats)
		if stats["total_people"] != 3.0 || stats["total_friendships"] != 1.0 {
			t.Errorf("Unexpected stats %s", string(body))
		}
	})

	t.Run("DELETE friendship", func(t *testing.T) {
		resp, body := ts.doRequest("DELETE", "/api/v1/people/Beto/friends/Ana", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		var result models.FriendshipResult
		ts.decode(body, &result)
		if result.Deleted == nil || *result.Deleted != 1 {
			t.Errorf("Expected deleted=1, got %s", string(body))
		}

		_, body = ts.doRequest("DELETE", "/api/v1/people/Ana/friends/Beto", nil)
		ts.decode(body, &result)
		if result.Deleted == nil || *result.Deleted != 0 {
			t.Errorf("Expected deleted=0, got %s", string(body))
		}
	})

	t.Run("DELETE person cascades", func(t *testing.T) {
		ts.doRequest("PUT", "/api/v1/people/Ana/friends/Beto", nil)
		ts.doRequest("DELETE", "/api/v1/people/Beto", nil)

		_, body := ts.doRequest("GET", "/api/v1/people/Ana/friends", nil)
		var friends []models.Person
		ts.decode(body, &friends)
		if len(friends) != 0 {
			t.Errorf("Expected no friends, got %s", string(body))
		}
	})

	t.Run("Unknown recommendation attribute", func(t *testing.T) {
		resp, _ := ts.doRequest("GET", "/api/v1/people/Ana/recommendations/age", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

// failingStore fails ListPeople with a backend error
type failingStore struct {
	storage.Store
}

func (failingStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	return nil, &storage.BackendError{Backend: "neo4j", Op: "list people", Err: errors.New("connection refused")}
}

// TestBackendErrors checks that driver failures map to 500
func TestBackendErrors(t *testing.T) {
	store, err := storage.NewMemoryStore("")
	if err != nil {
		t.Fatal(err)
	}
	ts := setupTestServerWithStore(t, failingStore{Store: store})

	resp, body := ts.doRequest("GET", "/api/v1/people", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d: %s", resp.StatusCode, string(body))
	}

	var errResp models.ErrorResponse
	ts.decode(body, &errResp)
	if errResp.Error.Message != "Failed to list people" {
		t.Errorf("Unexpected message %q", errResp.Error.Message)
	}
}

// TestCORS checks preflight handling
func TestCORS(t *testing.T) {
	ts := setupTestServer(t)

	req, _ := http.NewRequest("OPTIONS", ts.ts.URL+"/api/v1/people", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}
