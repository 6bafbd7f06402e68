package bootstrap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ha1tch/minired/pkg/models"
	"gopkg.in/yaml.v3"
)

// Script is the startup batch: backend statements followed by seed data
type Script struct {
	Statements []string
	Seed       *Seed
	// ContinueOnError runs every statement and joins the failures instead
	// of stopping at the first one
	ContinueOnError bool
}

// Empty reports whether the script has nothing to apply
func (s Script) Empty() bool {
	return len(s.Statements) == 0 && (s.Seed == nil || s.Seed.Empty())
}

// Seed is initial graph data applied through the service
type Seed struct {
	People      []models.Person `yaml:"people"`
	Friendships [][]string      `yaml:"friendships"`
}

// Empty reports whether the seed holds no people and no friendships
func (s *Seed) Empty() bool {
	return len(s.People) == 0 && len(s.Friendships) == 0
}

// Report summarizes an applied Script
type Report struct {
	Executed    int `json:"executed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	People      int `json:"people"`
	Friendships int `json:"friendships"`
}

// StatementError identifies the statement that failed
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// ParseStatements splits r on ';' into trimmed statements. Lines starting
// with "//" or "--" are comments. Pieces left empty are dropped.
func ParseStatements(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var statements []string
	for _, piece := range strings.Split(string(data), ";") {
		if stmt := stripComments(piece); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

func stripComments(piece string) string {
	var b strings.Builder
	for _, line := range strings.Split(piece, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}

// ReadStatements parses the statements file at path
func ReadStatements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statements file: %w", err)
	}
	defer f.Close()

	return ParseStatements(f)
}

// ParseSeed decodes a YAML seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	for i, pair := range seed.Friendships {
		if len(pair) != 2 {
			return nil, fmt.Errorf("friendship %d: want 2 names, got %d", i+1, len(pair))
		}
	}
	return &seed, nil
}

// LoadSeed reads and decodes the YAML seed file at path
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// Load builds a Script from optional statement and seed files. Empty paths
// are skipped.
func Load(statementsPath, seedPath string, continueOnError bool) (Script, error) {
	script := Script{ContinueOnError: continueOnError}

	if statementsPath != "" {
		statements, err := ReadStatements(statementsPath)
		if err != nil {
			return script, err
		}
		script.Statements = statements
	}

	if seedPath != "" {
		seed, err := LoadSeed(seedPath)
		if err != nil {
			return script, err
		}
		script.Seed = seed
	}

	return script, nil
}
