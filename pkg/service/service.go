package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/minired/pkg/bootstrap"
	"github.com/ha1tch/minired/pkg/cache"
	"github.com/ha1tch/minired/pkg/metrics"
	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/query"
	"github.com/ha1tch/minired/pkg/storage"
	"github.com/ha1tch/minired/pkg/validation"
)

// cachePrefix namespaces every key the service writes
const cachePrefix = "minired:"

// ErrAlreadyBootstrapped is returned by a second Bootstrap call
var ErrAlreadyBootstrapped = errors.New("bootstrap already applied")

// Service is the graph facade consumed by the console and HTTP shells. Each
// call is atomic with respect to its own store mutations only.
type Service struct {
	store     storage.Store
	engine    *query.Engine
	cache     cache.Cache
	validator validation.Validator
	metrics   *metrics.Collector
	logger    zerolog.Logger

	// generation is part of every cache key; invalidate bumps it so a read
	// that loaded before a mutation can only fill a key nobody reads again
	generation atomic.Uint64

	bootstrapOnce sync.Once
}

// New creates a Service. A nil cache disables caching, a nil validator
// selects validation.NewPersonValidator and a nil collector disables metrics.
func New(
	store storage.Store,
	cacheInstance cache.Cache,
	validator validation.Validator,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *Service {
	if cacheInstance == nil {
		cacheInstance = cache.NoopCache{}
	}
	if validator == nil {
		validator = validation.NewPersonValidator()
	}

	return &Service{
		store:     store,
		engine:    query.NewEngine(store),
		cache:     cacheInstance,
		validator: validator,
		metrics:   collector,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Info describes the backing store
func (s *Service) Info() storage.StoreInfo {
	return storage.Describe(s.store)
}

// AddPerson registers a person or overwrites city and hobby of an existing one
func (s *Service) AddPerson(ctx context.Context, p models.Person) (person models.Person, err error) {
	defer s.observe("add_person", time.Now(), &err)

	if err := s.validator.ValidatePerson(p); err != nil {
		return models.Person{}, err
	}

	person, err = s.store.UpsertPerson(ctx, p)
	if err != nil {
		return models.Person{}, err
	}
	s.invalidate(ctx)

	s.logger.Info().
		Str("name", person.Name).
		Str("city", person.City).
		Str("hobby", person.Hobby).
		Msg("Person saved")
	return person, nil
}

// ListPeople returns everyone sorted by name
func (s *Service) ListPeople(ctx context.Context) (people []models.Person, err error) {
	defer s.observe("list_people", time.Now(), &err)

	return cached(ctx, s, "people", func() ([]models.Person, error) {
		return s.store.ListPeople(ctx)
	})
}

// FindPerson looks a person up by exact name. The bool is false when absent.
func (s *Service) FindPerson(ctx context.Context, name string) (person models.Person, found bool, err error) {
	defer s.observe("find_person", time.Now(), &err)

	if err := s.validator.ValidateName("name", name); err != nil {
		return models.Person{}, false, err
	}

	person, err = s.store.GetPerson(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Person{}, false, nil
	}
	if err != nil {
		return models.Person{}, false, err
	}
	return person, true, nil
}

// DeletePerson removes the person and every friendship touching it
func (s *Service) DeletePerson(ctx context.Context, name string) (err error) {
	defer s.observe("delete_person", time.Now(), &err)

	if err := s.validator.ValidateName("name", name); err != nil {
		return err
	}

	if err := s.store.DeletePerson(ctx, name); err != nil {
		return err
	}
	s.invalidate(ctx)

	s.logger.Info().Str("name", name).Msg("Person deleted")
	return nil
}

// CreateFriendship connects a and b. It returns false when the friendship
// already exists, a equals b, or either person does not exist.
func (s *Service) CreateFriendship(ctx context.Context, a, b string) (created bool, err error) {
	defer s.observe("create_friendship", time.Now(), &err)

	if err := s.validatePair(a, b); err != nil {
		return false, err
	}

	created, err = s.store.CreateFriendship(ctx, a, b)
	if err != nil {
		return false, err
	}

	if created {
		s.invalidate(ctx)
		s.logger.Info().Str("person", a).Str("friend", b).Msg("Friendship created")
	} else {
		s.logger.Debug().Str("person", a).Str("friend", b).Msg("Friendship unchanged")
	}
	return created, nil
}

// ListFriends returns the friends of name sorted by name
func (s *Service) ListFriends(ctx context.Context, name string) (friends []models.Person, err error) {
	defer s.observe("list_friends", time.Now(), &err)

	if err := s.validator.ValidateName("name", name); err != nil {
		return nil, err
	}

	return cached(ctx, s, "friends:"+name, func() ([]models.Person, error) {
		return s.store.ListNeighbors(ctx, name)
	})
}

// DeleteFriendship removes the friendship between a and b in either order
// and returns the number of friendships removed
func (s *Service) DeleteFriendship(ctx context.Context, a, b string) (removed int, err error) {
	defer s.observe("delete_friendship", time.Now(), &err)

	if err := s.validatePair(a, b); err != nil {
		return 0, err
	}

	removed, err = s.store.DeleteFriendship(ctx, a, b)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.invalidate(ctx)
		s.logger.Info().Str("person", a).Str("friend", b).Int("removed", removed).Msg("Friendship deleted")
	}
	return removed, nil
}

// RecommendByCity suggests people in the same city who are not yet friends
func (s *Service) RecommendByCity(ctx context.Context, name string) (people []models.Person, err error) {
	defer s.observe("recommend_by_city", time.Now(), &err)
	return s.recommend(ctx, name, models.AttributeCity)
}

// RecommendByHobby suggests people with the same hobby who are not yet friends
func (s *Service) RecommendByHobby(ctx context.Context, name string) (people []models.Person, err error) {
	defer s.observe("recommend_by_hobby", time.Now(), &err)
	return s.recommend(ctx, name, models.AttributeHobby)
}

func (s *Service) recommend(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error) {
	if err := s.validator.ValidateName("name", name); err != nil {
		return nil, err
	}

	return cached(ctx, s, "recommend:"+string(attr)+":"+name, func() ([]models.Person, error) {
		return s.engine.Recommend(ctx, name, attr)
	})
}

// Stats returns people and friendship totals
func (s *Service) Stats(ctx context.Context) (stats models.Stats, err error) {
	defer s.observe("stats", time.Now(), &err)

	return cached(ctx, s, "stats", func() (models.Stats, error) {
		return s.engine.Stats(ctx)
	})
}

// Bootstrap applies the startup script once per Service. Statements run
// through the store's Executor; stores without one skip them. Seed data is
// applied afterwards through AddPerson and CreateFriendship.
func (s *Service) Bootstrap(ctx context.Context, script bootstrap.Script) (report bootstrap.Report, err error) {
	applied := false
	s.bootstrapOnce.Do(func() {
		applied = true
		report, err = s.bootstrap(ctx, script)
	})
	if !applied {
		return bootstrap.Report{}, ErrAlreadyBootstrapped
	}
	return report, err
}

func (s *Service) bootstrap(ctx context.Context, script bootstrap.Script) (report bootstrap.Report, err error) {
	defer s.observe("bootstrap", time.Now(), &err)
	defer s.invalidate(ctx)

	if err := s.runStatements(ctx, script, &report); err != nil {
		return report, err
	}

	if script.Seed != nil {
		if err := s.applySeed(ctx, script.Seed, &report); err != nil {
			return report, err
		}
	}

	s.logger.Info().
		Int("executed", report.Executed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("people", report.People).
		Int("friendships", report.Friendships).
		Msg("Bootstrap complete")
	return report, nil
}

func (s *Service) runStatements(ctx context.Context, script bootstrap.Script, report *bootstrap.Report) error {
	if len(script.Statements) == 0 {
		return nil
	}

	executor, ok := s.store.(storage.Executor)
	if !ok {
		report.Skipped = len(script.Statements)
		s.logger.Warn().
			Str("store", s.Info().Type).
			Int("statements", report.Skipped).
			Msg("Store has no statement language, skipping bootstrap statements")
		return nil
	}

	var errs []error
	for i, stmt := range script.Statements {
		if err := executor.Exec(ctx, stmt); err != nil {
			report.Failed++
			stmtErr := &bootstrap.StatementError{Index: i, Statement: stmt, Err: err}
			s.logger.Error().Err(err).Int("index", i+1).Str("statement", stmt).Msg("Bootstrap statement failed")
			if !script.ContinueOnError {
				return stmtErr
			}
			errs = append(errs, stmtErr)
			continue
		}
		report.Executed++
	}

	return errors.Join(errs...)
}

func (s *Service) applySeed(ctx context.Context, seed *bootstrap.Seed, report *bootstrap.Report) error {
	for _, p := range seed.People {
		if _, err := s.AddPerson(ctx, p); err != nil {
			return fmt.Errorf("failed to seed person %q: %w", p.Name, err)
		}
		report.People++
	}

	for _, pair := range seed.Friendships {
		created, err := s.CreateFriendship(ctx, pair[0], pair[1])
		if err != nil {
			return fmt.Errorf("failed to seed friendship %s-%s: %w", pair[0], pair[1], err)
		}
		if created {
			report.Friendships++
		}
	}
	return nil
}

func (s *Service) validatePair(a, b string) error {
	if err := s.validator.ValidateName("person", a); err != nil {
		return err
	}
	return s.validator.ValidateName("friend", b)
}

// invalidate drops every cached read after a mutation
func (s *Service) invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.DeletePattern(ctx, cachePrefix+"*"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate cache")
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, start, *err)
	if *err != nil {
		s.logger.Debug().Err(*err).Str("operation", operation).Msg("Operation failed")
	}
}

// cached serves key from the cache or computes and stores it. Cache errors
// are logged and never fail the read.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	key = fmt.Sprintf("%s%d:%s", cachePrefix, s.generation.Load(), key)

	value, hit, err := cache.GetJSON[T](ctx, s.cache, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	s.metrics.CacheHit(hit)
	if hit {
		return value, nil
	}

	value, err = load()
	if err != nil {
		return value, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, value, 0); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return value, nil
}
