package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/storage"
	"github.com/ha1tch/minired/pkg/validation"
)

// Engine answers recommendation and statistics queries over a Store
type Engine struct {
	store  storage.Store
	native storage.Recommender
}

// NewEngine creates a query engine. Stores implementing storage.Recommender
// evaluate recommendations natively.
func NewEngine(store storage.Store) *Engine {
	e := &Engine{store: store}
	if rec, ok := store.(storage.Recommender); ok {
		e.native = rec
	}
	return e
}

// Native reports whether recommendations run inside the backend
func (e *Engine) Native() bool {
	return e.native != nil
}

// RecommendByCity returns people in the same city who are not yet friends
func (e *Engine) RecommendByCity(ctx context.Context, name string) ([]models.Person, error) {
	return e.Recommend(ctx, name, models.AttributeCity)
}

// RecommendByHobby returns people with the same hobby who are not yet friends
func (e *Engine) RecommendByHobby(ctx context.Context, name string) ([]models.Person, error) {
	return e.Recommend(ctx, name, models.AttributeHobby)
}

// Recommend returns everyone sharing attr with name, excluding name itself
// and its current friends, sorted by name. An unknown person or a blank
// attribute value yields an empty result.
func (e *Engine) Recommend(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error) {
	if !attr.Valid() {
		return nil, validation.NewValidationError("attribute", fmt.Sprintf("unknown attribute %q", attr))
	}

	if e.native != nil {
		people, err := e.native.RecommendByAttribute(ctx, name, attr)
		if err != nil {
			return nil, err
		}
		if people == nil {
			people = []models.Person{}
		}
		return people, nil
	}

	return e.scan(ctx, name, attr)
}

// scan evaluates a recommendation from the person list and neighbor set
func (e *Engine) scan(ctx context.Context, name string, attr models.Attribute) ([]models.Person, error) {
	results := []models.Person{}

	person, err := e.store.GetPerson(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return results, nil
	}
	if err != nil {
		return nil, err
	}

	value := attr.Of(person)
	if value == "" {
		return results, nil
	}

	friends, err := e.store.ListNeighbors(ctx, name)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(friends)+1)
	exclude[name] = struct{}{}
	for _, f := range friends {
		exclude[f.Name] = struct{}{}
	}

	people, err := e.store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}

	// ListPeople is already sorted by name
	for _, p := range people {
		if _, skip := exclude[p.Name]; skip {
			continue
		}
		if attr.Of(p) == value {
			results = append(results, p)
		}
	}

	return results, nil
}

// Stats returns the people and friendship totals and their ratio
func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	people, err := e.store.CountPeople(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	friendships, err := e.store.CountFriendships(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	return models.NewStats(people, friendships), nil
}
