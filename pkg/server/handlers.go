package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/storage"
	"github.com/ha1tch/minired/pkg/validation"
)

// handleAddPerson creates or overwrites a person
func (s *Server) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	var p models.Person
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	person, err := s.service.AddPerson(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, err, "Failed to save person")
		return
	}

	s.writeJSON(w, http.StatusCreated, person)
}

// handleListPeople lists everyone sorted by name
func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.service.ListPeople(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "Failed to list people")
		return
	}

	s.writeJSON(w, http.StatusOK, people)
}

// handleFindPerson retrieves a single person
func (s *Server) handleFindPerson(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	person, found, err := s.service.FindPerson(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err, "Failed to get person")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Person %s not found", name))
		return
	}

	s.writeJSON(w, http.StatusOK, person)
}

// handleDeletePerson deletes a person and its friendships
func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	if err := s.service.DeletePerson(r.Context(), name); err != nil {
		s.writeServiceError(w, err, "Failed to delete person")
		return
	}

	s.writeJSON(w, http.StatusOK, models.SuccessResponse{
		Message: fmt.Sprintf("Person %s deleted successfully", name),
	})
}

// handleListFriends lists the friends of a person
func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.service.ListFriends(r.Context(), pathParam(r, "name"))
	if err != nil {
		s.writeServiceError(w, err, "Failed to list friends")
		return
	}

	s.writeJSON(w, http.StatusOK, friends)
}

// handleCreateFriendship connects two people; 201 when a new friendship
// was stored, 200 when nothing changed
func (s *Server) handleCreateFriendship(w http.ResponseWriter, r *http.Request) {
	name, friend := pathParam(r, "name"), pathParam(r, "friend")

	created, err := s.service.CreateFriendship(r.Context(), name, friend)
	if err != nil {
		s.writeServiceError(w, err, "Failed to create friendship")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, models.FriendshipResult{
		Person:  name,
		Friend:  friend,
		Created: &created,
	})
}

// handleDeleteFriendship removes a friendship in either order
func (s *Server) handleDeleteFriendship(w http.ResponseWriter, r *http.Request) {
	name, friend := pathParam(r, "name"), pathParam(r, "friend")

	removed, err := s.service.DeleteFriendship(r.Context(), name, friend)
	if err != nil {
		s.writeServiceError(w, err, "Failed to delete friendship")
		return
	}

	s.writeJSON(w, http.StatusOK, models.FriendshipResult{
		Person:  name,
		Friend:  friend,
		Deleted: &removed,
	})
}

// handleRecommend serves recommendations by city or hobby
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var (
		people []models.Person
		err    error
	)
	switch models.Attribute(chi.URLParam(r, "attribute")) {
	case models.AttributeCity:
		people, err = s.service.RecommendByCity(r.Context(), name)
	case models.AttributeHobby:
		people, err = s.service.RecommendByHobby(r.Context(), name)
	default:
		s.writeError(w, http.StatusBadRequest, "Recommendations are available by city or hobby")
		return
	}
	if err != nil {
		s.writeServiceError(w, err, "Failed to compute recommendations")
		return
	}

	s.writeJSON(w, http.StatusOK, people)
}

// handleStats returns graph statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "Failed to compute stats")
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// writeServiceError maps the error taxonomy onto HTTP status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case validation.IsValidationError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg(message)
		s.writeError(w, http.StatusInternalServerError, message)
	}
}

// pathParam returns the decoded URL parameter. chi routes on RawPath when
// it is set, so only then is the parameter still escaped.
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value
	}
	if v, err := url.PathUnescape(value); err == nil {
		return v
	}
	return value
}
