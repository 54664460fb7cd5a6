package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jacentio/usergraph/store"
	"github.com/jacentio/usergraph/users"
)

const welcomeMessage = "Welcome to Swift Assignment API"

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Route not found")
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

// handleLoad replaces all data from upstream. Success has an empty body.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Reload(r.Context()); err != nil {
		s.fail(w, r, "Failed to load data", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query(), s.options.Pagination)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	list, err := s.svc.ListUsers(r.Context(), params)
	if err != nil {
		s.fail(w, r, "Failed to fetch users", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	user, err := s.svc.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.fail(w, r, "Failed to get user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUsers(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAll(r.Context()); err != nil {
		s.fail(w, r, "Failed to delete users", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	err := s.svc.DeleteUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.fail(w, r, "Failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutUser(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	doc, err := decodeUser(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	id, ok := doc.ID()
	if !ok || id < 1 {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	created, err := s.svc.PutUser(r.Context(), doc)
	if errors.Is(err, store.ErrAlreadyExists) {
		respondError(w, http.StatusConflict, "User already exists")
		return
	}
	if errors.Is(err, users.ErrInvalidID) {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if err != nil {
		s.fail(w, r, "Failed to add user", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/users/%d", id))
	respondJSON(w, http.StatusCreated, created)
}

// decodeUser parses a single JSON object, keeping integers exact.
func decodeUser(body []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("body is not an object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return store.NormalizeDocument(raw), nil
}

// fail logs err with the request id and answers 500 with message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message,
		"requestId", RequestIDFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	respondError(w, http.StatusInternalServerError, message)
}
