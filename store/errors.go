package store

import "errors"

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("usergraph: document not found")

	// ErrAlreadyExists is returned when attempting to insert a document whose id is taken.
	ErrAlreadyExists = errors.New("usergraph: document already exists")

	// ErrNotInitialized is returned by a Handle that has not been connected yet.
	ErrNotInitialized = errors.New("usergraph: database not initialized")

	// ErrInvalidOptions is returned when FindOptions carry a negative skip or limit.
	ErrInvalidOptions = errors.New("usergraph: invalid find options")

	// ErrAlreadyConnected is returned when Connect is called on a connected Handle.
	ErrAlreadyConnected = errors.New("usergraph: database already connected")
)
