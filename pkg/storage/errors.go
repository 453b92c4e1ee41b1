package storage

import "errors"

var (
	// ErrNotFound is returned when a node or edge does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a node or edge whose ID is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidID is returned for empty identifiers.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidData is returned for nil nodes or edges.
	ErrInvalidData = errors.New("invalid data")
	// ErrStorageClosed is returned after Close.
	ErrStorageClosed = errors.New("storage closed")
)
