package storage

import "errors"

var (
	// ErrInsufficientMemory is returned when a destination tier has no room for a blob
	ErrInsufficientMemory = errors.New("insufficient memory")

	// ErrNotFound is returned when a tier does not hold the requested module
	ErrNotFound = errors.New("content not found")

	// ErrCorrupted is returned when stored content fails reconstruction or checksum verification
	ErrCorrupted = errors.New("content corrupted")

	// ErrInvalidID is returned for ids that cannot name a stored blob
	ErrInvalidID = errors.New("invalid module id")

	// ErrSameTier is returned when a move names the same source and destination
	ErrSameTier = errors.New("source and destination tier are the same")
)
