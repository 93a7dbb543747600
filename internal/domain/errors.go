package domain

import "errors"

var (
	// ErrInvalidSnapshot is returned when an ingested snapshot is missing required fields
	ErrInvalidSnapshot = errors.New("invalid offer snapshot")

	// ErrConflict is returned when a concurrent ingest holds the row lock for the same offer key
	ErrConflict = errors.New("concurrent ingest conflict")

	// ErrOfferNotFound is returned when an offer is not found
	ErrOfferNotFound = errors.New("offer not found")
)
