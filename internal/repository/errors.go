package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on duplicate keys and stale versions.
	ErrConflict = errors.New("record conflict")
	// ErrNotAcquired is returned when an agent slot could not be taken.
	ErrNotAcquired = errors.New("agent capacity not acquired")
)

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
