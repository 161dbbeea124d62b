package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrSlotTaken reports that an exclusion constraint rejected an overlapping interval.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStaleVersion reports an optimistic-concurrency loss.
	ErrStaleVersion = errors.New("row modified concurrently")
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate row")
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

// translate maps Postgres constraint failures onto repository sentinels,
// keeping the driver error in the chain.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqExclusionViolation:
		return errors.Join(ErrSlotTaken, err)
	case pqUniqueViolation:
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}
