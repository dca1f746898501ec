// Package idalloc assigns dense surrogate keys to relations.
package idalloc

import (
	"errors"
	"fmt"
)

// ErrInvalidStart is returned for a non-positive starting key.
var ErrInvalidStart = errors.New("idalloc: start must be positive")

// Sequence returns the n keys start, start+1, ..., start+n-1.
func Sequence(n, start int) ([]int, error) {
	if start <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStart, start)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = start + i
	}
	return ids, nil
}

// Assign gives rows[i] the key start+i through set, preserving row order.
func Assign[T any](rows []T, start int, set func(*T, int)) error {
	if start <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidStart, start)
	}
	for i := range rows {
		set(&rows[i], start+i)
	}
	return nil
}
