// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// voting services to distinguish between different failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested society, schedule or
// household row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyVoted is returned by the conditional voted-flag update when
// the household row had already been flipped by a committed ballot.
var ErrAlreadyVoted = errors.New("household already voted")

// ErrCapacityReached is returned by the conditional voted_count increment
// when the society has no remaining capacity in this cycle.
var ErrCapacityReached = errors.New("society voter capacity reached")
