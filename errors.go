package pst

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is wrapped by *OutOfRangeError.
	ErrOutOfRange = errors.New("index out of range")
	// ErrDomainMismatch is wrapped by *DomainMismatchError.
	ErrDomainMismatch = errors.New("domain mismatch")
	// ErrArenaExhausted is wrapped by *ArenaExhaustedError.
	ErrArenaExhausted = errors.New("arena exhausted")
	// ErrInvalidDomain is returned when a tree is requested over an empty domain.
	ErrInvalidDomain = errors.New("domain must contain at least one index")
	// ErrLazyUnsupported is returned by operations that cannot see range tags,
	// such as merging and order statistics.
	ErrLazyUnsupported = errors.New("operation does not support range tags")
	// ErrNoLazy is returned by RangeAdd on a tree without lazy operations.
	ErrNoLazy = errors.New("monoid has no lazy operations")
	// ErrVersionExists is returned when a version key is recorded twice.
	ErrVersionExists = errors.New("version already recorded")
	// ErrInvalidTree is returned for malformed rooted trees.
	ErrInvalidTree = errors.New("invalid rooted tree")
)

// OutOfRangeError reports an index, range or rank outside its valid bounds.
type OutOfRangeError struct {
	What   string
	Lo, Hi int
	Min    int
	Max    int
}

func (e *OutOfRangeError) Error() string {
	if e.Lo == e.Hi {
		return fmt.Sprintf("%s %d outside [%d, %d]", e.What, e.Lo, e.Min, e.Max)
	}
	return fmt.Sprintf("%s [%d, %d] outside [%d, %d]", e.What, e.Lo, e.Hi, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// DomainMismatchError reports two roots that do not address the same
// index domain of the same arena.
type DomainMismatchError struct {
	A, B      int
	SameArena bool
}

func (e *DomainMismatchError) Error() string {
	if !e.SameArena {
		return fmt.Sprintf("roots over [1, %d] and [1, %d] belong to different arenas", e.A, e.B)
	}
	return fmt.Sprintf("roots over [1, %d] and [1, %d]", e.A, e.B)
}

func (e *DomainMismatchError) Unwrap() error { return ErrDomainMismatch }

// ArenaExhaustedError reports an allocation beyond the arena's capacity.
// It indicates a sizing bug, see CapacityFor.
type ArenaExhaustedError struct {
	Capacity int
}

func (e *ArenaExhaustedError) Error() string {
	return fmt.Sprintf("arena capacity of %d nodes exceeded", e.Capacity)
}

func (e *ArenaExhaustedError) Unwrap() error { return ErrArenaExhausted }

func outOfRange(what string, lo, hi, min, max int) error {
	return &OutOfRangeError{What: what, Lo: lo, Hi: hi, Min: min, Max: max}
}
