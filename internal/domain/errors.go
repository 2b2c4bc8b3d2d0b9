package domain

import "errors"

var (
	// ErrInvalidRange is returned when an alias range has from > to
	ErrInvalidRange = errors.New("invalid token range")

	// ErrOverlappingRange is returned when an alias range intersects a
	// previously registered alias
	ErrOverlappingRange = errors.New("overlapping token range")

	// ErrUnknownTokenReference is returned when a rule references a
	// symbolic token name that was never registered
	ErrUnknownTokenReference = errors.New("unknown token reference")

	// ErrDuplicateAlias is returned when an alias name is registered twice
	ErrDuplicateAlias = errors.New("duplicate token alias")

	// ErrEmptyTokenSet is returned when an endpoint rule lists no token
	// references at all
	ErrEmptyTokenSet = errors.New("empty token reference list")
)
