package dictionary

import "errors"

var (
	// ErrNotFound is returned when a node, aza record or dataset does
	// not exist in the dictionary.
	ErrNotFound = errors.New("dictionary: not found")

	// ErrCorrupt is returned when dictionary files are missing or
	// fail validation.
	ErrCorrupt = errors.New("dictionary: corrupt data")
)
