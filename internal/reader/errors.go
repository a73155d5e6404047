package reader

import "errors"

// Domain errors for the reader package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, reader.ErrReaderNotFound) {
//	    // handle not found case
//	}
var (
	// ErrReaderNotFound is returned when a reader ID does not exist.
	ErrReaderNotFound = errors.New("reader: not found")

	// ErrReaderExists is returned when creating a reader with an ID that already exists.
	ErrReaderExists = errors.New("reader: already exists")

	// ErrInvalidReader is returned when reader validation fails.
	ErrInvalidReader = errors.New("reader: invalid")

	// ErrInvalidLocation is returned when a reported location is out of range.
	ErrInvalidLocation = errors.New("reader: invalid location")
)
