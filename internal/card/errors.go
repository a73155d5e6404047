package card

import "errors"

// Domain errors for the card package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, card.ErrCardNotFound) {
//	    // handle unrecognised card
//	}
var (
	// ErrCardNotFound is returned when a card ID does not exist.
	ErrCardNotFound = errors.New("card: not found")

	// ErrCardExists is returned when creating a card with an ID that already exists.
	ErrCardExists = errors.New("card: already exists")

	// ErrInvalidCard is returned when card validation fails.
	ErrInvalidCard = errors.New("card: invalid")

	// ErrInsufficientBalance is returned when a check-in is attempted
	// with no remaining balance.
	ErrInsufficientBalance = errors.New("card: insufficient balance")
)
