package card

import "time"

// Card represents a prepaid access card.
// Balance is tracked in whole credit units; every check-in deducts the
// configured fee, check-out is always free.
type Card struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	CheckedIn bool      `json:"checked_in"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy creates an independent copy of the Card.
func (c *Card) Copy() *Card {
	if c == nil {
		return nil
	}
	cpy := *c
	return &cpy
}

// PunchResult describes the outcome of a successful punch.
type PunchResult struct {
	// Card is the card state after the punch was applied.
	Card *Card

	// CheckedIn reports the direction of the punch: true means the
	// card just checked in, false means it just checked out.
	CheckedIn bool

	// Charged is the amount deducted by this punch (zero for check-out).
	Charged int64

	// LowBalance is set when the remaining balance is at or below the
	// configured advisory threshold.
	LowBalance bool
}
