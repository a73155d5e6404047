package reader

import "time"

// Location is a geographic position reported by a reader.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Reader represents a physical card reader known to the system.
// Readers authenticate to the WebSocket endpoint using their ID as
// the shared identifier, so the ID doubles as the handshake credential.
type Reader struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Connection state
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Last reported position, nil until the reader sends its first
	// location update.
	Location *Location `json:"location,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy creates an independent copy of the Reader.
// Pointer fields are cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (r *Reader) Copy() *Reader {
	if r == nil {
		return nil
	}

	cpy := *r

	if r.Location != nil {
		loc := *r.Location
		cpy.Location = &loc
	}
	if r.LastSeen != nil {
		seen := *r.LastSeen
		cpy.LastSeen = &seen
	}

	return &cpy
}
