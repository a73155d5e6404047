// Package punchlog provides the append-only punch event log.
//
// Every accepted punch is recorded as an immutable PunchEvent. Events
// carry a monotonic sequence number assigned by SQLite on insert, so
// the log order is exactly the order punches were committed in. There
// is no update or delete path; the log only grows.
package punchlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction distinguishes the two punch outcomes.
type Direction string

// Punch directions.
const (
	DirectionCheckIn  Direction = "check_in"
	DirectionCheckOut Direction = "check_out"
)

// Location is a geographic position attached to an event.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PunchEvent is a single immutable entry in the punch log.
type PunchEvent struct {
	// Seq is the monotonic sequence number assigned on insert.
	Seq int64 `json:"seq"`

	// ID is a globally unique event identifier.
	ID string `json:"id"`

	CardID   string `json:"card_id"`
	ReaderID string `json:"reader_id"`

	// Location is the reader's last reported position at punch time,
	// nil when the reader has never reported one.
	Location *Location `json:"location,omitempty"`

	Direction Direction `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which punch events to return.
type Filter struct {
	CardID    string    // optional: filter by card
	ReaderID  string    // optional: filter by reader
	Direction Direction // optional: filter by direction
	Limit     int       // default 50, max 200
	Offset    int       // pagination offset
}

// Pagination bounds for event queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// ListResult contains the paginated punch event results.
type ListResult struct {
	Events []PunchEvent `json:"events"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Repository defines the interface for punch log operations.
// The log is append-only: there is deliberately no update or delete.
type Repository interface {
	Append(ctx context.Context, event *PunchEvent) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores punch events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new punch log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts a new punch event. The ID and CreatedAt are generated
// if empty; Seq is assigned by the database and written back.
func (r *SQLiteRepository) Append(ctx context.Context, event *PunchEvent) error {
	if event.ID == "" {
		event.ID = "pe-" + uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var lat, lng any
	if event.Location != nil {
		lat = event.Location.Lat
		lng = event.Location.Lng
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO punch_events (id, card_id, reader_id, lat, lng, direction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.CardID, event.ReaderID,
		lat, lng,
		string(event.Direction),
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting punch event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading event sequence: %w", err)
	}
	event.Seq = seq

	return nil
}

// List returns punch events matching the filter, ordered by sequence
// number ascending so the result reads as a timeline.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.CardID != "" {
		conditions = append(conditions, "card_id = ?")
		args = append(args, filter.CardID)
	}
	if filter.ReaderID != "" {
		conditions = append(conditions, "reader_id = ?")
		args = append(args, filter.ReaderID)
	}
	if filter.Direction != "" {
		conditions = append(conditions, "direction = ?")
		args = append(args, string(filter.Direction))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM punch_events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting punch events: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT seq, id, card_id, reader_id, lat, lng, direction, created_at FROM punch_events %s ORDER BY seq LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying punch events: %w", err)
	}
	defer rows.Close()

	var events []PunchEvent
	for rows.Next() {
		var e PunchEvent
		var lat, lng sql.NullFloat64
		var direction, createdAt string

		if err := rows.Scan(&e.Seq, &e.ID, &e.CardID, &e.ReaderID, &lat, &lng, &direction, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning punch event: %w", err)
		}

		e.Direction = Direction(direction)
		if lat.Valid && lng.Valid {
			e.Location = &Location{Lat: lat.Float64, Lng: lng.Float64}
		}

		e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating punch events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
