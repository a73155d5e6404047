package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for reader persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a reader by its unique identifier.
	// Returns ErrReaderNotFound if the reader does not exist.
	GetByID(ctx context.Context, id string) (*Reader, error)

	// List retrieves all readers.
	List(ctx context.Context) ([]Reader, error)

	// Create inserts a new reader.
	// Returns ErrReaderExists if a reader with the same ID already exists.
	Create(ctx context.Context, rdr *Reader) error

	// Update modifies an existing reader.
	// Returns ErrReaderNotFound if the reader does not exist.
	Update(ctx context.Context, rdr *Reader) error

	// Delete removes a reader by ID.
	// Returns ErrReaderNotFound if the reader does not exist.
	Delete(ctx context.Context, id string) error

	// SetOnline updates only the connection state of a reader.
	// This is optimised for the frequent connect/disconnect path.
	SetOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error

	// UpdateLocation updates the last reported position of a reader.
	UpdateLocation(ctx context.Context, id string, loc Location, seen time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a reader by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Reader, error) {
	query := `
		SELECT id, name, online, lat, lng, last_seen, created_at, updated_at
		FROM readers
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	rdr, err := scanReaderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReaderNotFound
		}
		return nil, fmt.Errorf("querying reader by id: %w", err)
	}
	return rdr, nil
}

// List retrieves all readers.
func (r *SQLiteRepository) List(ctx context.Context) ([]Reader, error) {
	query := `
		SELECT id, name, online, lat, lng, last_seen, created_at, updated_at
		FROM readers
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying readers: %w", err)
	}
	defer rows.Close()

	var readers []Reader
	for rows.Next() {
		rdr, err := scanReaderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reader: %w", err)
		}
		readers = append(readers, *rdr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readers: %w", err)
	}

	return readers, nil
}

// Create inserts a new reader.
func (r *SQLiteRepository) Create(ctx context.Context, rdr *Reader) error {
	if rdr.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReader)
	}

	now := time.Now().UTC()
	if rdr.CreatedAt.IsZero() {
		rdr.CreatedAt = now
	}
	rdr.UpdatedAt = now

	var lat, lng sql.NullFloat64
	if rdr.Location != nil {
		lat = sql.NullFloat64{Float64: rdr.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rdr.Location.Lng, Valid: true}
	}

	query := `
		INSERT INTO readers (id, name, online, lat, lng, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rdr.ID,
		rdr.Name,
		boolToInt(rdr.Online),
		lat,
		lng,
		nullableTime(rdr.LastSeen),
		rdr.CreatedAt.Format(time.RFC3339),
		rdr.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrReaderExists
		}
		return fmt.Errorf("inserting reader: %w", err)
	}

	return nil
}

// Update modifies an existing reader.
func (r *SQLiteRepository) Update(ctx context.Context, rdr *Reader) error {
	rdr.UpdatedAt = time.Now().UTC()

	var lat, lng sql.NullFloat64
	if rdr.Location != nil {
		lat = sql.NullFloat64{Float64: rdr.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rdr.Location.Lng, Valid: true}
	}

	query := `
		UPDATE readers SET
			name = ?, online = ?, lat = ?, lng = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rdr.Name,
		boolToInt(rdr.Online),
		lat,
		lng,
		nullableTime(rdr.LastSeen),
		rdr.UpdatedAt.Format(time.RFC3339),
		rdr.ID,
	)
	if err != nil {
		return fmt.Errorf("updating reader: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReaderNotFound
	}

	return nil
}

// Delete removes a reader by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM readers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting reader: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReaderNotFound
	}

	return nil
}

// SetOnline updates only the connection state of a reader.
func (r *SQLiteRepository) SetOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE readers
		SET online = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(online),
		lastSeen.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating reader online state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReaderNotFound
	}

	return nil
}

// UpdateLocation updates the last reported position of a reader.
func (r *SQLiteRepository) UpdateLocation(ctx context.Context, id string, loc Location, seen time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE readers
		SET lat = ?, lng = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		loc.Lat,
		loc.Lng,
		seen.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating reader location: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReaderNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReaderRow scans a row or rows result into a Reader.
func scanReaderRow(scanner rowScanner) (*Reader, error) {
	var rdr Reader
	var online int
	var lat, lng sql.NullFloat64
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rdr.ID,
		&rdr.Name,
		&online,
		&lat,
		&lng,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rdr.Online = online != 0

	if lat.Valid && lng.Valid {
		rdr.Location = &Location{Lat: lat.Float64, Lng: lng.Float64}
	}

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err == nil {
			rdr.LastSeen = &t
		}
	}

	var parseErr error
	rdr.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	rdr.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &rdr, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
