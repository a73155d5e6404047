package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for card persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a card by its unique identifier.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id string) (*Card, error)

	// List retrieves all cards.
	List(ctx context.Context) ([]Card, error)

	// Create inserts a new card.
	// Returns ErrCardExists if a card with the same ID already exists.
	Create(ctx context.Context, c *Card) error

	// Update modifies an existing card.
	// Returns ErrCardNotFound if the card does not exist.
	Update(ctx context.Context, c *Card) error

	// Delete removes a card by ID.
	// Returns ErrCardNotFound if the card does not exist.
	Delete(ctx context.Context, id string) error

	// UpdatePunchState updates only the balance and check-in state.
	// This is optimised for the punch path, which is the hot path.
	UpdatePunchState(ctx context.Context, id string, balance int64, checkedIn bool) error
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

// GetByID retrieves a card by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Card, error) {
	query := `
		SELECT id, balance, checked_in, created_at, updated_at
		FROM cards
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	c, err := scanCardRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("querying card by id: %w", err)
	}
	return c, nil
}

// List retrieves all cards.
func (r *SQLiteRepository) List(ctx context.Context) ([]Card, error) {
	query := `
		SELECT id, balance, checked_in, created_at, updated_at
		FROM cards
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		c, err := scanCardRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		cards = append(cards, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cards: %w", err)
	}

	return cards, nil
}

// Create inserts a new card.
func (r *SQLiteRepository) Create(ctx context.Context, c *Card) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCard)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO cards (id, balance, checked_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.Balance,
		boolToInt(c.CheckedIn),
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrCardExists
		}
		return fmt.Errorf("inserting card: %w", err)
	}

	return nil
}

// Update modifies an existing card.
func (r *SQLiteRepository) Update(ctx context.Context, c *Card) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE cards SET
			balance = ?, checked_in = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		c.Balance,
		boolToInt(c.CheckedIn),
		c.UpdatedAt.Format(time.RFC3339),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating card: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCardNotFound
	}

	return nil
}

// Delete removes a card by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting card: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCardNotFound
	}

	return nil
}

// UpdatePunchState updates only the balance and check-in state.
func (r *SQLiteRepository) UpdatePunchState(ctx context.Context, id string, balance int64, checkedIn bool) error {
	now := time.Now().UTC()
	query := `
		UPDATE cards
		SET balance = ?, checked_in = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		balance,
		boolToInt(checkedIn),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating card punch state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCardNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCardRow scans a row or rows result into a Card.
func scanCardRow(scanner rowScanner) (*Card, error) {
	var c Card
	var checkedIn int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID,
		&c.Balance,
		&checkedIn,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CheckedIn = checkedIn != 0

	var parseErr error
	c.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	c.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &c, nil
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
