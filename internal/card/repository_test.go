package card

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the cards table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE cards (
			id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			checked_in INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	c := &Card{ID: "card-1", Balance: 100}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "card-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Balance != 100 {
		t.Errorf("Balance = %d, want 100", got.Balance)
	}
	if got.CheckedIn {
		t.Error("new card should not be checked in")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on create")
	}
}

func TestSQLiteRepository_CreateValidation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("missing id", func(t *testing.T) {
		err := repo.Create(ctx, &Card{})
		if !errors.Is(err, ErrInvalidCard) {
			t.Errorf("Create() error = %v, want ErrInvalidCard", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		if err := repo.Create(ctx, &Card{ID: "card-1"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		err := repo.Create(ctx, &Card{ID: "card-1"})
		if !errors.Is(err, ErrCardExists) {
			t.Errorf("duplicate Create() error = %v, want ErrCardExists", err)
		}
	})
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrCardNotFound) {
		t.Errorf("GetByID() error = %v, want ErrCardNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"card-b", "card-a"} {
		if err := repo.Create(ctx, &Card{ID: id, Balance: 50}); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	cards, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("List() returned %d cards, want 2", len(cards))
	}
	if cards[0].ID != "card-a" || cards[1].ID != "card-b" {
		t.Errorf("List() order = %s, %s, want card-a, card-b", cards[0].ID, cards[1].ID)
	}
}

func TestSQLiteRepository_UpdatePunchState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Card{ID: "card-1", Balance: 100}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdatePunchState(ctx, "card-1", 90, true); err != nil {
		t.Fatalf("UpdatePunchState() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "card-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Balance != 90 || !got.CheckedIn {
		t.Errorf("card after punch = balance %d checked_in %v, want 90 true", got.Balance, got.CheckedIn)
	}

	// Balance may go negative on the final check-in
	if err := repo.UpdatePunchState(ctx, "card-1", -5, true); err != nil {
		t.Fatalf("UpdatePunchState() error = %v", err)
	}
	got, err = repo.GetByID(ctx, "card-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Balance != -5 {
		t.Errorf("Balance = %d, want -5", got.Balance)
	}

	if err := repo.UpdatePunchState(ctx, "ghost", 0, false); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("UpdatePunchState(ghost) error = %v, want ErrCardNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Card{ID: "card-1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "card-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "card-1"); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrCardNotFound", err)
	}
	if err := repo.Delete(ctx, "card-1"); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("second Delete() error = %v, want ErrCardNotFound", err)
	}
}
