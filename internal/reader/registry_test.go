package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	readers map[string]*Reader
	// For testing error paths
	createErr    error
	setOnlineErr error
	locationErr  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		readers: make(map[string]*Reader),
	}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.readers[id]; ok {
		return r.Copy(), nil
	}
	return nil, ErrReaderNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	readers := make([]Reader, 0, len(m.readers))
	for _, r := range m.readers {
		readers = append(readers, *r.Copy())
	}
	return readers, nil
}

func (m *MockRepository) Create(_ context.Context, rdr *Reader) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.readers[rdr.ID]; exists {
		return ErrReaderExists
	}

	m.readers[rdr.ID] = rdr.Copy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, rdr *Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.readers[rdr.ID]; !exists {
		return ErrReaderNotFound
	}

	m.readers[rdr.ID] = rdr.Copy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.readers[id]; !exists {
		return ErrReaderNotFound
	}

	delete(m.readers, id)
	return nil
}

func (m *MockRepository) SetOnline(_ context.Context, id string, online bool, lastSeen time.Time) error {
	if m.setOnlineErr != nil {
		return m.setOnlineErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.readers[id]
	if !exists {
		return ErrReaderNotFound
	}

	r.Online = online
	r.LastSeen = &lastSeen
	return nil
}

func (m *MockRepository) UpdateLocation(_ context.Context, id string, loc Location, seen time.Time) error {
	if m.locationErr != nil {
		return m.locationErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.readers[id]
	if !exists {
		return ErrReaderNotFound
	}

	r.Location = &loc
	r.LastSeen = &seen
	return nil
}

// addReader adds a reader directly to the mock for test setup.
func (m *MockRepository) addReader(r *Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers[r.ID] = r.Copy()
}

// testReader creates a reader for testing.
func testReader(id, name string) *Reader {
	now := time.Now().UTC()
	return &Reader{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addReader(testReader("reader-1", "Main Entrance"))
	repo.addReader(testReader("reader-2", "Loading Dock"))

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	readers, err := registry.ListReaders(ctx)
	if err != nil {
		t.Fatalf("ListReaders() error = %v", err)
	}
	if len(readers) != 2 {
		t.Errorf("ListReaders() returned %d readers, want 2", len(readers))
	}
}

func TestRegistry_GetReader(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addReader(testReader("reader-get", "Test Reader"))
	registry.RefreshCache(ctx)

	t.Run("returns reader from cache", func(t *testing.T) {
		got, err := registry.GetReader(ctx, "reader-get")
		if err != nil {
			t.Fatalf("GetReader() error = %v", err)
		}
		if got.ID != "reader-get" {
			t.Errorf("ID = %q, want %q", got.ID, "reader-get")
		}
	})

	t.Run("returns ErrReaderNotFound for nonexistent", func(t *testing.T) {
		_, err := registry.GetReader(ctx, "nonexistent")
		if !errors.Is(err, ErrReaderNotFound) {
			t.Errorf("GetReader() error = %v, want ErrReaderNotFound", err)
		}
	})

	t.Run("falls back to repository for uncached reader", func(t *testing.T) {
		repo.addReader(testReader("reader-uncached", "Uncached"))

		got, err := registry.GetReader(ctx, "reader-uncached")
		if err != nil {
			t.Fatalf("GetReader() error = %v", err)
		}
		if got.Name != "Uncached" {
			t.Errorf("Name = %q, want %q", got.Name, "Uncached")
		}
	})

	t.Run("returned reader is a copy", func(t *testing.T) {
		got, _ := registry.GetReader(ctx, "reader-get")
		got.Name = "Mutated"

		again, _ := registry.GetReader(ctx, "reader-get")
		if again.Name == "Mutated" {
			t.Error("mutation of returned reader leaked into cache")
		}
	})
}

func TestRegistry_CreateReader(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	t.Run("creates reader", func(t *testing.T) {
		rdr := testReader("reader-new", "New Reader")

		if err := registry.CreateReader(ctx, rdr); err != nil {
			t.Fatalf("CreateReader() error = %v", err)
		}

		got, err := registry.GetReader(ctx, "reader-new")
		if err != nil {
			t.Fatalf("GetReader() error = %v", err)
		}
		if got.Name != "New Reader" {
			t.Errorf("Name = %q, want %q", got.Name, "New Reader")
		}
	})

	t.Run("rejects missing id", func(t *testing.T) {
		err := registry.CreateReader(ctx, &Reader{Name: "No ID"})
		if !errors.Is(err, ErrInvalidReader) {
			t.Errorf("CreateReader() error = %v, want ErrInvalidReader", err)
		}
	})

	t.Run("rejects out of range location", func(t *testing.T) {
		rdr := testReader("reader-bad-loc", "Bad Location")
		rdr.Location = &Location{Lat: 120.0, Lng: 0}

		err := registry.CreateReader(ctx, rdr)
		if !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("CreateReader() error = %v, want ErrInvalidLocation", err)
		}
	})

	t.Run("returns error for duplicate ID", func(t *testing.T) {
		rdr1 := testReader("dup-id", "First")
		if err := registry.CreateReader(ctx, rdr1); err != nil {
			t.Fatalf("first CreateReader() error = %v", err)
		}

		rdr2 := testReader("dup-id", "Second")
		err := registry.CreateReader(ctx, rdr2)
		if !errors.Is(err, ErrReaderExists) {
			t.Errorf("CreateReader() error = %v, want ErrReaderExists", err)
		}
	})

	t.Run("does not cache when repository fails", func(t *testing.T) {
		repo.createErr = errors.New("disk full")
		defer func() { repo.createErr = nil }()

		rdr := testReader("reader-fail", "Failing")
		if err := registry.CreateReader(ctx, rdr); err == nil {
			t.Fatal("CreateReader() expected error, got nil")
		}

		if _, err := registry.GetReader(ctx, "reader-fail"); !errors.Is(err, ErrReaderNotFound) {
			t.Errorf("GetReader() error = %v, want ErrReaderNotFound", err)
		}
	})
}

func TestRegistry_SetOnline(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addReader(testReader("reader-online", "Online Test"))
	registry.RefreshCache(ctx)

	t.Run("marks reader online", func(t *testing.T) {
		if err := registry.SetOnline(ctx, "reader-online", true); err != nil {
			t.Fatalf("SetOnline() error = %v", err)
		}

		got, _ := registry.GetReader(ctx, "reader-online")
		if !got.Online {
			t.Error("Online = false, want true")
		}
		if got.LastSeen == nil {
			t.Error("LastSeen was not set")
		}
	})

	t.Run("marks reader offline", func(t *testing.T) {
		if err := registry.SetOnline(ctx, "reader-online", false); err != nil {
			t.Fatalf("SetOnline() error = %v", err)
		}

		got, _ := registry.GetReader(ctx, "reader-online")
		if got.Online {
			t.Error("Online = true, want false")
		}
	})

	t.Run("returns ErrReaderNotFound for nonexistent", func(t *testing.T) {
		err := registry.SetOnline(ctx, "nonexistent", true)
		if !errors.Is(err, ErrReaderNotFound) {
			t.Errorf("SetOnline() error = %v, want ErrReaderNotFound", err)
		}
	})

	t.Run("does not update cache when repository fails", func(t *testing.T) {
		repo.setOnlineErr = errors.New("disk full")
		defer func() { repo.setOnlineErr = nil }()

		if err := registry.SetOnline(ctx, "reader-online", true); err == nil {
			t.Fatal("SetOnline() expected error, got nil")
		}

		got, _ := registry.GetReader(ctx, "reader-online")
		if got.Online {
			t.Error("cache was updated despite repository failure")
		}
	})
}

func TestRegistry_UpdateLocation(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addReader(testReader("reader-loc", "Location Test"))
	registry.RefreshCache(ctx)

	t.Run("records reported position", func(t *testing.T) {
		loc := Location{Lat: 51.5074, Lng: -0.1278}
		if err := registry.UpdateLocation(ctx, "reader-loc", loc); err != nil {
			t.Fatalf("UpdateLocation() error = %v", err)
		}

		got, _ := registry.GetReader(ctx, "reader-loc")
		if got.Location == nil {
			t.Fatal("Location was not set")
		}
		if got.Location.Lat != 51.5074 || got.Location.Lng != -0.1278 {
			t.Errorf("Location = %+v, want {51.5074 -0.1278}", *got.Location)
		}
	})

	t.Run("rejects out of range latitude", func(t *testing.T) {
		err := registry.UpdateLocation(ctx, "reader-loc", Location{Lat: 91, Lng: 0})
		if !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("UpdateLocation() error = %v, want ErrInvalidLocation", err)
		}
	})

	t.Run("rejects out of range longitude", func(t *testing.T) {
		err := registry.UpdateLocation(ctx, "reader-loc", Location{Lat: 0, Lng: -181})
		if !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("UpdateLocation() error = %v, want ErrInvalidLocation", err)
		}
	})

	t.Run("returns ErrReaderNotFound for nonexistent", func(t *testing.T) {
		err := registry.UpdateLocation(ctx, "nonexistent", Location{Lat: 1, Lng: 1})
		if !errors.Is(err, ErrReaderNotFound) {
			t.Errorf("UpdateLocation() error = %v, want ErrReaderNotFound", err)
		}
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addReader(testReader("reader-conc", "Concurrent Test"))
	registry.RefreshCache(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = registry.GetReader(ctx, "reader-conc")
		}()
		go func(online bool) {
			defer wg.Done()
			_ = registry.SetOnline(ctx, "reader-conc", online)
		}(i%2 == 0)
	}
	wg.Wait()

	if _, err := registry.GetReader(ctx, "reader-conc"); err != nil {
		t.Errorf("GetReader() after concurrent access error = %v", err)
	}
}
