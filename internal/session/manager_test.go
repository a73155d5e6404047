package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calder-systems/punchcore/internal/reader"
)

// fakeRegistry is a minimal in-memory ReaderRegistry.
type fakeRegistry struct {
	mu           sync.Mutex
	readers      map[string]*reader.Reader
	setOnlineErr error
}

func newFakeRegistry(ids ...string) *fakeRegistry {
	readers := make(map[string]*reader.Reader, len(ids))
	now := time.Now().UTC()
	for _, id := range ids {
		readers[id] = &reader.Reader{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	return &fakeRegistry{readers: readers}
}

func (f *fakeRegistry) GetReader(_ context.Context, id string) (*reader.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.readers[id]; ok {
		return r.Copy(), nil
	}
	return nil, reader.ErrReaderNotFound
}

func (f *fakeRegistry) SetOnline(_ context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setOnlineErr != nil {
		return f.setOnlineErr
	}
	r, ok := f.readers[id]
	if !ok {
		return reader.ErrReaderNotFound
	}
	r.Online = online
	return nil
}

func (f *fakeRegistry) online(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.readers[id]; ok {
		return r.Online
	}
	return false
}

func TestManager_Authenticate(t *testing.T) {
	registry := newFakeRegistry("reader-1")
	mgr := NewManager(registry)
	ctx := context.Background()

	t.Run("resolves known reader", func(t *testing.T) {
		rdr, err := mgr.Authenticate(ctx, "reader-1")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if rdr.ID != "reader-1" {
			t.Errorf("ID = %q, want %q", rdr.ID, "reader-1")
		}
	})

	t.Run("rejects unknown reader", func(t *testing.T) {
		_, err := mgr.Authenticate(ctx, "intruder")
		if !errors.Is(err, ErrUnknownReader) {
			t.Errorf("Authenticate() error = %v, want ErrUnknownReader", err)
		}
	})

	t.Run("rejects empty identifier", func(t *testing.T) {
		_, err := mgr.Authenticate(ctx, "")
		if !errors.Is(err, ErrUnknownReader) {
			t.Errorf("Authenticate() error = %v, want ErrUnknownReader", err)
		}
	})

	t.Run("does not change reader state", func(t *testing.T) {
		if _, err := mgr.Authenticate(ctx, "reader-1"); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if registry.online("reader-1") {
			t.Error("Authenticate() marked reader online")
		}
		if mgr.IsConnected("reader-1") {
			t.Error("Authenticate() created a session")
		}
	})
}

func TestManager_Bind(t *testing.T) {
	t.Run("binds session and marks online", func(t *testing.T) {
		registry := newFakeRegistry("reader-1")
		mgr := NewManager(registry)
		ctx := context.Background()

		session, err := mgr.Bind(ctx, "reader-1")
		if err != nil {
			t.Fatalf("Bind() error = %v", err)
		}
		if session.ReaderID != "reader-1" {
			t.Errorf("ReaderID = %q, want %q", session.ReaderID, "reader-1")
		}
		if !mgr.IsConnected("reader-1") {
			t.Error("IsConnected() = false after Bind()")
		}
		if !registry.online("reader-1") {
			t.Error("reader not marked online")
		}
	})

	t.Run("refuses second connection", func(t *testing.T) {
		registry := newFakeRegistry("reader-1")
		mgr := NewManager(registry)
		ctx := context.Background()

		if _, err := mgr.Bind(ctx, "reader-1"); err != nil {
			t.Fatalf("first Bind() error = %v", err)
		}

		_, err := mgr.Bind(ctx, "reader-1")
		if !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Bind() error = %v, want ErrAlreadyConnected", err)
		}

		// First session must survive the refused attempt.
		if !mgr.IsConnected("reader-1") {
			t.Error("existing session was dropped by refused connect")
		}
	})

	t.Run("releases slot when registry fails", func(t *testing.T) {
		registry := newFakeRegistry("reader-1")
		registry.setOnlineErr = errors.New("disk full")
		mgr := NewManager(registry)
		ctx := context.Background()

		if _, err := mgr.Bind(ctx, "reader-1"); err == nil {
			t.Fatal("Bind() expected error, got nil")
		}
		if mgr.IsConnected("reader-1") {
			t.Error("session slot held despite Bind() failure")
		}

		// Retry succeeds once the registry recovers.
		registry.setOnlineErr = nil
		if _, err := mgr.Bind(ctx, "reader-1"); err != nil {
			t.Errorf("retry Bind() error = %v", err)
		}
	})
}

func TestManager_Unbind(t *testing.T) {
	registry := newFakeRegistry("reader-1")
	mgr := NewManager(registry)
	ctx := context.Background()

	if _, err := mgr.Bind(ctx, "reader-1"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	t.Run("releases session and marks offline", func(t *testing.T) {
		if err := mgr.Unbind(ctx, "reader-1"); err != nil {
			t.Fatalf("Unbind() error = %v", err)
		}
		if mgr.IsConnected("reader-1") {
			t.Error("IsConnected() = true after Unbind()")
		}
		if registry.online("reader-1") {
			t.Error("reader still marked online")
		}
	})

	t.Run("returns ErrNotConnected when no session", func(t *testing.T) {
		err := mgr.Unbind(ctx, "reader-1")
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Unbind() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("allows reconnect after unbind", func(t *testing.T) {
		if _, err := mgr.Bind(ctx, "reader-1"); err != nil {
			t.Errorf("reconnect Bind() error = %v", err)
		}
	})
}

// TestManager_ConcurrentConnects races many connection attempts for
// one reader and verifies exactly one wins.
func TestManager_ConcurrentConnects(t *testing.T) {
	registry := newFakeRegistry("reader-1")
	mgr := NewManager(registry)
	ctx := context.Background()

	const attempts = 20

	var wg sync.WaitGroup
	var successes int64
	var successMu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Bind(ctx, "reader-1"); err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("%d binds succeeded, want exactly 1", successes)
	}
	if mgr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", mgr.Count())
	}
}

// TestManager_ConnectDisconnectCycle churns sessions across several
// readers concurrently.
func TestManager_ConnectDisconnectCycle(t *testing.T) {
	registry := newFakeRegistry("reader-1", "reader-2", "reader-3")
	mgr := NewManager(registry)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"reader-1", "reader-2", "reader-3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := mgr.Bind(ctx, id); err != nil {
					t.Errorf("Bind(%s) error = %v", id, err)
					return
				}
				if err := mgr.Unbind(ctx, id); err != nil {
					t.Errorf("Unbind(%s) error = %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	if mgr.Count() != 0 {
		t.Errorf("Count() = %d after all cycles, want 0", mgr.Count())
	}
}
