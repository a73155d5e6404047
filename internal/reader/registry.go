package reader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Latitude/longitude bounds for location validation.
const (
	maxLatitude  = 90.0
	maxLongitude = 180.0
)

// Registry provides reader management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// which matters on the WebSocket handshake path where every connection
// attempt resolves a reader ID.
//
// Writes go to the repository first; the cache is only updated after
// the repository reports success, so the cache never gets ahead of
// durable state.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Reader // Cached readers by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new reader registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Reader),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all readers from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	readers, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading readers: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Reader, len(readers))
	for i := range readers {
		rdr := readers[i]
		r.cache[rdr.ID] = rdr.Copy()
	}

	r.logger.Info("reader cache refreshed", "count", len(readers))
	return nil
}

// GetReader retrieves a reader by ID.
// Returns ErrReaderNotFound if the reader does not exist.
// The returned reader is a copy; callers can safely modify it.
func (r *Registry) GetReader(ctx context.Context, id string) (*Reader, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a copy to prevent external mutation of cache
		return cached.Copy(), nil
	}

	// Fall back to repository (might be a new reader not yet cached)
	rdr, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = rdr.Copy()
	r.cacheMu.Unlock()

	return rdr, nil
}

// ListReaders retrieves all readers.
// The returned readers are copies; callers can safely modify them.
func (r *Registry) ListReaders(ctx context.Context) ([]Reader, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		readers := make([]Reader, 0, len(r.cache))
		for _, rdr := range r.cache {
			readers = append(readers, *rdr.Copy())
		}
		return readers, nil
	}

	return r.repo.List(ctx)
}

// CreateReader validates and persists a new reader.
// Returns ErrReaderExists if the ID is already taken.
func (r *Registry) CreateReader(ctx context.Context, rdr *Reader) error {
	if rdr.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReader)
	}
	if rdr.Location != nil {
		if err := validateLocation(*rdr.Location); err != nil {
			return err
		}
	}

	if err := r.repo.Create(ctx, rdr); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rdr.ID] = rdr.Copy()
	r.cacheMu.Unlock()

	r.logger.Info("reader created", "reader_id", rdr.ID, "name", rdr.Name)
	return nil
}

// DeleteReader removes a reader.
// Returns ErrReaderNotFound if the reader does not exist.
func (r *Registry) DeleteReader(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("reader deleted", "reader_id", id)
	return nil
}

// SetOnline marks a reader as connected or disconnected.
// Returns ErrReaderNotFound if the reader does not exist.
func (r *Registry) SetOnline(ctx context.Context, id string, online bool) error {
	now := time.Now().UTC()

	if err := r.repo.SetOnline(ctx, id, online, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.Online = online
		cached.LastSeen = &now
		cached.UpdatedAt = now
	}
	r.cacheMu.Unlock()

	r.logger.Debug("reader online state changed", "reader_id", id, "online", online)
	return nil
}

// UpdateLocation records the position reported by a reader.
// Returns ErrInvalidLocation if the coordinates are out of range and
// ErrReaderNotFound if the reader does not exist.
func (r *Registry) UpdateLocation(ctx context.Context, id string, loc Location) error {
	if err := validateLocation(loc); err != nil {
		return err
	}

	now := time.Now().UTC()

	if err := r.repo.UpdateLocation(ctx, id, loc, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		l := loc
		cached.Location = &l
		cached.LastSeen = &now
		cached.UpdatedAt = now
	}
	r.cacheMu.Unlock()

	r.logger.Debug("reader location updated", "reader_id", id, "lat", loc.Lat, "lng", loc.Lng)
	return nil
}

// validateLocation checks coordinates are within geographic bounds.
func validateLocation(loc Location) error {
	if loc.Lat < -maxLatitude || loc.Lat > maxLatitude {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, loc.Lat)
	}
	if loc.Lng < -maxLongitude || loc.Lng > maxLongitude {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, loc.Lng)
	}
	return nil
}
