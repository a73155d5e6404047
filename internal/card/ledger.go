package card

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Ledger.
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

// LedgerConfig holds the tunable punch parameters.
type LedgerConfig struct {
	// Fee is the amount deducted on every check-in.
	Fee int64

	// LowBalanceThreshold is the balance at or below which a punch
	// result carries a low-balance advisory.
	LowBalanceThreshold int64
}

// Ledger manages card balances and the check-in/check-out state machine.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// Writes go to the repository first; the cache is only updated after
// the repository reports success, so a persistence failure never leaves
// the cache claiming a deduction that was not stored.
//
// ApplyPunch performs a read-modify-write on a single card. Callers
// must serialise punches for the same card; the punch processor does
// this with a per-card lock so the event log order matches the order
// balances were mutated in.
//
// All public methods are thread-safe with respect to the cache.
type Ledger struct {
	repo    Repository
	cfg     LedgerConfig
	cache   map[string]*Card // Cached cards by ID
	cacheMu sync.RWMutex     // Protects cache
	logger  Logger
}

// NewLedger creates a new card ledger.
// The repository is used for persistence; the ledger adds caching and
// the punch state machine.
func NewLedger(repo Repository, cfg LedgerConfig) *Ledger {
	return &Ledger{
		repo:   repo,
		cfg:    cfg,
		cache:  make(map[string]*Card),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the ledger.
func (l *Ledger) SetLogger(logger Logger) {
	l.logger = logger
}

// RefreshCache reloads all cards from the repository into the cache.
// This should be called on application startup.
func (l *Ledger) RefreshCache(ctx context.Context) error {
	cards, err := l.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}

	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	l.cache = make(map[string]*Card, len(cards))
	for i := range cards {
		c := cards[i]
		l.cache[c.ID] = c.Copy()
	}

	l.logger.Info("card cache refreshed", "count", len(cards))
	return nil
}

// GetCard retrieves a card by ID.
// Returns ErrCardNotFound if the card does not exist.
// The returned card is a copy; callers can safely modify it.
func (l *Ledger) GetCard(ctx context.Context, id string) (*Card, error) {
	l.cacheMu.RLock()
	cached, ok := l.cache[id]
	l.cacheMu.RUnlock()

	if ok {
		// Return a copy to prevent external mutation of cache
		return cached.Copy(), nil
	}

	// Fall back to repository (might be a new card not yet cached)
	c, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.cacheMu.Lock()
	l.cache[id] = c.Copy()
	l.cacheMu.Unlock()

	return c, nil
}

// ListCards retrieves all cards.
// The returned cards are copies; callers can safely modify them.
func (l *Ledger) ListCards(ctx context.Context) ([]Card, error) {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()

	if len(l.cache) > 0 {
		cards := make([]Card, 0, len(l.cache))
		for _, c := range l.cache {
			cards = append(cards, *c.Copy())
		}
		return cards, nil
	}

	return l.repo.List(ctx)
}

// CreateCard validates and persists a new card.
// Returns ErrCardExists if the ID is already taken.
func (l *Ledger) CreateCard(ctx context.Context, c *Card) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCard)
	}
	if c.Balance < 0 {
		return fmt.Errorf("%w: negative balance", ErrInvalidCard)
	}

	if err := l.repo.Create(ctx, c); err != nil {
		return err
	}

	l.cacheMu.Lock()
	l.cache[c.ID] = c.Copy()
	l.cacheMu.Unlock()

	l.logger.Info("card created", "card_id", c.ID, "balance", c.Balance)
	return nil
}

// DeleteCard removes a card.
// Returns ErrCardNotFound if the card does not exist.
func (l *Ledger) DeleteCard(ctx context.Context, id string) error {
	if err := l.repo.Delete(ctx, id); err != nil {
		return err
	}

	l.cacheMu.Lock()
	delete(l.cache, id)
	l.cacheMu.Unlock()

	l.logger.Info("card deleted", "card_id", id)
	return nil
}

// ApplyPunch runs the punch state machine for a card:
//
//   - A checked-in card checks out. Check-out is always permitted and
//     never charged, so a card can always leave.
//   - A checked-out card checks in, which deducts the configured fee.
//     Check-in is refused with ErrInsufficientBalance when the balance
//     is already at or below zero.
//
// The new state is persisted before the cache is updated. Returns
// ErrCardNotFound for unrecognised cards; the card state is untouched
// on any error.
func (l *Ledger) ApplyPunch(ctx context.Context, cardID string) (*PunchResult, error) {
	c, err := l.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	var charged int64
	if c.CheckedIn {
		c.CheckedIn = false
	} else {
		if c.Balance <= 0 {
			return nil, ErrInsufficientBalance
		}
		c.Balance -= l.cfg.Fee
		c.CheckedIn = true
		charged = l.cfg.Fee
	}

	if err := l.repo.UpdatePunchState(ctx, c.ID, c.Balance, c.CheckedIn); err != nil {
		return nil, fmt.Errorf("persisting punch: %w", err)
	}

	l.cacheMu.Lock()
	l.cache[c.ID] = c.Copy()
	l.cacheMu.Unlock()

	result := &PunchResult{
		Card:       c,
		CheckedIn:  c.CheckedIn,
		Charged:    charged,
		LowBalance: c.Balance <= l.cfg.LowBalanceThreshold,
	}

	l.logger.Debug("punch applied",
		"card_id", c.ID,
		"checked_in", c.CheckedIn,
		"balance", c.Balance,
		"charged", charged,
	)
	return result, nil
}
