// Package punch orchestrates the handling of a card punch.
//
// The processor ties the card ledger, the reader registry, and the
// punch log together: it applies the balance state machine, records
// the resulting event, and composes the display message sent back to
// the reader. Optional publish and telemetry hooks fan accepted
// punches out to MQTT and InfluxDB without affecting the punch result.
//
// Punches for the same card are serialised with a per-card lock held
// across the ledger update and the log append, so the event log order
// always matches the order balances were mutated in. Punches for
// different cards proceed in parallel.
package punch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calder-systems/punchcore/internal/card"
	"github.com/calder-systems/punchcore/internal/punchlog"
	"github.com/calder-systems/punchcore/internal/reader"
)

// Display messages sent back to the reader.
const (
	msgCardNotFound        = "Card not found!"
	msgInsufficientBalance = "Insufficient balance!"
	msgCheckIn             = "Success: Check In."
	msgCheckOut            = "Success: Check Out."
	msgLowBalanceWarning   = " Warning: Low Balance!"
)

// Logger defines the logging interface used by the Processor.
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

// Ledger is the card state machine the processor drives.
type Ledger interface {
	ApplyPunch(ctx context.Context, cardID string) (*card.PunchResult, error)
}

// ReaderResolver supplies the punching reader's current record, used
// to stamp events with the reader's last reported position.
type ReaderResolver interface {
	GetReader(ctx context.Context, id string) (*reader.Reader, error)
}

// EventLog is the append-only record of accepted punches.
type EventLog interface {
	Append(ctx context.Context, event *punchlog.PunchEvent) error
}

// Publisher receives accepted punch events for external fan-out.
// Implementations must not block; failures are logged and ignored.
type Publisher interface {
	PublishPunch(event punchlog.PunchEvent, balance int64)
}

// Telemetry receives punch metrics for time-series recording.
// Implementations must not block; failures are logged and ignored.
type Telemetry interface {
	RecordPunch(event punchlog.PunchEvent, balance int64)
}

// Result is the outcome of processing a punch, shaped for the reader
// protocol: Accepted distinguishes a state change from a refusal, and
// Message is the display text for the reader in either case.
type Result struct {
	// Accepted reports whether the punch changed card state.
	Accepted bool

	// Message is the display text for the reader.
	Message string

	// Direction is set on accepted punches.
	Direction punchlog.Direction

	// Balance is the card balance after the punch (accepted punches only).
	Balance int64

	// LowBalance is set when the accepted punch left the balance at or
	// below the advisory threshold.
	LowBalance bool

	// Event is the log entry recorded for an accepted punch.
	Event *punchlog.PunchEvent
}

// Processor handles card punches end to end.
type Processor struct {
	ledger    Ledger
	readers   ReaderResolver
	log       EventLog
	publisher Publisher // optional
	telemetry Telemetry // optional
	logger    Logger

	// Per-card locks serialising ApplyPunch + Append.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewProcessor creates a punch processor.
func NewProcessor(ledger Ledger, readers ReaderResolver, log EventLog) *Processor {
	return &Processor{
		ledger:  ledger,
		readers: readers,
		log:     log,
		logger:  noopLogger{},
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetLogger sets the logger for the processor.
func (p *Processor) SetLogger(logger Logger) {
	p.logger = logger
}

// SetPublisher attaches an optional fan-out publisher for accepted punches.
func (p *Processor) SetPublisher(pub Publisher) {
	p.publisher = pub
}

// SetTelemetry attaches an optional telemetry sink for accepted punches.
func (p *Processor) SetTelemetry(tel Telemetry) {
	p.telemetry = tel
}

// ProcessPunch handles a punch of cardID at readerID.
//
// Refusals (unrecognised card, insufficient balance) are not errors:
// they return a Result with Accepted false and the refusal message, so
// the reader still gets display text. An error is only returned for
// internal failures (persistence, log append), in which case no state
// was committed beyond what the ledger already persisted.
func (p *Processor) ProcessPunch(ctx context.Context, readerID, cardID string) (*Result, error) {
	cardLock := p.cardLock(cardID)
	cardLock.Lock()
	defer cardLock.Unlock()

	punchResult, err := p.ledger.ApplyPunch(ctx, cardID)
	if err != nil {
		switch {
		case errors.Is(err, card.ErrCardNotFound):
			p.logger.Info("punch refused", "reader_id", readerID, "card_id", cardID, "reason", "unknown card")
			return &Result{Message: msgCardNotFound}, nil
		case errors.Is(err, card.ErrInsufficientBalance):
			p.logger.Info("punch refused", "reader_id", readerID, "card_id", cardID, "reason", "insufficient balance")
			return &Result{Message: msgInsufficientBalance}, nil
		default:
			return nil, fmt.Errorf("applying punch: %w", err)
		}
	}

	direction := punchlog.DirectionCheckOut
	if punchResult.CheckedIn {
		direction = punchlog.DirectionCheckIn
	}

	event := &punchlog.PunchEvent{
		CardID:    cardID,
		ReaderID:  readerID,
		Location:  p.readerLocation(ctx, readerID),
		Direction: direction,
	}

	if err := p.log.Append(ctx, event); err != nil {
		// The ledger update is already durable; an unrecorded event is
		// an operational fault, not grounds to refuse the punch.
		return nil, fmt.Errorf("recording punch event: %w", err)
	}

	result := &Result{
		Accepted:   true,
		Message:    punchMessage(direction, punchResult.LowBalance),
		Direction:  direction,
		Balance:    punchResult.Card.Balance,
		LowBalance: punchResult.LowBalance,
		Event:      event,
	}

	p.logger.Info("punch accepted",
		"reader_id", readerID,
		"card_id", cardID,
		"direction", string(direction),
		"balance", result.Balance,
		"seq", event.Seq,
	)

	if p.publisher != nil {
		p.publisher.PublishPunch(*event, result.Balance)
	}
	if p.telemetry != nil {
		p.telemetry.RecordPunch(*event, result.Balance)
	}

	return result, nil
}

// cardLock returns the mutex for a card, creating it on first use.
// Locks are never removed; the set of cards is small and stable.
func (p *Processor) cardLock(cardID string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()

	lock, ok := p.locks[cardID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[cardID] = lock
	}
	return lock
}

// readerLocation resolves the reader's last reported position.
// A punch from a reader with no position yields a nil location.
func (p *Processor) readerLocation(ctx context.Context, readerID string) *punchlog.Location {
	rdr, err := p.readers.GetReader(ctx, readerID)
	if err != nil {
		p.logger.Warn("resolving reader for punch event", "reader_id", readerID, "error", err)
		return nil
	}
	if rdr.Location == nil {
		return nil
	}
	return &punchlog.Location{Lat: rdr.Location.Lat, Lng: rdr.Location.Lng}
}

// punchMessage composes the reader display text for an accepted punch.
func punchMessage(direction punchlog.Direction, lowBalance bool) string {
	msg := msgCheckOut
	if direction == punchlog.DirectionCheckIn {
		msg = msgCheckIn
	}
	if lowBalance {
		msg += msgLowBalanceWarning
	}
	return msg
}
