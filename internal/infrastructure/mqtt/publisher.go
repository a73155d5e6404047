package mqtt

import (
	"encoding/json"
	"time"

	"github.com/calder-systems/punchcore/internal/punchlog"
	"github.com/calder-systems/punchcore/internal/reader"
)

// publishClient is the slice of Client the publisher needs.
// Defined as an interface so tests can substitute a fake broker.
type publishClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// PublisherLogger is the logging interface used by the Publisher.
type PublisherLogger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopPublisherLogger discards all log output.
type noopPublisherLogger struct{}

func (noopPublisherLogger) Warn(string, ...any)  {}
func (noopPublisherLogger) Error(string, ...any) {}

// Publisher fans punchcore events out to MQTT.
//
// Punch events are published fire-and-forget on punchcore/punch/{card_id};
// reader status and location are published retained so late subscribers
// see current state. Publish failures are logged and swallowed: MQTT is
// an observer of the system, never a gate on punch processing.
type Publisher struct {
	client publishClient
	qos    byte
	logger PublisherLogger
}

// NewPublisher creates a publisher on top of a connected client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{
		client: client,
		qos:    byte(client.cfg.QoS),
		logger: noopPublisherLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (p *Publisher) SetLogger(logger PublisherLogger) {
	p.logger = logger
}

// punchPayload is the wire format for punch event messages.
type punchPayload struct {
	Seq       int64              `json:"seq"`
	ID        string             `json:"id"`
	CardID    string             `json:"card_id"`
	ReaderID  string             `json:"reader_id"`
	Direction string             `json:"direction"`
	Balance   int64              `json:"balance"`
	Location  *punchlog.Location `json:"location,omitempty"`
	CreatedAt string             `json:"created_at"`
}

// readerStatusPayload is the wire format for reader status messages.
type readerStatusPayload struct {
	ReaderID  string `json:"reader_id"`
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// readerLocationPayload is the wire format for reader location messages.
type readerLocationPayload struct {
	ReaderID  string  `json:"reader_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp string  `json:"timestamp"`
}

// PublishPunch publishes an accepted punch event.
// Implements the punch processor's Publisher hook.
func (p *Publisher) PublishPunch(event punchlog.PunchEvent, balance int64) {
	payload := punchPayload{
		Seq:       event.Seq,
		ID:        event.ID,
		CardID:    event.CardID,
		ReaderID:  event.ReaderID,
		Direction: string(event.Direction),
		Balance:   balance,
		Location:  event.Location,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshalling punch event", "event_id", event.ID, "error", err)
		return
	}

	topic := Topics{}.Punch(event.CardID)
	if err := p.client.Publish(topic, data, p.qos, false); err != nil {
		p.logger.Warn("publishing punch event", "topic", topic, "error", err)
	}
}

// PublishReaderStatus publishes a reader's online/offline state (retained).
func (p *Publisher) PublishReaderStatus(readerID string, online bool) {
	payload := readerStatusPayload{
		ReaderID:  readerID,
		Online:    online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshalling reader status", "reader_id", readerID, "error", err)
		return
	}

	topic := Topics{}.ReaderStatus(readerID)
	if err := p.client.PublishRetained(topic, data); err != nil {
		p.logger.Warn("publishing reader status", "topic", topic, "error", err)
	}
}

// PublishReaderLocation publishes a reader's reported position (retained).
func (p *Publisher) PublishReaderLocation(readerID string, loc reader.Location) {
	payload := readerLocationPayload{
		ReaderID:  readerID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshalling reader location", "reader_id", readerID, "error", err)
		return
	}

	topic := Topics{}.ReaderLocation(readerID)
	if err := p.client.PublishRetained(topic, data); err != nil {
		p.logger.Warn("publishing reader location", "topic", topic, "error", err)
	}
}
