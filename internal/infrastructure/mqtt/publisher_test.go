package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calder-systems/punchcore/internal/punchlog"
	"github.com/calder-systems/punchcore/internal/reader"
)

// fakeBroker records published messages in memory.
type fakeBroker struct {
	mu         sync.Mutex
	messages   []fakeMessage
	publishErr error
}

type fakeMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, fakeMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	return f.Publish(topic, payload, 1, true)
}

func (f *fakeBroker) last(t *testing.T) fakeMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages published")
	}
	return f.messages[len(f.messages)-1]
}

func newTestPublisher(broker *fakeBroker) *Publisher {
	return &Publisher{
		client: broker,
		qos:    1,
		logger: noopPublisherLogger{},
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "punch", got: topics.Punch("card-123"), want: "punchcore/punch/card-123"},
		{name: "reader status", got: topics.ReaderStatus("reader-001"), want: "punchcore/reader/reader-001/status"},
		{name: "reader location", got: topics.ReaderLocation("reader-001"), want: "punchcore/reader/reader-001/location"},
		{name: "system status", got: topics.SystemStatus(), want: "punchcore/system/status"},
		{name: "all punches", got: topics.AllPunches(), want: "punchcore/punch/+"},
		{name: "all reader statuses", got: topics.AllReaderStatuses(), want: "punchcore/reader/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublisher_PublishPunch(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker)

	event := punchlog.PunchEvent{
		Seq:       7,
		ID:        "pe-abc",
		CardID:    "card-1",
		ReaderID:  "reader-1",
		Location:  &punchlog.Location{Lat: 51.5, Lng: -0.12},
		Direction: punchlog.DirectionCheckIn,
		CreatedAt: time.Now().UTC(),
	}

	pub.PublishPunch(event, 90)

	msg := broker.last(t)
	if msg.topic != "punchcore/punch/card-1" {
		t.Errorf("topic = %q, want %q", msg.topic, "punchcore/punch/card-1")
	}
	if msg.retained {
		t.Error("punch events must not be retained")
	}

	var payload punchPayload
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if payload.Seq != 7 || payload.CardID != "card-1" || payload.Balance != 90 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Direction != "check_in" {
		t.Errorf("Direction = %q, want %q", payload.Direction, "check_in")
	}
	if payload.Location == nil || payload.Location.Lat != 51.5 {
		t.Errorf("Location = %+v", payload.Location)
	}
}

func TestPublisher_PublishReaderStatus(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker)

	pub.PublishReaderStatus("reader-1", true)

	msg := broker.last(t)
	if msg.topic != "punchcore/reader/reader-1/status" {
		t.Errorf("topic = %q", msg.topic)
	}
	if !msg.retained {
		t.Error("reader status must be retained")
	}

	var payload readerStatusPayload
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if !payload.Online || payload.ReaderID != "reader-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPublisher_PublishReaderLocation(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker)

	pub.PublishReaderLocation("reader-1", reader.Location{Lat: 48.85, Lng: 2.35})

	msg := broker.last(t)
	if msg.topic != "punchcore/reader/reader-1/location" {
		t.Errorf("topic = %q", msg.topic)
	}
	if !msg.retained {
		t.Error("reader location must be retained")
	}

	var payload readerLocationPayload
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if payload.Lat != 48.85 || payload.Lng != 2.35 {
		t.Errorf("payload = %+v", payload)
	}
}

// Publish failures must never propagate to callers.
func TestPublisher_SwallowsBrokerErrors(t *testing.T) {
	broker := &fakeBroker{publishErr: errors.New("broker down")}
	pub := newTestPublisher(broker)

	// None of these should panic or block.
	pub.PublishPunch(punchlog.PunchEvent{ID: "pe-x", CardID: "card-1"}, 0)
	pub.PublishReaderStatus("reader-1", false)
	pub.PublishReaderLocation("reader-1", reader.Location{})
}
