package mqtt

import "fmt"

// Topic prefixes for the punchcore MQTT namespace.
//
// All punchcore topics live under a single root:
//
//	punchcore/punch/{card_id}        accepted punch events
//	punchcore/reader/{id}/status     reader online/offline state (retained)
//	punchcore/reader/{id}/location   reader position updates (retained)
//	punchcore/system/status          service online/offline state (retained, LWT)
const (
	// TopicPrefix is the base for all punchcore topics.
	TopicPrefix = "punchcore"

	// TopicPrefixSystem is the base for service-level topics.
	TopicPrefixSystem = "punchcore/system"
)

// Topics provides builders for punchcore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// Punch returns the topic for accepted punch events of a card.
//
// Example: punchcore/punch/card-123
func (Topics) Punch(cardID string) string {
	return fmt.Sprintf("%s/punch/%s", TopicPrefix, cardID)
}

// ReaderStatus returns the topic for a reader's online/offline state.
//
// Example: punchcore/reader/reader-001/status
func (Topics) ReaderStatus(readerID string) string {
	return fmt.Sprintf("%s/reader/%s/status", TopicPrefix, readerID)
}

// ReaderLocation returns the topic for a reader's position updates.
//
// Example: punchcore/reader/reader-001/location
func (Topics) ReaderLocation(readerID string) string {
	return fmt.Sprintf("%s/reader/%s/location", TopicPrefix, readerID)
}

// SystemStatus returns the service status topic (also used for the LWT).
//
// Example: punchcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllPunches returns a pattern matching all punch events.
//
// Pattern: punchcore/punch/+
func (Topics) AllPunches() string {
	return fmt.Sprintf("%s/punch/+", TopicPrefix)
}

// AllReaderStatuses returns a pattern matching all reader status topics.
//
// Pattern: punchcore/reader/+/status
func (Topics) AllReaderStatuses() string {
	return fmt.Sprintf("%s/reader/+/status", TopicPrefix)
}
