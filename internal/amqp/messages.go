package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"glowbudget/internal/ledger"
)

// ChangeMessage is the wire form of a ledger.ChangeEvent. It only says what
// changed; consumers read the data themselves.
type ChangeMessage struct {
	ID          string           `json:"id"`
	Kind        ledger.EventKind `json:"kind"`
	RecordID    string           `json:"recordId,omitempty"`
	RecordCount int              `json:"recordCount"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewChangeMessage(ev ledger.ChangeEvent) *ChangeMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{
		ID:          uuid.NewString(),
		Kind:        ev.Kind,
		RecordID:    ev.RecordID,
		RecordCount: ev.RecordCount,
		Timestamp:   ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
