package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SnapshotSyncMessage announces a queued table snapshot. The worker loads
// the rows from the outbox by id.
type SnapshotSyncMessage struct {
	SnapshotID string    `json:"snapshot_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSnapshotSyncMessage(snapshotID string) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		SnapshotID: snapshotID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON parses a message body. A body without a
// snapshot id is rejected.
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SnapshotID == "" {
		return nil, errors.New("missing snapshot_id")
	}
	return &msg, nil
}
