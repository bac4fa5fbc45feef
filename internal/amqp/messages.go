package amqp

import (
	"encoding/json"
	"time"
)

const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeRestored = "restored"
)

// LedgerChangeMessage announces that the persisted ledger changed. It carries
// only identifiers; consumers reload what they need from storage.
type LedgerChangeMessage struct {
	Change         string    `json:"change"`
	TransactionIDs []string  `json:"transactionIds,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewLedgerChangeMessage(change string, ids ...string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Change:         change,
		TransactionIDs: ids,
		Timestamp:      time.Now(),
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
