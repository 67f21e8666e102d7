package queue

import (
	"encoding/json"
	"time"
)

const MessageVersion = 1

const TypeStatusChanged = "file.status_changed"

// Message is the payload sent to downstream queue consumers when a file
// changes stage.
type Message struct {
	Type          string    `json:"type"`
	FileID        int64     `json:"fileId"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	UserID        int64     `json:"userId"`
	OccurredAt    time.Time `json:"occurredAt"`
	RequestID     string    `json:"requestId,omitempty"`
	Version       int       `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
