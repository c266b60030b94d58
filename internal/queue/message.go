package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the payload version written by this build.
const MessageVersion = 1

// Message asks a worker to run the monitor once.
type Message struct {
	RequestID  string `json:"requestId"`
	Force      bool   `json:"force"`
	DryRun     bool   `json:"dryRun,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage returns a run request stamped with the current time and version.
func NewMessage(requestID string, force, dryRun bool) Message {
	return Message{
		RequestID:  requestID,
		Force:      force,
		DryRun:     dryRun,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
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
