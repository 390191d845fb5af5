package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeDatasetUpdate MessageType = "dataset_update"
	TypeDatasetDelete MessageType = "dataset_delete"
	TypePing          MessageType = "ping"
	TypePong          MessageType = "pong"
	TypeError         MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DatasetUpdatePayload tells a device that one of its datasets moved on the
// server. It carries no data; receivers pull through the REST API.
type DatasetUpdatePayload struct {
	DataType     string    `json:"data_type"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"last_modified"`
	DeviceID     string    `json:"device_id,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
