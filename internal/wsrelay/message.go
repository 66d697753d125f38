package wsrelay

import "encoding/json"

// Message is the JSON envelope exchanged with websocket clients.
type Message struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	// MessageTypeBatch carries a batch request from the client.
	MessageTypeBatch = "batch"
	// MessageTypeCancel stops the running batch before its next repository.
	MessageTypeCancel = "cancel"
	// MessageTypeRow carries one result-log row.
	MessageTypeRow = "row"
	// MessageTypeSummary closes a batch.
	MessageTypeSummary = "summary"
	// MessageTypeError carries an error response.
	MessageTypeError = "error"
	// MessageTypePing represents ping messages from clients.
	MessageTypePing = "ping"
	// MessageTypePong represents pong responses back to clients.
	MessageTypePong = "pong"
)

// inboundMessage keeps the payload raw until the batch runner decodes it.
type inboundMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
