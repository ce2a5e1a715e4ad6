// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (encoded frames)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte

	// Lossy messages are skipped for a client whose queue is full instead of
	// disconnecting it. Frames are lossy; a newer one follows shortly.
	Lossy bool
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewFrameMessage creates a lossy binary message for one encoded frame
func NewFrameMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data, Lossy: true}
}
