package fanout

import "encoding/json"

// Envelope is the wire frame for every outbound real-time event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Encode marshals an event frame once so every sink receives the same
// bytes.
func Encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Sink receives encoded frames for one connection. Send must not block;
// it reports false when the frame was dropped.
type Sink interface {
	Send(frame []byte) bool
}

// Fanout routes events to connected users. A user may hold several
// sinks at once, one per device or tab.
//
// Join and Leave return the user's connection count after the update,
// computed under the registry lock. Presence transitions must be driven
// off these return values; a separate Connections call can race with
// another connection's update.
type Fanout interface {
	Join(userID int, sink Sink) int
	Leave(userID int, sink Sink) int
	// Connections reports how many sinks the user currently holds.
	Connections(userID int) int
	EmitToUser(userID int, event string, data interface{})
	// BroadcastExcept delivers to every connected user but the given one.
	BroadcastExcept(exceptUserID int, event string, data interface{})
}
