package hub

import (
	"context"
	"encoding/json"
	"time"

	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/service"
)

type callPayload struct {
	To       int     `json:"to"`
	CallType string  `json:"callType"`
	Duration float64 `json:"duration"`
}

// IncomingCall announces a call to the callee.
type IncomingCall struct {
	CallerID int               `json:"callerId"`
	Caller   models.PublicUser `json:"caller"`
	CallType string            `json:"callType"`
}

// handleCall relays signaling verbatim between the two parties. The
// server keeps no call state and never validates transitions; stale or
// out-of-order frames are the clients' problem. Call history is written
// as ordinary messages, and a history failure never blocks the relay.
func (c *Conn) handleCall(event string, data json.RawMessage) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == 0 {
		return
	}
	ctx := context.Background()

	switch event {
	case "initiate-call":
		c.recordHistory(ctx, c.user.ID, p.To,
			service.CallHistoryType(p.CallType), service.CallStartedContent(p.CallType))
		c.hub.fan.EmitToUser(p.To, fanout.EventIncomingCall, IncomingCall{
			CallerID: c.user.ID,
			Caller:   c.user.Public(),
			CallType: p.CallType,
		})
	case "call-user":
		c.relay(p.To, fanout.EventOffer, data)
	case "answer-call":
		c.relay(p.To, fanout.EventAnswer, data)
		c.relay(p.To, fanout.EventCallAccepted, data)
	case "accept-call":
		c.relay(p.To, fanout.EventCallAnswered, data)
	case "reject-call":
		// The rejecting side is the callee; the missed call belongs to
		// the caller's side of the conversation.
		c.recordHistory(ctx, p.To, c.user.ID,
			models.MessageTypeCallMissed, service.MissedCallContent(p.CallType))
		c.relay(p.To, fanout.EventCallRejected, data)
	case "end-call":
		duration := time.Duration(p.Duration * float64(time.Second))
		c.recordHistory(ctx, c.user.ID, p.To,
			service.CallHistoryType(p.CallType), service.CallEndedContent(p.CallType, duration))
		c.relay(p.To, fanout.EventCallEnded, data)
	case "ice-candidate":
		c.relay(p.To, fanout.EventICECandidate, data)
	}
}

func (c *Conn) recordHistory(ctx context.Context, callerID, calleeID int, messageType models.MessageType, content string) {
	if err := c.hub.svc.RecordCallHistory(ctx, callerID, calleeID, messageType, content); err != nil {
		c.hub.logger.Warnw("failed to record call history",
			"caller_id", callerID, "callee_id", calleeID, "type", messageType, "error", err)
	}
}

// relay forwards the payload unchanged under the outbound event name.
func (c *Conn) relay(to int, event string, data json.RawMessage) {
	c.hub.fan.EmitToUser(to, event, data)
}
