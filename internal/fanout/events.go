package fanout

// Outbound event names. Clients key their handlers off these strings,
// so they are part of the wire contract.
const (
	EventReceiveMessage = "receive-message"
	EventMessageSent    = "message-sent"
	EventMessageError   = "message-error"
	EventMessageRead    = "message-read"
	EventMessageDeleted = "message-deleted"
	EventUserTyping     = "user-typing"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"

	EventIncomingCall = "incoming-call"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventCallAccepted = "call-accepted"
	EventCallAnswered = "call-answered"
	EventCallRejected = "call-rejected"
	EventCallEnded    = "call-ended"
	EventICECandidate = "ice-candidate"
)
