package hub

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection for audit and logging.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
