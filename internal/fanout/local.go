package fanout

import (
	"sync"

	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// Local is an in-process Fanout keyed by user id. It is the sole
// delivery path in single-replica deployments and the terminal hop of
// the Redis bridge otherwise.
type Local struct {
	mu     sync.RWMutex
	sinks  map[int]map[Sink]struct{}
	logger *zap.SugaredLogger
}

// NewLocal constructs an empty registry.
func NewLocal(logger *zap.SugaredLogger) *Local {
	return &Local{
		sinks:  make(map[int]map[Sink]struct{}),
		logger: logger,
	}
}

// Join registers a sink under the user id and returns the user's
// connection count after the registration.
func (f *Local) Join(userID int, sink Sink) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sinks[userID]
	if !ok {
		set = make(map[Sink]struct{})
		f.sinks[userID] = set
	}
	set[sink] = struct{}{}
	observability.SetActiveConnections(f.totalLocked())
	return len(set)
}

// Leave removes a sink and returns the user's remaining connection
// count. Removing an unknown sink is a no-op.
func (f *Local) Leave(userID int, sink Sink) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sinks[userID]
	if !ok {
		return 0
	}
	delete(set, sink)
	remaining := len(set)
	if remaining == 0 {
		delete(f.sinks, userID)
	}
	observability.SetActiveConnections(f.totalLocked())
	return remaining
}

// Connections reports the user's current sink count.
func (f *Local) Connections(userID int) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks[userID])
}

func (f *Local) totalLocked() int {
	total := 0
	for _, set := range f.sinks {
		total += len(set)
	}
	return total
}

// EmitToUser delivers an event to every sink the user holds. An absent
// or unreachable user is not an error.
func (f *Local) EmitToUser(userID int, event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		f.logger.Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	f.deliver(userID, event, frame)
}

func (f *Local) deliver(userID int, event string, frame []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sink := range f.sinks[userID] {
		if !sink.Send(frame) {
			f.logger.Warnw("dropped event for slow connection", "user_id", userID, "event", event)
			observability.IncEventDropped(event)
			continue
		}
		observability.IncEventEmitted(event)
	}
}

// BroadcastExcept delivers an event to everyone but exceptUserID.
func (f *Local) BroadcastExcept(exceptUserID int, event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		f.logger.Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	f.broadcast(exceptUserID, event, frame)
}

func (f *Local) broadcast(exceptUserID int, event string, frame []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for userID, set := range f.sinks {
		if userID == exceptUserID {
			continue
		}
		for sink := range set {
			if !sink.Send(frame) {
				f.logger.Warnw("dropped event for slow connection", "user_id", userID, "event", event)
				observability.IncEventDropped(event)
				continue
			}
			observability.IncEventEmitted(event)
		}
	}
}
