package fanout

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannel = "messenger:fanout"

type relayFrame struct {
	TargetUserID int             `json:"targetUserId,omitempty"`
	ExceptUserID int             `json:"exceptUserId,omitempty"`
	Broadcast    bool            `json:"broadcast,omitempty"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Redis spans replicas with a pub/sub relay. Every emit is published to
// a shared channel; each replica's subscription delivers to its own
// local registry, so a user connected to any replica still receives the
// event.
type Redis struct {
	local  *Local
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedis wraps a local registry with the relay.
func NewRedis(local *Local, client *redis.Client, logger *zap.SugaredLogger) *Redis {
	return &Redis{local: local, client: client, logger: logger}
}

// Run consumes the relay channel until ctx is cancelled.
func (f *Redis) Run(ctx context.Context) {
	sub := f.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				f.logger.Warnw("malformed relay frame", "error", err)
				continue
			}
			f.dispatch(frame)
		}
	}
}

func (f *Redis) dispatch(frame relayFrame) {
	encoded, err := Encode(frame.Event, frame.Data)
	if err != nil {
		f.logger.Errorw("failed to encode relayed event", "event", frame.Event, "error", err)
		return
	}
	if frame.Broadcast {
		f.local.broadcast(frame.ExceptUserID, frame.Event, encoded)
		return
	}
	f.local.deliver(frame.TargetUserID, frame.Event, encoded)
}

func (f *Redis) Join(userID int, sink Sink) int  { return f.local.Join(userID, sink) }
func (f *Redis) Leave(userID int, sink Sink) int { return f.local.Leave(userID, sink) }
func (f *Redis) Connections(userID int) int      { return f.local.Connections(userID) }

// EmitToUser publishes the event to the relay. On publish failure it
// falls back to local delivery so users on this replica are not cut off.
func (f *Redis) EmitToUser(userID int, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		f.logger.Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	frame := relayFrame{TargetUserID: userID, Event: event, Data: raw}
	if err := f.publish(frame); err != nil {
		f.logger.Errorw("relay publish failed, delivering locally", "event", event, "error", err)
		f.local.EmitToUser(userID, event, data)
	}
}

// BroadcastExcept publishes a broadcast frame to the relay.
func (f *Redis) BroadcastExcept(exceptUserID int, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		f.logger.Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	frame := relayFrame{Broadcast: true, ExceptUserID: exceptUserID, Event: event, Data: raw}
	if err := f.publish(frame); err != nil {
		f.logger.Errorw("relay publish failed, delivering locally", "event", event, "error", err)
		f.local.BroadcastExcept(exceptUserID, event, data)
	}
}

func (f *Redis) publish(frame relayFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return f.client.Publish(context.Background(), relayChannel, payload).Err()
}
