package fanout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	frames   [][]byte
	capacity int
}

func newCaptureSink(capacity int) *captureSink {
	return &captureSink{capacity: capacity}
}

func (s *captureSink) Send(frame []byte) bool {
	if len(s.frames) >= s.capacity {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *captureSink) events(t *testing.T) []string {
	t.Helper()
	var names []string
	for _, frame := range s.frames {
		var env struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal(frame, &env))
		names = append(names, env.Event)
	}
	return names
}

func testLocal() *Local {
	return NewLocal(zap.NewNop().Sugar())
}

func TestJoinLeaveCounts(t *testing.T) {
	f := testLocal()
	first := newCaptureSink(8)
	second := newCaptureSink(8)

	assert.Equal(t, 0, f.Connections(1))

	assert.Equal(t, 1, f.Join(1, first))
	assert.Equal(t, 2, f.Join(1, second))
	assert.Equal(t, 2, f.Connections(1))

	assert.Equal(t, 1, f.Leave(1, first))
	assert.Equal(t, 1, f.Connections(1))

	assert.Equal(t, 0, f.Leave(1, second))
	assert.Equal(t, 0, f.Connections(1))

	// Leaving again must not panic or go negative.
	assert.Equal(t, 0, f.Leave(1, second))
	assert.Equal(t, 0, f.Connections(1))
}

func TestEmitToUserReachesAllConnections(t *testing.T) {
	f := testLocal()
	first := newCaptureSink(8)
	second := newCaptureSink(8)
	other := newCaptureSink(8)

	f.Join(1, first)
	f.Join(1, second)
	f.Join(2, other)

	f.EmitToUser(1, EventMessageRead, map[string]int{"messageId": 7})

	assert.Equal(t, []string{EventMessageRead}, first.events(t))
	assert.Equal(t, []string{EventMessageRead}, second.events(t))
	assert.Empty(t, other.frames)
}

func TestEmitToAbsentUserIsNoop(t *testing.T) {
	f := testLocal()
	f.EmitToUser(99, EventReceiveMessage, nil)
}

func TestBroadcastExceptSkipsOrigin(t *testing.T) {
	f := testLocal()
	origin := newCaptureSink(8)
	peer := newCaptureSink(8)
	another := newCaptureSink(8)

	f.Join(1, origin)
	f.Join(2, peer)
	f.Join(3, another)

	f.BroadcastExcept(1, EventUserOnline, map[string]int{"userId": 1})

	assert.Empty(t, origin.frames)
	assert.Equal(t, []string{EventUserOnline}, peer.events(t))
	assert.Equal(t, []string{EventUserOnline}, another.events(t))
}

func TestSlowSinkFramesAreDropped(t *testing.T) {
	f := testLocal()
	slow := newCaptureSink(1)
	f.Join(1, slow)

	f.EmitToUser(1, EventReceiveMessage, "first")
	f.EmitToUser(1, EventReceiveMessage, "second")

	assert.Len(t, slow.frames, 1)
}

func TestEncodeFrameShape(t *testing.T) {
	frame, err := Encode(EventUserTyping, map[string]bool{"isTyping": true})
	require.NoError(t, err)

	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, EventUserTyping, env.Event)
	assert.JSONEq(t, `{"isTyping":true}`, string(env.Data))
}
