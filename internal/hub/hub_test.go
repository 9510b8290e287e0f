package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/fanout"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
)

func testHub(t *testing.T, svc service.Messaging, users repositories.UserRepository) (*Hub, *fanout.Local) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	fan := fanout.NewLocal(logger)
	h := New(fan, svc, users, auth.NewVerifier("test-secret"), nil, logger)
	return h, fan
}

func signToken(t *testing.T, secret string, userID int) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{UserID: userID}).
		SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func wsRouter(h *Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", h.HandleWS)
	return router
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	h, _ := testHub(t, &mocks.MessagingMock{}, &mocks.UserRepositoryMock{})
	router := wsRouter(h)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	h, _ := testHub(t, &mocks.MessagingMock{}, &mocks.UserRepositoryMock{})
	router := wsRouter(h)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+signToken(t, "wrong-secret", 1), nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandshakeRejectsUnknownUser(t *testing.T) {
	users := &mocks.UserRepositoryMock{}
	users.On("GetUser", mock.Anything, 1).Return(models.User{}, repositories.ErrUserNotFound)

	h, _ := testHub(t, &mocks.MessagingMock{}, users)
	router := wsRouter(h)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+signToken(t, "test-secret", 1), nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandshakeAcceptsAuthorizationHeader(t *testing.T) {
	users := &mocks.UserRepositoryMock{}
	users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)

	h, _ := testHub(t, &mocks.MessagingMock{}, users)
	router := wsRouter(h)

	// A valid token gets past auth; the handshake then fails at the
	// upgrade because the request lacks websocket headers.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", 1))
	router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
	users.AssertCalled(t, "GetUser", mock.Anything, 1)
}

func TestPresenceTransitionsOnceAcrossConnections(t *testing.T) {
	users := &mocks.UserRepositoryMock{}
	users.On("SetPresence", mock.Anything, 1, true, mock.Anything).Return(nil).Once()
	users.On("SetPresence", mock.Anything, 1, false, mock.Anything).Return(nil).Once()

	h, fan := testHub(t, &mocks.MessagingMock{}, users)
	peer := &sinkRecorder{}
	fan.Join(2, peer)

	user := models.User{ID: 1, Username: "alice"}
	first := newConn(h, nil, user, ConnInfo{ConnID: "a", UserID: 1})
	second := newConn(h, nil, user, ConnInfo{ConnID: "b", UserID: 1})

	// Only the first register announces the user online and only the
	// last disconnect announces them offline.
	h.register(first)
	h.register(second)
	h.disconnect(first)
	h.disconnect(second)

	var online, offline int
	for _, f := range peer.drain(t) {
		switch f.Event {
		case fanout.EventUserOnline:
			online++
		case fanout.EventUserOffline:
			offline++
		}
	}
	assert.Equal(t, 1, online)
	assert.Equal(t, 1, offline)
	users.AssertExpectations(t)
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func testConn(t *testing.T, svc service.Messaging) (*Conn, *fanout.Local) {
	t.Helper()
	h, fan := testHub(t, svc, &mocks.UserRepositoryMock{})
	user := models.User{ID: 1, Username: "alice"}
	return newConn(h, nil, user, ConnInfo{ConnID: "test", UserID: 1}), fan
}

func (c *Conn) drain(t *testing.T) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.send:
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

type sinkRecorder struct {
	frames [][]byte
}

func (s *sinkRecorder) Send(b []byte) bool {
	s.frames = append(s.frames, b)
	return true
}

func (s *sinkRecorder) drain(t *testing.T) []frame {
	t.Helper()
	var out []frame
	for _, raw := range s.frames {
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func TestDispatchSendMessageSuccess(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, _ := testConn(t, svc)

	view := models.MessageView{Message: models.Message{ID: 5, Content: "hi"}}
	svc.On("SendMessage", mock.Anything, mock.MatchedBy(func(p service.SendMessageParams) bool {
		return p.SenderID == 1 && p.ReceiverID == 2 && p.Content == "hi"
	})).Return(view, nil)

	conn.dispatch([]byte(`{"event":"send-message","data":{"receiverId":2,"content":"hi"}}`))

	frames := conn.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventMessageSent, frames[0].Event)
	svc.AssertExpectations(t)
}

func TestDispatchSendMessageFailure(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, _ := testConn(t, svc)

	svc.On("SendMessage", mock.Anything, mock.Anything).
		Return(models.MessageView{}, service.ErrSelfSend)

	conn.dispatch([]byte(`{"event":"send-message","data":{"receiverId":1,"content":"hi"}}`))

	frames := conn.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventMessageError, frames[0].Event)
}

func TestDispatchMalformedFrame(t *testing.T) {
	conn, _ := testConn(t, &mocks.MessagingMock{})

	conn.dispatch([]byte(`{not json`))

	frames := conn.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventMessageError, frames[0].Event)
}

func TestDispatchUnknownEventIsIgnored(t *testing.T) {
	conn, _ := testConn(t, &mocks.MessagingMock{})

	conn.dispatch([]byte(`{"event":"teleport","data":{}}`))

	assert.Empty(t, conn.drain(t))
}

func TestDispatchTypingRelaysToTarget(t *testing.T) {
	conn, fan := testConn(t, &mocks.MessagingMock{})
	target := &sinkRecorder{}
	fan.Join(2, target)

	conn.dispatch([]byte(`{"event":"typing","data":{"receiverId":2,"isTyping":true}}`))

	frames := target.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventUserTyping, frames[0].Event)

	var notice TypingNotice
	require.NoError(t, json.Unmarshal(frames[0].Data, &notice))
	assert.Equal(t, 1, notice.UserID)
	assert.Equal(t, "alice", notice.Username)
	assert.True(t, notice.IsTyping)
}

func TestDispatchMarkReadSilentOnAuthorizationFailure(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, _ := testConn(t, svc)

	svc.On("MarkRead", mock.Anything, 1, 5).
		Return(models.Message{}, service.ErrNotAuthorized)

	conn.dispatch([]byte(`{"event":"mark-read","data":{"messageId":5}}`))

	assert.Empty(t, conn.drain(t))
}

func TestDispatchCallRelays(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, fan := testConn(t, svc)
	target := &sinkRecorder{}
	fan.Join(2, target)

	conn.dispatch([]byte(`{"event":"call-user","data":{"to":2,"sdp":"offer-blob"}}`))
	conn.dispatch([]byte(`{"event":"ice-candidate","data":{"to":2,"candidate":"c1"}}`))
	conn.dispatch([]byte(`{"event":"accept-call","data":{"to":2}}`))

	frames := target.drain(t)
	require.Len(t, frames, 3)
	assert.Equal(t, fanout.EventOffer, frames[0].Event)
	assert.JSONEq(t, `{"to":2,"sdp":"offer-blob"}`, string(frames[0].Data))
	assert.Equal(t, fanout.EventICECandidate, frames[1].Event)
	assert.Equal(t, fanout.EventCallAnswered, frames[2].Event)
}

func TestDispatchAnswerCallEmitsBothEvents(t *testing.T) {
	conn, fan := testConn(t, &mocks.MessagingMock{})
	target := &sinkRecorder{}
	fan.Join(2, target)

	conn.dispatch([]byte(`{"event":"answer-call","data":{"to":2,"sdp":"answer-blob"}}`))

	frames := target.drain(t)
	require.Len(t, frames, 2)
	assert.Equal(t, fanout.EventAnswer, frames[0].Event)
	assert.Equal(t, fanout.EventCallAccepted, frames[1].Event)
}

func TestDispatchInitiateCallRecordsHistoryAndRings(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, fan := testConn(t, svc)
	target := &sinkRecorder{}
	fan.Join(2, target)

	svc.On("RecordCallHistory", mock.Anything, 1, 2,
		models.MessageTypeCallVideoEnded, "Video call started").Return(nil)

	conn.dispatch([]byte(`{"event":"initiate-call","data":{"to":2,"callType":"video"}}`))

	frames := target.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventIncomingCall, frames[0].Event)

	var incoming IncomingCall
	require.NoError(t, json.Unmarshal(frames[0].Data, &incoming))
	assert.Equal(t, 1, incoming.CallerID)
	assert.Equal(t, "video", incoming.CallType)
	assert.Equal(t, "alice", incoming.Caller.Username)

	svc.AssertExpectations(t)
}

func TestDispatchRejectCallRecordsMissedForCaller(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, fan := testConn(t, svc)
	caller := &sinkRecorder{}
	fan.Join(2, caller)

	// User 1 rejects a call from user 2: the missed call is written
	// from the caller's side, 2 -> 1.
	svc.On("RecordCallHistory", mock.Anything, 2, 1,
		models.MessageTypeCallMissed, "Missed voice call").Return(nil)

	conn.dispatch([]byte(`{"event":"reject-call","data":{"to":2,"callType":"audio"}}`))

	frames := caller.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventCallRejected, frames[0].Event)
	svc.AssertExpectations(t)
}

func TestDispatchEndCallRecordsDuration(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, fan := testConn(t, svc)
	peer := &sinkRecorder{}
	fan.Join(2, peer)

	svc.On("RecordCallHistory", mock.Anything, 1, 2,
		models.MessageTypeCallVideoEnded, "Video call ended (3:42)").Return(nil)

	conn.dispatch([]byte(`{"event":"end-call","data":{"to":2,"callType":"video","duration":222}}`))

	frames := peer.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventCallEnded, frames[0].Event)
	svc.AssertExpectations(t)
}

func TestDispatchCallHistoryFailureStillRelays(t *testing.T) {
	svc := &mocks.MessagingMock{}
	conn, fan := testConn(t, svc)
	target := &sinkRecorder{}
	fan.Join(2, target)

	svc.On("RecordCallHistory", mock.Anything, 1, 2, mock.Anything, mock.Anything).
		Return(service.ErrNotFound)

	conn.dispatch([]byte(`{"event":"initiate-call","data":{"to":2,"callType":"video"}}`))

	frames := target.drain(t)
	require.Len(t, frames, 1)
	assert.Equal(t, fanout.EventIncomingCall, frames[0].Event)
}
