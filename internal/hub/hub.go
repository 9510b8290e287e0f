package hub

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
	"messenger-service/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PresencePayload is the user-online / user-offline event payload.
type PresencePayload struct {
	UserID   int       `json:"userId"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}

// Hub authenticates websocket connections, runs their pumps and keeps
// presence in step with the fanout registry.
type Hub struct {
	fan      fanout.Fanout
	svc      service.Messaging
	users    repositories.UserRepository
	verifier *auth.Verifier
	audit    *telemetry.AuditEmitter
	logger   *zap.SugaredLogger
}

// New constructs a Hub. audit may be nil.
func New(
	fan fanout.Fanout,
	svc service.Messaging,
	users repositories.UserRepository,
	verifier *auth.Verifier,
	audit *telemetry.AuditEmitter,
	logger *zap.SugaredLogger,
) *Hub {
	return &Hub{
		fan:      fan,
		svc:      svc,
		users:    users,
		verifier: verifier,
		audit:    audit,
		logger:   logger,
	}
}

// HandleWS authenticates and upgrades one connection. The token comes
// from the `token` query parameter or the Authorization header; any
// failure rejects the handshake before the upgrade.
func (h *Hub) HandleWS(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/hub").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	conn := newConn(h, ws, user, info)
	h.register(conn)

	go conn.writePump()
	go conn.readPump()
}

// register joins the connection to the fanout registry. The count
// returned by Join decides the presence transition, so two connections
// joining at once cannot both miss (or both claim) the first slot.
func (h *Hub) register(c *Conn) {
	count := h.fan.Join(c.user.ID, c)
	h.logger.Infow("websocket connected",
		"user_id", c.user.ID, "conn_id", c.info.ConnID, "ip", c.info.IP)
	observability.IncInboundEvent("ws_connect")
	h.audit.Emit(context.Background(), "info", "websocket connected", c.info.RequestID, &c.user.ID)

	if count == 1 {
		h.setPresence(c.user, true)
	}
}

// disconnect tears one connection down. Only the user's last connection
// flips presence to offline.
func (h *Hub) disconnect(c *Conn) {
	remaining := h.fan.Leave(c.user.ID, c)
	if c.ws != nil {
		c.ws.Close()
	}

	h.logger.Infow("websocket disconnected",
		"user_id", c.user.ID, "conn_id", c.info.ConnID,
		"duration_ms", time.Since(c.info.ConnectedAt).Milliseconds())
	observability.IncInboundEvent("ws_disconnect")
	h.audit.Emit(context.Background(), "info", "websocket disconnected", c.info.RequestID, &c.user.ID)

	if remaining == 0 {
		h.setPresence(c.user, false)
	}
}

func (h *Hub) setPresence(user models.User, online bool) {
	now := time.Now().UTC()
	if err := h.users.SetPresence(context.Background(), user.ID, online, now); err != nil {
		h.logger.Errorw("failed to update presence", "user_id", user.ID, "error", err)
	}

	event := fanout.EventUserOffline
	if online {
		event = fanout.EventUserOnline
	}
	h.fan.BroadcastExcept(user.ID, event, PresencePayload{
		UserID:   user.ID,
		Username: user.Username,
		LastSeen: now,
	})
}
