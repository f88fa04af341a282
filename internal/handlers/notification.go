package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stackit/internal/middleware"
	"stackit/internal/services"
	"stackit/internal/utils"
	"stackit/internal/ws"
)

// Close code sent when the websocket credential does not resolve to a
// user.
const closeInvalidToken = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is served to browser clients on other origins; access
	// control happens via the token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type NotificationHandler struct {
	db            *gorm.DB
	notifications *services.NotificationService
	hub           *ws.Hub
	jwtSecret     string
	log           *zap.Logger
}

func NewNotificationHandler(db *gorm.DB, notifications *services.NotificationService, hub *ws.Hub, jwtSecret string, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		db:            db,
		notifications: notifications,
		hub:           hub,
		jwtSecret:     jwtSecret,
		log:           log,
	}
}

// List returns the caller's notifications newest-first, paginated via
// skip/limit query parameters.
func (h *NotificationHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	skip := utils.StringToInt(c.DefaultQuery("skip", "0"))
	limit := utils.StringToInt(c.DefaultQuery("limit", "50"))

	notifications, err := h.notifications.ListForUser(c.Request.Context(), user.ID, skip, limit)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if err := h.notifications.MarkAllRead(c.Request.Context(), user.ID); err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Websocket upgrades the connection and registers it as the caller's
// live notification channel for as long as it stays open. The
// credential travels as a query parameter because browsers cannot set
// headers on websocket handshakes.
func (h *NotificationHandler) Websocket(c *gin.Context) {
	user, authErr := middleware.UserFromToken(h.db, h.jwtSecret, c.Query("token"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if authErr != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeInvalidToken, "invalid token"), deadline)
		_ = conn.Close()
		return
	}

	id := h.hub.Register(user.ID, conn)
	defer func() {
		h.hub.Unregister(user.ID, id)
		_ = conn.Close()
	}()

	// Inbound traffic is ignored; reading just detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
