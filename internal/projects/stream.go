package projects

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "supamon-backend/internal/errors"
	"supamon-backend/pkg/utils"
)

const (
	streamWriteWait     = 10 * time.Second
	streamIdleTimeout   = 5 * time.Minute
	streamMaxMessageLen = 1 << 10
)

// streamRequest is a client message on the dashboard stream.
type streamRequest struct {
	Type          string `json:"type"`
	PersistStatus bool   `json:"persistStatus"`
}

// streamMessage is a server message on the dashboard stream.
type streamMessage struct {
	Type     string      `json:"type"`
	Snapshot interface{} `json:"snapshot,omitempty"`
	Error    string      `json:"error,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// HandleDashboardWebSocket sends a snapshot on connect and another one for
// every {"type":"refresh"} message. The server never refreshes on its own.
func (h *Handler) HandleDashboardWebSocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamMaxMessageLen)

	ctx := c.Request.Context()
	send := func(persist bool) bool {
		msg := streamMessage{Type: "snapshot"}
		snap, err := h.svc.Dashboard(ctx, id, persist)
		if err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				appErr = apperrors.Wrap(err, "INTERNAL_ERROR", "Internal server error")
			}
			msg = streamMessage{Type: "error", Error: appErr.Code, Message: appErr.Message}
		} else {
			msg.Snapshot = snap
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(msg) == nil
	}

	if !send(false) {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithField("project_id", id).Debugf("Dashboard stream closed: %v", err)
			}
			return
		}

		switch req.Type {
		case "refresh":
			if !send(req.PersistStatus) {
				return
			}
		case "ping":
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(streamMessage{Type: "pong"}); err != nil {
				return
			}
		default:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(streamMessage{Type: "error", Error: apperrors.CodeValidationFailed, Message: "unknown message type"}); err != nil {
				return
			}
		}
	}
}
