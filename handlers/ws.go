package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
	"github.com/carlbunn/musicbox/websocket"
)

// WSHandler upgrades HTTP connections into hub subscribers.
type WSHandler struct {
	hub websocket.Hub
}

func NewWSHandler(hub websocket.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Subscribe upgrades the connection and pins it to a topic. An
// unknown or missing topic subscribes to everything.
func (h *WSHandler) Subscribe(c *gin.Context) {
	topic := c.Query("topic")
	switch topic {
	case types.TopicStatus, types.TopicDownloads:
	default:
		topic = websocket.TopicAll
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, topic)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
