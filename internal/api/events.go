package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// streamEvents holds a Server-Sent Events stream open for userId. Each pushed
// event is named after its type and carries the entity as JSON.
func (h *Handler) streamEvents(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(service.KindValidation),
			"details": "userId must be a positive integer",
		})
		return
	}

	session := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(session)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.logger.Info("Push session opened", zap.Int64("user_id", userID), zap.String("session_id", session.ID))
	c.SSEvent("ready", gin.H{"sessionId": session.ID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-session.Events():
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, event.Payload())
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})

	h.logger.Info("Push session closed", zap.Int64("user_id", userID), zap.String("session_id", session.ID))
}
