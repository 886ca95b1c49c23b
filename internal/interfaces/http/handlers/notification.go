// internal/interfaces/http/handlers/notification.go
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

const streamKeepAlive = 25 * time.Second

// NotificationHandler delivers toasts and redirects to the page rendering
// the session, either on request or as a server-sent event stream.
type NotificationHandler struct {
	feed *notify.Feed
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(feed *notify.Feed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// GetNotifications handles GET /notifications. Returned notifications are
// removed from the queue.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Notifications retrieved successfully",
		"data":    h.feed.Drain(middleware.GetSessionID(c)),
	})
}

// Stream handles GET /notifications/stream. Each wakeup from the feed drains
// the queue, so a message is delivered once whichever endpoint reads it.
func (h *NotificationHandler) Stream(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	wake, cancel := h.feed.Subscribe(sessionID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	// anything queued before the subscription goes out first
	flush := func() {
		for _, n := range h.feed.Drain(sessionID) {
			c.SSEvent("notification", n)
		}
		c.Writer.Flush()
	}
	flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case _, ok := <-wake:
			if !ok {
				return false
			}
			flush()
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			c.Writer.Flush()
			return true
		}
	})
}
