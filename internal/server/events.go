package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

const keepAliveInterval = 30 * time.Second

// streamEvents relays the github-events channel as server-sent events.
// Each connection holds exactly one subscription, released when the
// client goes away or the bus closes the subscription.
func (s *Server) streamEvents(c *gin.Context) {
	if s.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event stream not available"})
		return
	}

	ctx := c.Request.Context()
	sub, err := s.subscriber.Subscribe(ctx, models.EventsChannel)
	if err != nil {
		s.logger.Error("event stream subscribe failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event stream not available"})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	// Flush headers so clients see the stream open before the first event.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.Messages():
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, msg.Data)
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}
