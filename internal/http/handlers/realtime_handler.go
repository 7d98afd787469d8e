// README: SSE endpoint streaming realtime events to a session until the client disconnects.
package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/middleware"
	"leafline/internal/realtime"
)

type RealtimeHandler struct {
	registry *realtime.Registry
}

func NewRealtimeHandler(registry *realtime.Registry) *RealtimeHandler {
	return &RealtimeHandler{registry: registry}
}

// Stream holds the connection open and forwards every event on the
// caller's topics as a server-sent event. Closing the connection tears
// down the session; for drivers that triggers the forced-offline hook.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	actor := middleware.CallerActor(c)
	session := h.registry.Connect(actor.ID, actor.Role)
	defer h.registry.Disconnect(session)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-session.Events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		}
	})
}
