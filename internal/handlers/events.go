package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mailsentry/internal/middleware"
	"mailsentry/internal/services"
)

// EventsHandler streams per-user detection events over SSE.
type EventsHandler struct {
	eventService     *services.PhishingEventService
	keepaliveSeconds int
}

func NewEventsHandler(eventService *services.PhishingEventService, keepaliveSeconds int) *EventsHandler {
	if keepaliveSeconds <= 0 {
		keepaliveSeconds = 15
	}
	return &EventsHandler{
		eventService:     eventService,
		keepaliveSeconds: keepaliveSeconds,
	}
}

func (h *EventsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/phishing", h.Stream)
}

// Stream registers a subscriber queue for the user and forwards frames until
// the client disconnects. A comment keep-alive goes out whenever no event
// arrives within the keep-alive window, so intermediaries don't drop the
// connection.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.eventService.Register(userID)
	defer h.eventService.Unregister(userID, sub)

	// Synthetic open event so the client knows the stream is live.
	fmt.Fprint(c.Writer, h.eventService.ConnectedFrame())
	flusher.Flush()

	keepalive := time.Duration(h.keepaliveSeconds) * time.Second
	timer := time.NewTimer(keepalive)
	defer timer.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case frame := <-sub.C:
			if _, err := fmt.Fprint(c.Writer, frame); err != nil {
				return
			}
			flusher.Flush()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(keepalive)
		case <-timer.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			timer.Reset(keepalive)
		}
	}
}
