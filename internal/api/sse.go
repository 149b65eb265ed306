package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeatInterval keeps idle connections open through proxies.
var heartbeatInterval = 15 * time.Second

// handleEvents streams recalculation outcomes as server-sent events.
// ?project limits the stream to one project.
func (h *handler) handleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Without a lane there is nothing to stream.
		if h.lane == nil {
			writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
			c.Writer.Flush()
			return
		}
		events, cancel := h.lane.Subscribe()
		defer cancel()
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()
		filter := c.Query("project")

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case out, ok := <-events:
				if !ok {
					return
				}
				if filter != "" && out.ProjectID != filter {
					continue
				}
				writeSSE(c.Writer, "recalculated", out)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
