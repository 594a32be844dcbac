package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/health"
)

const (
	defaultStreamPoll      = 3 * time.Second
	defaultStreamHeartbeat = 15 * time.Second
)

// handleStream pushes the flow health summary as server-sent events. The
// collection is polled and a health event is written only when the summary
// changes.
func handleStream(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		var last []byte
		push := func() {
			all, err := opts.Ledger.List(ctx)
			if err != nil {
				if ctx.Err() == nil {
					opts.Log.Warn("api: stream load failed", zap.Error(err))
				}
				return
			}
			summary := health.Score(all, opts.Now())
			data, err := json.Marshal(summary)
			if err != nil || bytes.Equal(data, last) {
				return
			}
			last = data
			fmt.Fprintf(c.Writer, "event: health\ndata: %s\n\n", data)
			c.Writer.Flush()
		}
		push()

		ticker := time.NewTicker(opts.StreamPoll)
		heartbeat := time.NewTicker(opts.StreamHeartbeat)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": opts.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				push()
			}
		}
	}
}

// writeSSE writes a single SSE event to w.
func writeSSE(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
