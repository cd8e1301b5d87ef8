package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy/internal/engine"
)

// RunSSE executes eng.Run on its own goroutine and streams every
// emitted event back over SSE via gin's Context.Stream. Client
// disconnect is bridged into engine cancellation by running the
// engine against c.Request.Context() directly: gin cancels that
// context when the underlying connection closes, so unlike
// react.py's is_disconnected() polling loop, no manual per-iteration
// check is needed here -- the engine's own ctx.Done() checkpoints
// (internal/engine.Engine.Run) pick it up.
func RunSSE(c *gin.Context, eng *engine.Engine, taskID string, agent engine.AgentConfig) {
	sink := NewChannelSink(32)
	ctx := c.Request.Context()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sink.Close()
		if err := eng.Run(ctx, taskID, agent, sink); err != nil {
			sink.Emit(engine.Event{Type: engine.EventError, TaskID: taskID, Data: map[string]string{"message": err.Error()}})
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sink.Events():
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Error("sse_marshal_error", "task_id", taskID, "error", err)
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			return true
		case <-ctx.Done():
			return false
		}
	})

	<-done
}
