package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/codeready-toolchain/tarsy/internal/engine"
)

// writeTimeout bounds a single WebSocket send, the same convention as
// codeready-toolchain-tarsy/pkg/events/manager.go.
const writeTimeout = 5 * time.Second

// ServeWebSocket is the fallback transport for proxies that buffer or
// block Server-Sent Events (SPEC_FULL.md §11's supplemented fallback
// channel). It drains the same engine.Event stream as RunSSE but
// writes WebSocket text frames instead of "data:" lines.
func ServeWebSocket(w http.ResponseWriter, r *http.Request, eng *engine.Engine, taskID string, agent engine.AgentConfig) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	sink := NewChannelSink(32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sink.Close()
		if err := eng.Run(ctx, taskID, agent, sink); err != nil {
			sink.Emit(engine.Event{Type: engine.EventError, TaskID: taskID, Data: map[string]string{"message": err.Error()}})
		}
	}()

	for {
		select {
		case event, ok := <-sink.Events():
			if !ok {
				<-done
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			<-done
			return ctx.Err()
		}
	}
}
