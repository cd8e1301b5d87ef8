package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/llm"
	"github.com/codeready-toolchain/tarsy/internal/scenechat"
)

// previewAgentDetail is the stateless agent definition a preview
// request carries inline (agent_detail in
// original_source/server/app/services/chat_service.py's
// stream_preview_chat), instead of loading it from the database.
type previewAgentDetail struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	LLMID       int64             `json:"llm_id" binding:"required"`
	Scenes      []scenechat.Scene `json:"scenes"`
}

type previewChatRequest struct {
	AgentDetail         previewAgentDetail `json:"agent_detail" binding:"required"`
	Message             string             `json:"message" binding:"required"`
	CurrentSceneName    string             `json:"current_scene_name"`
	CurrentSubsceneName string             `json:"current_subscene_name"`
}

// previewStreamEvent is the wire shape aligned with
// AgentResponseChunk, per chat.py's StreamEvent.
type previewStreamEvent struct {
	Type              string            `json:"type"`
	Delta             string            `json:"delta,omitempty"`
	UpdatedScenes     []scenechat.Scene `json:"updated_scenes,omitempty"`
	MatchedConnection any               `json:"matched_connection,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// previewChatStream implements POST /preview/chat/stream (spec.md
// §6.2): builds a fresh, stateless scenechat.Runtime from the
// request's inline agent_detail and streams its chunks as SSE,
// grounded on chat.py's preview_chat_stream/stream_preview_chat.
func (s *Server) previewChatStream(c *gin.Context) {
	var req previewChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	llmCfg, err := s.repo.GetLLMConfiguration(c.Request.Context(), req.AgentDetail.LLMID)
	if err != nil {
		writeError(c, apperr.NotFound("llm configuration %d not found", req.AgentDetail.LLMID))
		return
	}
	client, err := llm.NewClient(llm.Config{
		Endpoint: llmCfg.Endpoint, Model: llmCfg.Model, APIKey: llmCfg.APIKey,
		Protocol: llm.Protocol(llmCfg.Protocol),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	runtime := scenechat.New(req.AgentDetail.Name, req.AgentDetail.Description, client, "", req.AgentDetail.Scenes)

	chunks, err := runtime.ChatStream(c.Request.Context(), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return false
			}
			writePreviewChunk(w, chunk)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func writePreviewChunk(w io.Writer, chunk scenechat.Chunk) {
	event := previewStreamEvent{Type: string(chunk.Type), Delta: chunk.Delta}
	if chunk.Err != nil {
		event.Error = chunk.Err.Error()
	}
	if len(chunk.UpdatedScenes) > 0 {
		event.UpdatedScenes = chunk.UpdatedScenes
	}
	if chunk.MatchedConnection != nil {
		event.MatchedConnection = chunk.MatchedConnection
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
