package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/builder"
	"github.com/codeready-toolchain/tarsy/internal/llm"
)

// buildChatRequest is POST /build/chat's body (spec.md §6.2).
type buildChatRequest struct {
	SessionID string `json:"session_id"`
	AgentID   int64  `json:"agent_id"`
	LLMID     int64  `json:"llm_id"`
	Content   string `json:"content" binding:"required"`
}

type buildChatResponse struct {
	SessionID    string               `json:"session_id"`
	Response     string               `json:"response"`
	Reason       string               `json:"reason"`
	UpdatedAgent builder.AgentConfig  `json:"updated_agent"`
}

// builderFor returns the in-memory Builder for a build session id,
// creating one on first use. original_source/server/app/api/build.py
// persists build history to the database and replays it on every
// request (reconstruct_builder_history) because its handler is
// stateless across requests; this runtime keeps a live Builder per
// session id instead (DESIGN.md documents this as an intentional
// simplification -- build-session history is ephemeral scaffolding,
// not part of spec.md §3's persisted data model).
func (s *Server) builderFor(sessionID string, llmID int64, c *gin.Context) (*builder.Builder, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if b, ok := s.buildSessions[sessionID]; ok {
		return b, nil
	}

	llmCfg, err := s.repo.GetLLMConfiguration(c.Request.Context(), llmID)
	if err != nil {
		return nil, apperr.NotFound("llm configuration %d not found", llmID)
	}
	client, err := llm.NewClient(llm.Config{
		Endpoint: llmCfg.Endpoint, Model: llmCfg.Model, APIKey: llmCfg.APIKey,
		Protocol: llm.Protocol(llmCfg.Protocol),
	})
	if err != nil {
		return nil, err
	}

	b := builder.New(client)
	s.buildSessions[sessionID] = b
	return b, nil
}

// buildChat implements POST /build/chat (spec.md §6.2/§4.9): a
// multi-turn helper that asks the LLM to produce or revise an agent
// configuration, grounded on build.py's chat_build.
func (s *Server) buildChat(c *gin.Context) {
	var req buildChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	sessionID := req.SessionID
	isNewSession := sessionID == ""
	if isNewSession {
		sessionID = uuid.NewString()
	}

	if req.LLMID == 0 {
		writeError(c, apperr.Validation("llm_id is required"))
		return
	}

	b, err := s.builderFor(sessionID, req.LLMID, c)
	if err != nil {
		writeError(c, err)
		return
	}

	var existingAgent *builder.AgentConfig
	if isNewSession && req.AgentID != 0 {
		agent, err := s.repo.GetAgent(c.Request.Context(), req.AgentID)
		if err == nil {
			existingAgent = &builder.AgentConfig{Name: agent.Name, Description: agent.Description}
		}
	}

	result, err := b.Build(c.Request.Context(), req.Content, existingAgent)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildChatResponse{
		SessionID:    sessionID,
		Response:     result.Response,
		Reason:       result.Reason,
		UpdatedAgent: result.Agent,
	})
}
