package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/engine"
	"github.com/codeready-toolchain/tarsy/internal/llm"
	"github.com/codeready-toolchain/tarsy/internal/reactctx"
	"github.com/codeready-toolchain/tarsy/internal/store"
	"github.com/codeready-toolchain/tarsy/internal/transport"
)

// reactChatRequest is spec.md §6.2's POST /react/chat/stream body.
type reactChatRequest struct {
	AgentID   int64  `json:"agent_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	User      string `json:"user" binding:"required"`
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

const defaultPerCallTimeout = 90 * time.Second

// buildAgentConfig resolves an agent_id to a ready-to-run
// engine.AgentConfig: its LLM client (internal/llm.NewClient), its
// tool allowlist, and the text tool catalog restricted to it
// (react.py's get_agent/llm_crud.get/create_llm_from_config, adapted
// from SQLModel lookups onto internal/store).
func (s *Server) buildAgentConfig(c *gin.Context, agentID int64) (engine.AgentConfig, error) {
	ctx := c.Request.Context()

	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return engine.AgentConfig{}, apperr.NotFound("agent %d not found", agentID)
	}

	llmCfg, err := s.repo.GetLLMConfiguration(ctx, agent.LLMID)
	if err != nil {
		return engine.AgentConfig{}, apperr.NotFound("llm configuration %d not found", agent.LLMID)
	}

	client, err := llm.NewClient(llm.Config{
		Endpoint: llmCfg.Endpoint,
		Model:    llmCfg.Model,
		APIKey:   llmCfg.APIKey,
		Protocol: llm.Protocol(llmCfg.Protocol),
	})
	if err != nil {
		return engine.AgentConfig{}, err
	}

	toolNames, err := s.repo.ListAgentTools(ctx, agentID)
	if err != nil {
		return engine.AgentConfig{}, err
	}
	allow := make(map[string]bool, len(toolNames))
	for _, n := range toolNames {
		allow[n] = true
	}

	return engine.AgentConfig{
		LLMClient:      client,
		AllowedTools:   allow,
		ToolCatalog:    s.registry.ToTextCatalogFor(allow),
		PerCallTimeout: defaultPerCallTimeout,
	}, nil
}

// reactChatStream implements POST /react/chat/stream (spec.md §6.2):
// creates a new task, or -- when task_id names a waiting_input task --
// resumes it with the message as the CLARIFY reply, then streams
// engine events over SSE via C7. Grounded on
// original_source/server/app/api/react.py's react_chat_stream.
func (s *Server) reactChatStream(c *gin.Context) {
	var req reactChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	agentCfg, err := s.buildAgentConfig(c, req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	taskID := req.TaskID

	if taskID != "" {
		existing, err := s.repo.GetTask(ctx, taskID)
		if err == nil {
			// Task found: if it's waiting on a CLARIFY reply, resume it
			// with this message; otherwise just re-attach and let the
			// engine continue from its current iteration (react.py's
			// "assume we just attach to it" fallback).
			if existing.Status == store.TaskWaitingInput {
				if err := s.eng.Resume(ctx, taskID, req.Message); err != nil {
					writeError(c, err)
					return
				}
			}
			transport.RunSSE(c, s.eng, taskID, agentCfg)
			return
		}
	}

	taskID = uuid.NewString()
	task := store.Task{
		TaskID:       taskID,
		SessionID:    req.SessionID,
		AgentID:      req.AgentID,
		User:         req.User,
		UserMessage:  req.Message,
		Objective:    req.Message,
		Status:       store.TaskPending,
		MaxIteration: 30,
	}
	if existingAgent, err := s.repo.GetAgent(ctx, req.AgentID); err == nil && existingAgent.MaxIteration > 0 {
		task.MaxIteration = existingAgent.MaxIteration
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		writeError(c, err)
		return
	}

	transport.RunSSE(c, s.eng, taskID, agentCfg)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.repo.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if isNotFound(err) {
			writeError(c, apperr.NotFound("task not found"))
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) getTaskRecursions(c *gin.Context) {
	recs, err := s.repo.ListRecursions(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// loadTaskState reconstructs the state-machine snapshot via
// reactctx.Assemble, optionally truncated to recursions with
// IterationIndex <= upToIteration. There is no persisted
// ReactRecursionState row per iteration in this runtime (spec.md §3
// names the entity but the engine only ever rebuilds the snapshot
// on demand, never stores it -- see internal/reactctx's doc comment);
// this is the reconstruction strategy for both /states and
// /states/{iteration_index}.
func (s *Server) loadTaskState(c *gin.Context, taskID string, upToIteration *int) (reactctx.State, error) {
	ctx := c.Request.Context()

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return reactctx.State{}, apperr.NotFound("task not found")
	}

	recs, err := s.repo.ListRecursions(ctx, taskID)
	if err != nil {
		return reactctx.State{}, err
	}
	steps, err := s.repo.ListPlanSteps(ctx, taskID)
	if err != nil {
		return reactctx.State{}, err
	}

	if upToIteration != nil {
		found := false
		filtered := recs[:0:0]
		for _, r := range recs {
			if r.IterationIndex == *upToIteration {
				found = true
			}
			if r.IterationIndex <= *upToIteration {
				filtered = append(filtered, r)
			}
		}
		if !found {
			return reactctx.State{}, apperr.NotFound("no recursion state at iteration %d", *upToIteration)
		}
		recs = filtered
	}

	return reactctx.Assemble(task, recs, steps), nil
}

func (s *Server) getTaskStates(c *gin.Context) {
	state, err := s.loadTaskState(c, c.Param("task_id"), nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) getTaskStateAt(c *gin.Context) {
	var iteration int
	if err := json.Unmarshal([]byte(c.Param("iteration_index")), &iteration); err != nil {
		writeError(c, apperr.Validation("iteration_index must be an integer"))
		return
	}

	state, err := s.loadTaskState(c, c.Param("task_id"), &iteration)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
