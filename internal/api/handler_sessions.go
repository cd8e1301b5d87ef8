package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/store"
)

// createSessionRequest is POST /sessions's body.
type createSessionRequest struct {
	AgentID int64 `json:"agent_id" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	session, err := s.sessions.CreateSession(c.Request.Context(), req.AgentID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) listSessions(c *gin.Context) {
	var agentIDPtr *int64
	if raw := c.Query("agent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, apperr.Validation("agent_id must be an integer"))
			return
		}
		agentIDPtr = &id
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apperr.Validation("limit must be an integer"))
			return
		}
		limit = n
	}

	sessions, err := s.sessions.ListSessionsByUser(c.Request.Context(), currentUser(c), agentIDPtr, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// loadOwnedSession fetches a session and enforces the cross-user
// access check repeated across every endpoint below (session.user !=
// current_user.username -> 403), per
// original_source/server/app/api/session.py.
func (s *Server) loadOwnedSession(c *gin.Context, sessionID string) (store.Session, bool) {
	sess, err := s.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if isNotFound(err) || apperr.Is(err, apperr.KindNotFound) {
			writeError(c, apperr.NotFound("session not found"))
			return store.Session{}, false
		}
		writeError(c, err)
		return store.Session{}, false
	}
	if sess.User != currentUser(c) {
		forbidden(c, "access denied")
		return store.Session{}, false
	}
	return sess, true
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.loadOwnedSession(c, c.Param("session_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) getSessionMemory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, ok := s.loadOwnedSession(c, sessionID); !ok {
		return
	}

	mem, err := s.sessions.GetSessionMemory(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mem)
}

func (s *Server) getSessionHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, ok := s.loadOwnedSession(c, sessionID); !ok {
		return
	}

	messages, err := s.sessions.GetChatHistory(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": 1, "messages": messages})
}

// taskHistory is one entry of GET .../full-history's tasks array,
// grounded on session.py's get_full_session_history join shape.
type taskHistory struct {
	TaskID      string            `json:"task_id"`
	UserMessage string            `json:"user_message"`
	Status      store.TaskStatus  `json:"status"`
	TotalTokens int               `json:"total_tokens"`
	Recursions  []store.Recursion `json:"recursions"`
	CreatedAt   any               `json:"created_at"`
	UpdatedAt   any               `json:"updated_at"`
}

func (s *Server) getSessionFullHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, ok := s.loadOwnedSession(c, sessionID); !ok {
		return
	}

	ctx := c.Request.Context()
	tasks, err := s.repo.ListTasksBySession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]taskHistory, 0, len(tasks))
	for _, t := range tasks {
		recs, err := s.repo.ListRecursions(ctx, t.TaskID)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, taskHistory{
			TaskID:      t.TaskID,
			UserMessage: t.UserMessage,
			Status:      t.Status,
			TotalTokens: t.TotalTokens,
			Recursions:  recs,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "tasks": out})
}

func (s *Server) deleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, ok := s.loadOwnedSession(c, sessionID); !ok {
		return
	}
	if err := s.sessions.DeleteSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
