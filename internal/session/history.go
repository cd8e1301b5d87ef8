package session

import (
	"context"
	"sort"
	"time"

	"github.com/codeready-toolchain/tarsy/internal/store"
)

// TaskHistory is one task's entry in a full session history listing
// (session_memory_service.py's get_full_session_history).
type TaskHistory struct {
	TaskID      string              `json:"task_id"`
	UserMessage string              `json:"user_message"`
	AgentAnswer string              `json:"agent_answer,omitempty"`
	Status      string              `json:"status"`
	TotalTokens int                 `json:"total_tokens"`
	Recursions  []RecursionHistory  `json:"recursions"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// RecursionHistory is one recursion's entry nested under a TaskHistory.
type RecursionHistory struct {
	Iteration        int            `json:"iteration"`
	TraceID          string         `json:"trace_id"`
	Observe          string         `json:"observe"`
	Thought          string         `json:"thought"`
	Abstract         string         `json:"abstract"`
	ActionType       string         `json:"action_type"`
	ActionOutput     map[string]any `json:"action_output"`
	ToolCallResults  any            `json:"tool_call_results,omitempty"`
	Status           string         `json:"status"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// GetFullSessionHistory joins every task of a session with its
// recursions, ordered by creation time, for rendering complete
// conversation history (session_memory_service.py's
// get_full_session_history).
func (s *Service) GetFullSessionHistory(ctx context.Context, sessionID string) ([]TaskHistory, error) {
	tasks, err := s.Repo.ListTasksBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sorted := append([]store.Task(nil), tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	result := make([]TaskHistory, 0, len(sorted))
	for _, task := range sorted {
		recursions, err := s.Repo.ListRecursionsByTask(ctx, task.TaskID)
		if err != nil {
			return nil, err
		}
		sortedRec := append([]store.Recursion(nil), recursions...)
		sort.Slice(sortedRec, func(i, j int) bool { return sortedRec[i].IterationIndex < sortedRec[j].IterationIndex })

		recHistory := make([]RecursionHistory, 0, len(sortedRec))
		var agentAnswer string
		for i := len(sortedRec) - 1; i >= 0; i-- {
			r := sortedRec[i]
			if r.ActionType == store.ActionAnswer && r.ActionOutput != nil {
				if answer, ok := r.ActionOutput["answer"].(string); ok && answer != "" {
					agentAnswer = answer
					break
				}
			}
		}
		for _, r := range sortedRec {
			recHistory = append(recHistory, RecursionHistory{
				Iteration:        r.IterationIndex,
				TraceID:          r.TraceID,
				Observe:          r.Observe,
				Thought:          r.Thought,
				Abstract:         r.Abstract,
				ActionType:       string(r.ActionType),
				ActionOutput:     r.ActionOutput,
				ToolCallResults:  r.ToolCallResults,
				Status:           string(r.Status),
				PromptTokens:     r.PromptTokens,
				CompletionTokens: r.CompletionTokens,
				TotalTokens:      r.TotalTokens,
				CreatedAt:        r.CreatedAt,
				UpdatedAt:        r.UpdatedAt,
			})
		}

		result = append(result, TaskHistory{
			TaskID:      task.TaskID,
			UserMessage: task.UserMessage,
			AgentAnswer: agentAnswer,
			Status:      string(task.Status),
			TotalTokens: task.TotalTokens,
			Recursions:  recHistory,
			CreatedAt:   task.CreatedAt,
			UpdatedAt:   task.UpdatedAt,
		})
	}

	return result, nil
}
