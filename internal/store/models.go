// Package store is the repository layer over Postgres. It replaces
// the teacher's generated-ent client (see DESIGN.md "Dropped teacher
// dependencies") with hand-written pgx queries, since no Go code
// generator may run in this exercise. Types here are the Go-native
// shape of spec.md §3's entities.
package store

import "time"

type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskRunning      TaskStatus = "running"
	TaskWaitingInput TaskStatus = "waiting_input"
	TaskCompleted    TaskStatus = "completed"
	TaskFailed       TaskStatus = "failed"
	TaskCancelled    TaskStatus = "cancelled"
)

type ActionType string

const (
	ActionCallTool ActionType = "CALL_TOOL"
	ActionRePlan   ActionType = "RE_PLAN"
	ActionAnswer   ActionType = "ANSWER"
	ActionClarify  ActionType = "CLARIFY"
	ActionReflect  ActionType = "REFLECT"
	ActionError    ActionType = "ERROR"
)

type RecursionStatus string

const (
	RecursionRunning RecursionStatus = "running"
	RecursionDone    RecursionStatus = "done"
	RecursionError   RecursionStatus = "error"
)

type PlanStepStatus string

const (
	PlanStepPending PlanStepStatus = "pending"
	PlanStepRunning PlanStepStatus = "running"
	PlanStepDone    PlanStepStatus = "done"
	PlanStepError   PlanStepStatus = "error"
)

// Task mirrors spec.md §3's ReactTask.
type Task struct {
	TaskID            string     `json:"task_id"`
	SessionID         string     `json:"session_id"`
	AgentID           int64      `json:"agent_id"`
	User              string     `json:"user"`
	UserMessage       string     `json:"user_message"`
	Objective         string     `json:"objective"`
	Status            TaskStatus `json:"status"`
	Iteration         int        `json:"iteration"`
	MaxIteration      int        `json:"max_iteration"`
	PromptTokens      int        `json:"prompt_tokens"`
	CompletionTokens  int        `json:"completion_tokens"`
	TotalTokens       int        `json:"total_tokens"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ToolCallResultRow mirrors one tool_call_results entry persisted
// against a CALL_TOOL recursion.
type ToolCallResultRow struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
	Result     any            `json:"result"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// Recursion mirrors spec.md §3's ReactRecursion.
type Recursion struct {
	TraceID          string              `json:"trace_id"`
	TaskID           string              `json:"task_id"`
	IterationIndex   int                 `json:"iteration_index"`
	PlanStepID       string              `json:"plan_step_id,omitempty"` // "" if not routed to a plan step (orphaned)
	Observe          string              `json:"observe"`
	Thought          string              `json:"thought"`
	Abstract         string              `json:"abstract"`
	ActionType       ActionType          `json:"action_type"`
	ActionOutput     map[string]any      `json:"action_output"`
	ToolCallResults  []ToolCallResultRow `json:"tool_call_results,omitempty"`
	ShortTermMemory  string              `json:"short_term_memory"`
	Status           RecursionStatus     `json:"status"`
	ErrorLog         string              `json:"error_log,omitempty"`
	PromptTokens     int                 `json:"prompt_tokens"`
	CompletionTokens int                 `json:"completion_tokens"`
	TotalTokens      int                 `json:"total_tokens"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PlanStep mirrors spec.md §3's ReactPlanStep.
type PlanStep struct {
	TaskID      string         `json:"task_id"`
	StepID      string         `json:"step_id"`
	Description string         `json:"description"`
	Status      PlanStepStatus `json:"status"`
}

// Session mirrors spec.md §3's Session.
type Session struct {
	SessionID          string         `json:"session_id"`
	AgentID            int64          `json:"agent_id"`
	User               string         `json:"user"`
	Status             string         `json:"status"`
	Subject            map[string]any `json:"subject"`
	Object             map[string]any `json:"object"`
	ChatHistory        ChatHistory    `json:"chat_history"`
	ChatHistoryVersion int            `json:"chat_history_version"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ChatHistoryMessage is one entry of Session.chat_history.messages.
type ChatHistoryMessage struct {
	Type      string    `json:"type"` // user, assistant, recursion
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistory is the versioned JSON blob on Session (distinct from C8's
// ChatHistoryEntry persistence — see SPEC_FULL.md §3).
type ChatHistory struct {
	Messages []ChatHistoryMessage `json:"messages"`
}

// MemoryItem mirrors one entry of spec.md §3's SessionMemory.memory_items.
type MemoryItem struct {
	ID         int     `json:"id"`
	Type       string  `json:"type"` // background, preference, constraint, capability, decision
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	// decision-type extras
	Source     string `json:"source,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Rationale  string `json:"rationale,omitempty"`
	Reversible *bool  `json:"reversible,omitempty"`
}

// ConversationEntry mirrors one entry of SessionMemory.conversations.
type ConversationEntry struct {
	TaskIndex   int    `json:"task_index"`
	TaskID      string `json:"task_id"`
	UserInput   string `json:"user_input"`
	AgentAnswer string `json:"agent_answer"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
}

// SessionMemory mirrors spec.md §3's SessionMemory (1:1 with Session).
type SessionMemory struct {
	SessionID     string              `json:"session_id"`
	Version       int                 `json:"version"`
	MemoryItems   []MemoryItem        `json:"memory_items"`
	Conversations []ConversationEntry `json:"conversations"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Agent mirrors spec.md §3's Agent entity: created/updated by external
// CRUD, read-only to the engine.
type Agent struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	LLMID        int64     `json:"llm_id"`
	MaxIteration int       `json:"max_iteration"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LLMConfiguration mirrors spec.md §3's LLM configuration entity.
type LLMConfiguration struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Endpoint    string         `json:"endpoint"`
	Model       string         `json:"model"`
	APIKey      string         `json:"-"` // secret: never serialized
	Protocol    string         `json:"protocol"` // "openai_compatible" or "anthropic_compatible"
	Streaming   bool           `json:"streaming"`
	ExtraConfig map[string]any `json:"extra_config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AgentTool mirrors spec.md §3's AgentTool many-to-many link.
type AgentTool struct {
	AgentID  int64  `json:"agent_id"`
	ToolName string `json:"tool_name"`
}

// ChatHistoryEntry is the scene-graph chat (C8) persistence row,
// distinct from Session.ChatHistory (SPEC_FULL.md §3/§12), grounded on
// original_source/server/app/crud/chat_history.py.
type ChatHistoryEntry struct {
	ID          int64          `json:"id"`
	AgentID     int64          `json:"agent_id"`
	User        string         `json:"user"`
	Role        string         `json:"role"`
	Message     string         `json:"message"`
	Reason      string         `json:"reason,omitempty"`
	UpdateScene map[string]any `json:"update_scene,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
