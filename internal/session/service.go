package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/store"

	"context"
)

// Service implements the session-memory operations of spec.md §4.6.
// One Service instance is constructed explicitly with its Repo; there
// is no package-level singleton (same convention as internal/engine).
type Service struct {
	Repo Repo
}

func New(repo Repo) *Service {
	return &Service{Repo: repo}
}

// CreateSession creates a session with empty chat history and an
// associated empty SessionMemory row (session_memory_service.py's
// create_session).
func (s *Service) CreateSession(ctx context.Context, agentID int64, user string) (store.Session, error) {
	now := time.Now().UTC()
	sess := store.Session{
		SessionID:          uuid.New().String(),
		AgentID:            agentID,
		User:               user,
		Status:             "active",
		ChatHistory:        store.ChatHistory{Messages: []store.ChatHistoryMessage{}},
		ChatHistoryVersion: 1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	mem := store.SessionMemory{
		SessionID:     sess.SessionID,
		Version:       1,
		MemoryItems:   []store.MemoryItem{},
		Conversations: []store.ConversationEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.CreateSession(ctx, sess, mem); err != nil {
		return store.Session{}, err
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	sess, ok, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return store.Session{}, err
	}
	if !ok {
		return store.Session{}, apperr.NotFound("session %q not found", sessionID)
	}
	return sess, nil
}

func (s *Service) GetSessionMemory(ctx context.Context, sessionID string) (store.SessionMemory, error) {
	mem, ok, err := s.Repo.GetSessionMemory(ctx, sessionID)
	if err != nil {
		return store.SessionMemory{}, err
	}
	if !ok {
		return store.SessionMemory{}, apperr.NotFound("session memory %q not found", sessionID)
	}
	return mem, nil
}

func (s *Service) ListSessionsByUser(ctx context.Context, user string, agentID *int64, limit int) ([]store.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.Repo.ListSessionsByUser(ctx, user, agentID, limit)
}

// MemoryDeltaItem is one add/update entry of a memory delta
// (context_template.md §4.6, mirrored in spec.md §4.6).
type MemoryDeltaItem struct {
	ID         int
	Type       string
	Content    string
	Confidence *float64
	Source     string
	Decision   string
	Rationale  string
	Reversible *bool
}

// MemoryDelta is the add/update/delete triple an ANSWER action may
// attach to a task's conclusion.
type MemoryDelta struct {
	Add    []MemoryDeltaItem
	Update []MemoryDeltaItem
	Delete []int
}

func buildMemoryItem(d MemoryDeltaItem, id int) store.MemoryItem {
	typ := d.Type
	if typ == "" {
		typ = "background"
	}
	confidence := 0.5
	if d.Confidence != nil {
		confidence = *d.Confidence
	}
	item := store.MemoryItem{ID: id, Type: typ, Content: d.Content, Confidence: confidence}
	if typ == "decision" {
		source := d.Source
		if source == "" {
			source = "agent"
		}
		item.Source = source
		item.Decision = d.Decision
		item.Rationale = d.Rationale
		reversible := true
		if d.Reversible != nil {
			reversible = *d.Reversible
		}
		item.Reversible = &reversible
	}
	return item
}

// ApplyMemoryDelta applies add/update/delete operations to a session's
// memory items, assigning new IDs as max(existing)+1 in order
// (spec.md Invariant 5; session_memory_service.py's apply_memory_delta).
func (s *Service) ApplyMemoryDelta(ctx context.Context, sessionID string, delta MemoryDelta) error {
	mem, ok, err := s.Repo.GetSessionMemory(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("session memory %q not found", sessionID)
	}

	maxID := 0
	for _, item := range mem.MemoryItems {
		if item.ID > maxID {
			maxID = item.ID
		}
	}

	for _, add := range delta.Add {
		maxID++
		mem.MemoryItems = append(mem.MemoryItems, buildMemoryItem(add, maxID))
	}

	for _, upd := range delta.Update {
		for i, existing := range mem.MemoryItems {
			if existing.ID == upd.ID {
				mem.MemoryItems[i] = buildMemoryItem(upd, upd.ID)
				break
			}
		}
	}

	if len(delta.Delete) > 0 {
		deleteSet := make(map[int]bool, len(delta.Delete))
		for _, id := range delta.Delete {
			deleteSet[id] = true
		}
		filtered := mem.MemoryItems[:0:0]
		for _, item := range mem.MemoryItems {
			if !deleteSet[item.ID] {
				filtered = append(filtered, item)
			}
		}
		mem.MemoryItems = filtered
	}

	mem.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSessionMemory(ctx, mem)
}

func (s *Service) UpdateSubject(ctx context.Context, sessionID string, subject map[string]any) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Subject = subject
	sess.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSession(ctx, sess)
}

func (s *Service) UpdateObject(ctx context.Context, sessionID string, object map[string]any) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Object = object
	sess.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSession(ctx, sess)
}

// AddConversation appends a summary entry to the session's
// conversation log when a task completes (spec.md Invariant 7:
// task_index is 1-based, equal to len(conversations)+1 at the time it
// is appended).
func (s *Service) AddConversation(ctx context.Context, sessionID string, task store.Task, agentAnswer string, summary map[string]any) error {
	mem, ok, err := s.Repo.GetSessionMemory(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("session memory %q not found", sessionID)
	}

	taskIndex := len(mem.Conversations) + 1
	mem.Conversations = append(mem.Conversations, store.ConversationEntry{
		TaskIndex:   taskIndex,
		TaskID:      task.TaskID,
		UserInput:   task.UserMessage,
		AgentAnswer: agentAnswer,
		Status:      string(task.Status),
		Summary:     summaryText(summary),
	})
	mem.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSessionMemory(ctx, mem)
}

func summaryText(summary map[string]any) string {
	if summary == nil {
		return ""
	}
	if content, ok := summary["content"].(string); ok {
		return content
	}
	return ""
}

// UpdateChatHistory appends one message to the session's versioned
// chat-history blob (spec.md §4.6; distinct from C8's ChatHistoryEntry
// rows).
func (s *Service) UpdateChatHistory(ctx context.Context, sessionID, messageType, content string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.ChatHistory.Messages = append(sess.ChatHistory.Messages, store.ChatHistoryMessage{
		Type:      messageType,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	sess.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSession(ctx, sess)
}

func (s *Service) GetChatHistory(ctx context.Context, sessionID string) ([]store.ChatHistoryMessage, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.ChatHistory.Messages, nil
}

func (s *Service) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Status = status
	sess.UpdatedAt = time.Now().UTC()
	return s.Repo.UpdateSession(ctx, sess)
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.Repo.DeleteSession(ctx, sessionID)
}
