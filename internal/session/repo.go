// Package session is the Session Memory Service (spec.md §4.6, C6):
// session CRUD, the memory-delta apply algorithm, conversation log,
// chat history, and the full cross-task session history join.
// Grounded on
// original_source/server/app/services/session_memory_service.py's
// SessionMemoryService.
package session

import (
	"context"

	"github.com/codeready-toolchain/tarsy/internal/store"
)

// Repo is the persistence boundary this service needs. The concrete
// pgx-backed implementation lives in internal/store; tests substitute
// an in-memory fake (same "explicit dependency, no singleton"
// convention as internal/engine.Repo).
type Repo interface {
	CreateSession(ctx context.Context, s store.Session, mem store.SessionMemory) error
	GetSession(ctx context.Context, sessionID string) (store.Session, bool, error)
	UpdateSession(ctx context.Context, s store.Session) error
	DeleteSession(ctx context.Context, sessionID string) error

	GetSessionMemory(ctx context.Context, sessionID string) (store.SessionMemory, bool, error)
	UpdateSessionMemory(ctx context.Context, mem store.SessionMemory) error

	ListSessionsByUser(ctx context.Context, user string, agentID *int64, limit int) ([]store.Session, error)

	ListTasksBySession(ctx context.Context, sessionID string) ([]store.Task, error)
	ListRecursionsByTask(ctx context.Context, taskID string) ([]store.Recursion, error)
}
