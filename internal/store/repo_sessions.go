package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// --- sessions --------------------------------------------------------

func (r *PgRepo) CreateSession(ctx context.Context, s Session, mem SessionMemory) error {
	subject, err := marshalJSON(s.Subject)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	object, err := marshalJSON(s.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	chatHistory, err := marshalJSON(s.ChatHistory)
	if err != nil {
		return fmt.Errorf("marshal chat_history: %w", err)
	}
	memoryItems, err := marshalJSON(mem.MemoryItems)
	if err != nil {
		return fmt.Errorf("marshal memory_items: %w", err)
	}
	conversations, err := marshalJSON(mem.Conversations)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO sessions (session_id, agent_id, "user", status, subject, object,
			chat_history, chat_history_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.SessionID, s.AgentID, s.User, s.Status, subject, object, chatHistory, s.ChatHistoryVersion,
	); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO session_memory (session_id, version, memory_items, conversations)
		VALUES ($1,$2,$3,$4)`,
		mem.SessionID, mem.Version, memoryItems, conversations,
	); err != nil {
		return fmt.Errorf("create session memory: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepo) GetSession(ctx context.Context, sessionID string) (Session, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT session_id, agent_id, "user", status, subject, object, chat_history,
			chat_history_version, created_at, updated_at
		FROM sessions WHERE session_id = $1`, sessionID)

	var s Session
	var subject, object, chatHistory []byte
	err := row.Scan(&s.SessionID, &s.AgentID, &s.User, &s.Status, &subject, &object, &chatHistory,
		&s.ChatHistoryVersion, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	if err := unmarshalIfPresent(subject, &s.Subject); err != nil {
		return Session{}, false, fmt.Errorf("unmarshal subject: %w", err)
	}
	if err := unmarshalIfPresent(object, &s.Object); err != nil {
		return Session{}, false, fmt.Errorf("unmarshal object: %w", err)
	}
	if err := unmarshalIfPresent(chatHistory, &s.ChatHistory); err != nil {
		return Session{}, false, fmt.Errorf("unmarshal chat_history: %w", err)
	}
	return s, true, nil
}

func (r *PgRepo) UpdateSession(ctx context.Context, s Session) error {
	subject, err := marshalJSON(s.Subject)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	object, err := marshalJSON(s.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	chatHistory, err := marshalJSON(s.ChatHistory)
	if err != nil {
		return fmt.Errorf("marshal chat_history: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE sessions SET status=$2, subject=$3, object=$4, chat_history=$5,
			chat_history_version=$6, updated_at=now()
		WHERE session_id=$1`,
		s.SessionID, s.Status, subject, object, chatHistory, s.ChatHistoryVersion,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *PgRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *PgRepo) ListSessionsByUser(ctx context.Context, user string, agentID *int64, limit int) ([]Session, error) {
	var rows pgx.Rows
	var err error
	if agentID != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT session_id, agent_id, "user", status, subject, object, chat_history,
				chat_history_version, created_at, updated_at
			FROM sessions WHERE "user" = $1 AND agent_id = $2 ORDER BY created_at DESC LIMIT $3`,
			user, *agentID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT session_id, agent_id, "user", status, subject, object, chat_history,
				chat_history_version, created_at, updated_at
			FROM sessions WHERE "user" = $1 ORDER BY created_at DESC LIMIT $2`,
			user, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var subject, object, chatHistory []byte
		if err := rows.Scan(&s.SessionID, &s.AgentID, &s.User, &s.Status, &subject, &object, &chatHistory,
			&s.ChatHistoryVersion, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := unmarshalIfPresent(subject, &s.Subject); err != nil {
			return nil, fmt.Errorf("unmarshal subject: %w", err)
		}
		if err := unmarshalIfPresent(object, &s.Object); err != nil {
			return nil, fmt.Errorf("unmarshal object: %w", err)
		}
		if err := unmarshalIfPresent(chatHistory, &s.ChatHistory); err != nil {
			return nil, fmt.Errorf("unmarshal chat_history: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- session memory ----------------------------------------------------

func (r *PgRepo) GetSessionMemory(ctx context.Context, sessionID string) (SessionMemory, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT session_id, version, memory_items, conversations, created_at, updated_at
		FROM session_memory WHERE session_id = $1`, sessionID)

	var m SessionMemory
	var memoryItems, conversations []byte
	err := row.Scan(&m.SessionID, &m.Version, &memoryItems, &conversations, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionMemory{}, false, nil
	}
	if err != nil {
		return SessionMemory{}, false, fmt.Errorf("get session memory: %w", err)
	}
	if err := unmarshalIfPresent(memoryItems, &m.MemoryItems); err != nil {
		return SessionMemory{}, false, fmt.Errorf("unmarshal memory_items: %w", err)
	}
	if err := unmarshalIfPresent(conversations, &m.Conversations); err != nil {
		return SessionMemory{}, false, fmt.Errorf("unmarshal conversations: %w", err)
	}
	return m, true, nil
}

func (r *PgRepo) UpdateSessionMemory(ctx context.Context, mem SessionMemory) error {
	memoryItems, err := marshalJSON(mem.MemoryItems)
	if err != nil {
		return fmt.Errorf("marshal memory_items: %w", err)
	}
	conversations, err := marshalJSON(mem.Conversations)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE session_memory SET version=$2, memory_items=$3, conversations=$4, updated_at=now()
		WHERE session_id=$1`,
		mem.SessionID, mem.Version, memoryItems, conversations,
	)
	if err != nil {
		return fmt.Errorf("update session memory: %w", err)
	}
	return nil
}

// --- cross-entity reads for get_full_session_history --------------------

func (r *PgRepo) ListTasksBySession(ctx context.Context, sessionID string) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task_id, session_id, agent_id, "user", user_message, objective, status,
			iteration, max_iteration, prompt_tokens, completion_tokens, total_tokens,
			created_at, updated_at
		FROM tasks WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by session: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.TaskID, &t.SessionID, &t.AgentID, &t.User, &t.UserMessage, &t.Objective,
			&t.Status, &t.Iteration, &t.MaxIteration, &t.PromptTokens, &t.CompletionTokens,
			&t.TotalTokens, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PgRepo) ListRecursionsByTask(ctx context.Context, taskID string) ([]Recursion, error) {
	return r.ListRecursions(ctx, taskID)
}

func unmarshalIfPresent(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
