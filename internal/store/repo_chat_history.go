package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// CreateChatHistoryEntry persists one turn of the scene-graph chat
// runtime (C8), grounded on
// original_source/server/app/crud/chat_history.py.
func (r *PgRepo) CreateChatHistoryEntry(ctx context.Context, e ChatHistoryEntry) error {
	updateScene, err := marshalJSON(e.UpdateScene)
	if err != nil {
		return fmt.Errorf("marshal update_scene: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO chat_history_entries (agent_id, "user", role, message, reason, update_scene)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.AgentID, e.User, e.Role, e.Message, e.Reason, updateScene,
	)
	if err != nil {
		return fmt.Errorf("create chat history entry: %w", err)
	}
	return nil
}

// ListChatHistoryEntries returns an agent+user's scene-chat turns in
// chronological order.
func (r *PgRepo) ListChatHistoryEntries(ctx context.Context, agentID int64, user string, limit int) ([]ChatHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agent_id, "user", role, message, reason, update_scene, created_at
		FROM chat_history_entries
		WHERE agent_id = $1 AND "user" = $2
		ORDER BY created_at ASC
		LIMIT $3`, agentID, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat history entries: %w", err)
	}
	defer rows.Close()

	var out []ChatHistoryEntry
	for rows.Next() {
		var e ChatHistoryEntry
		var updateScene []byte
		if err := rows.Scan(&e.ID, &e.AgentID, &e.User, &e.Role, &e.Message, &e.Reason, &updateScene, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat history entry: %w", err)
		}
		if len(updateScene) > 0 {
			if err := json.Unmarshal(updateScene, &e.UpdateScene); err != nil {
				return nil, fmt.Errorf("unmarshal update_scene: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
