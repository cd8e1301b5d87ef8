package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateLLMConfiguration inserts an LLM configuration row, grounded on
// spec.md §3's "Created/updated by external CRUD" note for the entity.
func (r *PgRepo) CreateLLMConfiguration(ctx context.Context, cfg LLMConfiguration) (int64, error) {
	extra, err := marshalJSON(cfg.ExtraConfig)
	if err != nil {
		return 0, fmt.Errorf("marshal extra_config: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO llm_configurations (name, endpoint, model, api_key, protocol, streaming, extra_config)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		cfg.Name, cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Protocol, cfg.Streaming, extra,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create llm configuration: %w", err)
	}
	return id, nil
}

func (r *PgRepo) GetLLMConfiguration(ctx context.Context, id int64) (LLMConfiguration, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, endpoint, model, api_key, protocol, streaming, extra_config, created_at, updated_at
		FROM llm_configurations WHERE id = $1`, id)

	var cfg LLMConfiguration
	var extra []byte
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Endpoint, &cfg.Model, &cfg.APIKey, &cfg.Protocol,
		&cfg.Streaming, &extra, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LLMConfiguration{}, fmt.Errorf("llm configuration %d not found", id)
	}
	if err != nil {
		return LLMConfiguration{}, fmt.Errorf("get llm configuration: %w", err)
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &cfg.ExtraConfig); err != nil {
			return LLMConfiguration{}, fmt.Errorf("unmarshal extra_config: %w", err)
		}
	}
	return cfg, nil
}

// CreateAgent inserts an agent row. Tool assignments are set separately
// via SetAgentTools, mirroring the AgentTool many-to-many link of
// spec.md §3.
func (r *PgRepo) CreateAgent(ctx context.Context, a Agent) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO agents (name, description, llm_id, max_iteration)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		a.Name, a.Description, a.LLMID, a.MaxIteration,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create agent: %w", err)
	}
	return id, nil
}

func (r *PgRepo) GetAgent(ctx context.Context, id int64) (Agent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, llm_id, max_iteration, created_at, updated_at
		FROM agents WHERE id = $1`, id)

	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.LLMID, &a.MaxIteration, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, fmt.Errorf("agent %d not found", id)
	}
	if err != nil {
		return Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (r *PgRepo) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, llm_id, max_iteration, created_at, updated_at
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.LLMID, &a.MaxIteration, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetAgentTools replaces an agent's tool allowlist wholesale, the same
// delete-then-insert idiom as ReplacePlanSteps.
func (r *PgRepo) SetAgentTools(ctx context.Context, agentID int64, toolNames []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set agent tools: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM agent_tools WHERE agent_id = $1`, agentID); err != nil {
		return fmt.Errorf("clear agent tools: %w", err)
	}
	for _, name := range toolNames {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent_tools (agent_id, tool_name) VALUES ($1,$2)`,
			agentID, name); err != nil {
			return fmt.Errorf("insert agent tool: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PgRepo) ListAgentTools(ctx context.Context, agentID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tool_name FROM agent_tools WHERE agent_id = $1 ORDER BY tool_name`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent tools: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan agent tool: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
