package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepo is the concrete pgx-backed implementation of both
// internal/engine.Repo and internal/session.Repo. Those packages
// depend only on their own narrow interfaces (spec.md §9); PgRepo is
// the single adapter wired into both from cmd/agentrt/main.go.
type PgRepo struct {
	pool *pgxpool.Pool
}

func NewPgRepo(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

// Ping verifies database connectivity, used by the HTTP layer's
// health endpoint (pkg/api/server.go::healthHandler).
func (r *PgRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// --- tasks -------------------------------------------------------------

// CreateTask inserts a new task row, used by the HTTP layer when
// starting a react task (not part of engine.Repo, which only reads
// and updates an already-created task).
func (r *PgRepo) CreateTask(ctx context.Context, t Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (task_id, session_id, agent_id, "user", user_message, objective,
			status, iteration, max_iteration, prompt_tokens, completion_tokens, total_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.TaskID, t.SessionID, t.AgentID, t.User, t.UserMessage, t.Objective,
		t.Status, t.Iteration, t.MaxIteration, t.PromptTokens, t.CompletionTokens, t.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *PgRepo) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT task_id, session_id, agent_id, "user", user_message, objective, status,
			iteration, max_iteration, prompt_tokens, completion_tokens, total_tokens,
			created_at, updated_at
		FROM tasks WHERE task_id = $1`, taskID)

	var t Task
	err := row.Scan(&t.TaskID, &t.SessionID, &t.AgentID, &t.User, &t.UserMessage, &t.Objective, &t.Status,
		&t.Iteration, &t.MaxIteration, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, fmt.Errorf("task %s not found", taskID)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *PgRepo) UpdateTask(ctx context.Context, t Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status=$2, iteration=$3, prompt_tokens=$4, completion_tokens=$5,
			total_tokens=$6, objective=$7, updated_at=now()
		WHERE task_id=$1`,
		t.TaskID, t.Status, t.Iteration, t.PromptTokens, t.CompletionTokens, t.TotalTokens, t.Objective,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// --- recursions ----------------------------------------------------------

func (r *PgRepo) CreateRecursion(ctx context.Context, rec Recursion) error {
	actionOutput, err := marshalJSON(rec.ActionOutput)
	if err != nil {
		return fmt.Errorf("marshal action_output: %w", err)
	}
	toolCallResults, err := marshalJSON(rec.ToolCallResults)
	if err != nil {
		return fmt.Errorf("marshal tool_call_results: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO recursions (trace_id, task_id, iteration_index, plan_step_id, observe, thought,
			abstract, action_type, action_output, tool_call_results, short_term_memory, status,
			error_log, prompt_tokens, completion_tokens, total_tokens)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		rec.TraceID, rec.TaskID, rec.IterationIndex, rec.PlanStepID, rec.Observe, rec.Thought,
		rec.Abstract, rec.ActionType, actionOutput, toolCallResults, rec.ShortTermMemory, rec.Status,
		rec.ErrorLog, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("create recursion: %w", err)
	}
	return nil
}

func (r *PgRepo) UpdateRecursion(ctx context.Context, rec Recursion) error {
	actionOutput, err := marshalJSON(rec.ActionOutput)
	if err != nil {
		return fmt.Errorf("marshal action_output: %w", err)
	}
	toolCallResults, err := marshalJSON(rec.ToolCallResults)
	if err != nil {
		return fmt.Errorf("marshal tool_call_results: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE recursions SET observe=$2, thought=$3, abstract=$4, action_type=$5, action_output=$6,
			tool_call_results=$7, short_term_memory=$8, status=$9, error_log=$10, prompt_tokens=$11,
			completion_tokens=$12, total_tokens=$13, updated_at=now()
		WHERE trace_id=$1`,
		rec.TraceID, rec.Observe, rec.Thought, rec.Abstract, rec.ActionType, actionOutput,
		toolCallResults, rec.ShortTermMemory, rec.Status, rec.ErrorLog, rec.PromptTokens,
		rec.CompletionTokens, rec.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("update recursion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.CreateRecursion(ctx, rec)
	}
	return nil
}

func (r *PgRepo) ListRecursions(ctx context.Context, taskID string) ([]Recursion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trace_id, task_id, iteration_index, plan_step_id, observe, thought, abstract,
			action_type, action_output, tool_call_results, short_term_memory, status, error_log,
			prompt_tokens, completion_tokens, total_tokens, created_at, updated_at
		FROM recursions WHERE task_id = $1 ORDER BY iteration_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list recursions: %w", err)
	}
	defer rows.Close()

	var out []Recursion
	for rows.Next() {
		var rec Recursion
		var actionOutput, toolCallResults []byte
		if err := rows.Scan(&rec.TraceID, &rec.TaskID, &rec.IterationIndex, &rec.PlanStepID, &rec.Observe,
			&rec.Thought, &rec.Abstract, &rec.ActionType, &actionOutput, &toolCallResults,
			&rec.ShortTermMemory, &rec.Status, &rec.ErrorLog, &rec.PromptTokens, &rec.CompletionTokens,
			&rec.TotalTokens, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recursion: %w", err)
		}
		if len(actionOutput) > 0 {
			if err := json.Unmarshal(actionOutput, &rec.ActionOutput); err != nil {
				return nil, fmt.Errorf("unmarshal action_output: %w", err)
			}
		}
		if len(toolCallResults) > 0 {
			if err := json.Unmarshal(toolCallResults, &rec.ToolCallResults); err != nil {
				return nil, fmt.Errorf("unmarshal tool_call_results: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- plan steps ----------------------------------------------------------

func (r *PgRepo) ReplacePlanSteps(ctx context.Context, taskID string, steps []PlanStep) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace plan steps: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM plan_steps WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear plan steps: %w", err)
	}
	for i, step := range steps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO plan_steps (task_id, step_id, description, status, position)
			VALUES ($1,$2,$3,$4,$5)`,
			taskID, step.StepID, step.Description, step.Status, i); err != nil {
			return fmt.Errorf("insert plan step: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PgRepo) ListPlanSteps(ctx context.Context, taskID string) ([]PlanStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task_id, step_id, description, status FROM plan_steps
		WHERE task_id = $1 ORDER BY position`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list plan steps: %w", err)
	}
	defer rows.Close()

	var out []PlanStep
	for rows.Next() {
		var p PlanStep
		if err := rows.Scan(&p.TaskID, &p.StepID, &p.Description, &p.Status); err != nil {
			return nil, fmt.Errorf("scan plan step: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
