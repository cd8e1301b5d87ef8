package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestRepo spins up a real Postgres container, applies the
// embedded migrations, and returns a ready PgRepo -- the same
// testcontainers idiom as pkg/database/client_test.go's newTestClient.
func newTestRepo(t *testing.T) *PgRepo {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "test",
		SSLMode: "disable", MaxConns: 5, MinConns: 1,
		MaxConnLifetime: time.Hour, MaxConnIdleTime: 15 * time.Minute,
	}

	require.NoError(t, RunMigrations(ctx, cfg))

	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	require.NoError(t, err)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPgRepo(pool)
}

func TestTaskCreateGetUpdateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	task := Task{
		TaskID: "task-1", SessionID: "sess-1", AgentID: 1, User: "alice",
		UserMessage: "what is 2+2", Objective: "", Status: TaskPending,
		MaxIteration: 10,
	}
	require.NoError(t, repo.CreateTask(ctx, task))

	got, err := repo.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "alice", got.User)
	require.Equal(t, TaskPending, got.Status)

	got.Status = TaskRunning
	got.Iteration = 1
	got.TotalTokens = 42
	require.NoError(t, repo.UpdateTask(ctx, got))

	reloaded, err := repo.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, TaskRunning, reloaded.Status)
	require.Equal(t, 1, reloaded.Iteration)
	require.Equal(t, 42, reloaded.TotalTokens)
}

func TestGetTaskNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTask(context.Background(), "missing")
	require.Error(t, err)
}

func TestRecursionCreateUpdateListPreservesJSONPayloads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	task := Task{TaskID: "task-2", SessionID: "sess-1", AgentID: 1, User: "alice",
		UserMessage: "do a thing", Status: TaskRunning, MaxIteration: 10}
	require.NoError(t, repo.CreateTask(ctx, task))

	rec := Recursion{
		TraceID: "trace-1", TaskID: "task-2", IterationIndex: 0,
		Observe: "nothing yet", ActionType: ActionCallTool,
		ActionOutput: map[string]any{
			"tool_calls": []any{map[string]any{"id": "c1", "function": map[string]any{"name": "calc", "arguments": map[string]any{"a": 1.0}}}},
		},
		Status: RecursionRunning,
	}
	require.NoError(t, repo.CreateRecursion(ctx, rec))

	rec.ToolCallResults = []ToolCallResultRow{{ToolCallID: "c1", Name: "calc", Success: true, Result: 4.0}}
	rec.Status = RecursionDone
	require.NoError(t, repo.UpdateRecursion(ctx, rec))

	recs, err := repo.ListRecursions(ctx, "task-2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, RecursionDone, recs[0].Status)

	toolCalls, ok := recs[0].ActionOutput["tool_calls"].([]any)
	require.True(t, ok, "expected tool_calls to round-trip as []any, got %T", recs[0].ActionOutput["tool_calls"])
	require.Len(t, toolCalls, 1)

	results := recs[0].ToolCallResults
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].ToolCallID)
}

func TestPlanStepsReplaceIsOrderedAndAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	task := Task{TaskID: "task-3", SessionID: "sess-1", AgentID: 1, User: "alice",
		UserMessage: "plan something", Status: TaskRunning, MaxIteration: 10}
	require.NoError(t, repo.CreateTask(ctx, task))

	steps := []PlanStep{
		{TaskID: "task-3", StepID: "s1", Description: "first", Status: PlanStepPending},
		{TaskID: "task-3", StepID: "s2", Description: "second", Status: PlanStepPending},
	}
	require.NoError(t, repo.ReplacePlanSteps(ctx, "task-3", steps))

	got, err := repo.ListPlanSteps(ctx, "task-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "s1", got[0].StepID)
	require.Equal(t, "s2", got[1].StepID)

	// A later RE_PLAN drops s1 entirely.
	require.NoError(t, repo.ReplacePlanSteps(ctx, "task-3", []PlanStep{
		{TaskID: "task-3", StepID: "s2", Description: "second revised", Status: PlanStepRunning},
	}))
	got, err = repo.ListPlanSteps(ctx, "task-3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "s2", got[0].StepID)
	require.Equal(t, "second revised", got[0].Description)
}

func TestSessionAndMemoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := Session{SessionID: "sess-2", AgentID: 1, User: "bob", Status: "active",
		Subject: map[string]any{}, Object: map[string]any{}, ChatHistoryVersion: 1}
	mem := SessionMemory{SessionID: "sess-2", Version: 1}
	require.NoError(t, repo.CreateSession(ctx, sess, mem))

	got, found, err := repo.GetSession(ctx, "sess-2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "bob", got.User)

	got.Status = "closed"
	require.NoError(t, repo.UpdateSession(ctx, got))

	reloaded, found, err := repo.GetSession(ctx, "sess-2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "closed", reloaded.Status)

	gotMem, found, err := repo.GetSessionMemory(ctx, "sess-2")
	require.NoError(t, err)
	require.True(t, found)

	gotMem.MemoryItems = append(gotMem.MemoryItems, MemoryItem{ID: 1, Type: "background", Content: "likes coffee", Confidence: 0.5})
	gotMem.Version++
	require.NoError(t, repo.UpdateSessionMemory(ctx, gotMem))

	reloadedMem, found, err := repo.GetSessionMemory(ctx, "sess-2")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, reloadedMem.MemoryItems, 1)
	require.Equal(t, "likes coffee", reloadedMem.MemoryItems[0].Content)
}

func TestGetSessionNotFoundReturnsFalseNotError(t *testing.T) {
	repo := newTestRepo(t)
	_, found, err := repo.GetSession(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestListTasksBySessionAndRecursionsByTask(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := Session{SessionID: "sess-3", AgentID: 1, User: "carol", Status: "active", ChatHistoryVersion: 1}
	require.NoError(t, repo.CreateSession(ctx, sess, SessionMemory{SessionID: "sess-3", Version: 1}))

	task := Task{TaskID: "task-4", SessionID: "sess-3", AgentID: 1, User: "carol",
		UserMessage: "hello", Status: TaskCompleted, MaxIteration: 5}
	require.NoError(t, repo.CreateTask(ctx, task))
	require.NoError(t, repo.CreateRecursion(ctx, Recursion{
		TraceID: "trace-4", TaskID: "task-4", IterationIndex: 0,
		ActionType: ActionAnswer, ActionOutput: map[string]any{"answer": "hi"}, Status: RecursionDone,
	}))

	tasks, err := repo.ListTasksBySession(ctx, "sess-3")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	recs, err := repo.ListRecursionsByTask(ctx, "task-4")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "hi", recs[0].ActionOutput["answer"])
}
