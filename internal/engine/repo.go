package engine

import (
	"context"

	"github.com/codeready-toolchain/tarsy/internal/store"
)

// Repo is the persistence boundary the engine needs. The concrete
// pgx-backed implementation lives in internal/store; tests substitute
// an in-memory fake, matching spec.md §9's "explicit dependency passed
// into constructors" guidance (no package-level singleton).
type Repo interface {
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	UpdateTask(ctx context.Context, task store.Task) error

	CreateRecursion(ctx context.Context, rec store.Recursion) error
	UpdateRecursion(ctx context.Context, rec store.Recursion) error
	ListRecursions(ctx context.Context, taskID string) ([]store.Recursion, error)

	ReplacePlanSteps(ctx context.Context, taskID string, steps []store.PlanStep) error
	ListPlanSteps(ctx context.Context, taskID string) ([]store.PlanStep, error)
}
