package storage

import (
	"context"

	"mutsel/internal/model"
)

// Store defines persistence operations for runs, trajectories, and
// equilibrium results.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	SaveTrajectory(ctx context.Context, trajectory model.Trajectory) error
	GetTrajectory(ctx context.Context, runID string) (model.Trajectory, bool, error)
	SaveEquilibrium(ctx context.Context, equilibrium model.Equilibrium) error
	GetEquilibrium(ctx context.Context, runID string) (model.Equilibrium, bool, error)
}
