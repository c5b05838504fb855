package storage

import (
	"context"
	"sort"
	"sync"

	"mutsel/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.Run
	trajectories map[string]model.Trajectory
	equilibria   map[string]model.Equilibrium
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.trajectories = make(map[string]model.Trajectory)
	s.equilibria = make(map[string]model.Equilibrium)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, trajectory model.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trajectories[trajectory.RunID] = copyTrajectory(trajectory)
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) (model.Trajectory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectory, ok := s.trajectories[runID]
	if !ok {
		return model.Trajectory{}, false, nil
	}
	return copyTrajectory(trajectory), true, nil
}

func (s *MemoryStore) SaveEquilibrium(_ context.Context, equilibrium model.Equilibrium) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	equilibrium.Vector = append([]float64(nil), equilibrium.Vector...)
	s.equilibria[equilibrium.RunID] = equilibrium
	return nil
}

func (s *MemoryStore) GetEquilibrium(_ context.Context, runID string) (model.Equilibrium, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	equilibrium, ok := s.equilibria[runID]
	if !ok {
		return model.Equilibrium{}, false, nil
	}
	equilibrium.Vector = append([]float64(nil), equilibrium.Vector...)
	return equilibrium, true, nil
}

func copyTrajectory(t model.Trajectory) model.Trajectory {
	snapshots := make([][]float64, len(t.Snapshots))
	for i, snap := range t.Snapshots {
		snapshots[i] = append([]float64(nil), snap...)
	}
	t.Snapshots = snapshots
	t.Sums = append([]float64(nil), t.Sums...)
	return t
}
