package planstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tsukumogami/provisor/internal/perr"
)

// Store persists State snapshots under a directory, one file per plan
// id, guarded by an in-process mutex plus an flock-backed file lock so
// concurrent provisor invocations against the same state dir don't
// tear each other's writes.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a Store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("planstate: create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(planID string) string {
	return filepath.Join(s.dir, planID+".json")
}

// Save atomically writes state, overwriting any existing snapshot for
// the same plan id: write to a sibling temp file, fsync it, then
// rename over the target (rename is atomic on the same filesystem).
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := newFileLock(s.path(state.PlanID) + ".lock")
	if err := lock.lockExclusive(); err != nil {
		return fmt.Errorf("planstate: lock %s: %w", state.PlanID, err)
	}
	defer lock.unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("planstate: marshal %s: %w", state.PlanID, err)
	}

	target := s.path(state.PlanID)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("planstate: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("planstate: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("planstate: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("planstate: close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("planstate: rename temp file: %w", err)
	}
	return nil
}

// Load reads the snapshot for planID, failing with KindPlanNotFound if
// absent and KindPlanCorrupted if the file can't be parsed.
func (s *Store) Load(planID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(planID)
}

func (s *Store) loadLocked(planID string) (*State, error) {
	data, err := os.ReadFile(s.path(planID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.New(perr.KindPlanNotFound, "planstate", fmt.Sprintf("no plan state for %q", planID)).
				WithContext("plan_id", planID)
		}
		return nil, fmt.Errorf("planstate: read %s: %w", planID, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, perr.Wrap(perr.KindPlanCorrupted, "planstate", fmt.Sprintf("plan state %q is corrupted", planID), err).
			WithContext("plan_id", planID)
	}
	return &st, nil
}

// ListPending returns every stored plan with status in
// {running, paused, failed}, sorted by UpdatedAt descending (most
// recently touched first).
func (s *Store) ListPending() ([]*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("planstate: read state dir: %w", err)
	}

	var pending []*State
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		planID := e.Name()[:len(e.Name())-len(".json")]
		st, err := s.loadLocked(planID)
		if err != nil {
			continue // skip unreadable/corrupt snapshots rather than fail the whole listing
		}
		switch st.Status {
		case StatusRunning, StatusPaused, StatusFailed:
			pending = append(pending, st)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.After(pending[j].UpdatedAt)
	})
	return pending, nil
}

// Reap transitions every plan still marked "running" whose recorded
// OwnerPID is no longer alive to "paused", so a crashed provisor
// process doesn't leave a plan permanently stuck in "running". Called
// once at orchestrator startup.
func (s *Store) Reap() (int, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(s.dir)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("planstate: read state dir: %w", err)
	}

	reaped := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		planID := e.Name()[:len(e.Name())-len(".json")]
		st, err := s.Load(planID)
		if err != nil {
			continue
		}
		if st.Status != StatusRunning {
			continue
		}
		if st.OwnerPID != 0 && processAlive(st.OwnerPID) {
			continue
		}
		st.Status = StatusPaused
		if err := s.Save(st); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}
