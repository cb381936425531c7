package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"
)

type MemoryStore struct {
	mu      sync.RWMutex
	states  map[string]rundata.State
	pairs   map[string]pairdata.Collection
	history map[string][]rundata.PhaseRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = make(map[string]rundata.State)
	s.pairs = make(map[string]pairdata.Collection)
	s.history = make(map[string][]rundata.PhaseRecord)
	return nil
}

func (s *MemoryStore) SaveRunState(_ context.Context, state rundata.State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.RunID] = copyState(state)
	return nil
}

func (s *MemoryStore) GetRunState(_ context.Context, runID string) (rundata.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[runID]
	if !ok {
		return rundata.State{}, false, nil
	}
	return copyState(state), true, nil
}

func (s *MemoryStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SavePairData(_ context.Context, runID string, pairs pairdata.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairs[runID] = copyPairs(pairs)
	return nil
}

func (s *MemoryStore) GetPairData(_ context.Context, runID string) (pairdata.Collection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs, ok := s.pairs[runID]
	if !ok {
		return nil, false, nil
	}
	return copyPairs(pairs), true, nil
}

func (s *MemoryStore) AppendPhaseRecord(_ context.Context, runID string, record rundata.PhaseRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append(s.history[runID], copyRecord(record))
	return nil
}

func (s *MemoryStore) GetPhaseHistory(_ context.Context, runID string) ([]rundata.PhaseRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]rundata.PhaseRecord, 0, len(history))
	for _, record := range history {
		copied = append(copied, copyRecord(record))
	}
	return copied, true, nil
}

func copyState(st rundata.State) rundata.State {
	copied := st
	copied.Pairs = make(map[string]rundata.PairParams, len(st.Pairs))
	for name, p := range st.Pairs {
		copied.Pairs[name] = p
	}
	return copied
}

func copyPairs(pairs pairdata.Collection) pairdata.Collection {
	copied := make(pairdata.Collection, len(pairs))
	for name, p := range pairs {
		p.Bins = append([]float64(nil), p.Bins...)
		p.Distribution = append([]float64(nil), p.Distribution...)
		p.Sites = append([]int(nil), p.Sites...)
		copied[name] = p
	}
	return copied
}

func copyRecord(record rundata.PhaseRecord) rundata.PhaseRecord {
	copied := record
	copied.Alphas = make(map[string]float64, len(record.Alphas))
	for name, v := range record.Alphas {
		copied.Alphas[name] = v
	}
	copied.Targets = make(map[string]float64, len(record.Targets))
	for name, v := range record.Targets {
		copied.Targets[name] = v
	}
	return copied
}
