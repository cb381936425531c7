//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kassonlab/brer-md/internal/pairdata"
	"github.com/kassonlab/brer-md/internal/rundata"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRunState(ctx context.Context, state rundata.State) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if err := state.Validate(); err != nil {
		return err
	}
	payload, err := EncodeRunState(state)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO run_states (run_id, schema_version, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, state.RunID, state.SchemaVersion, payload)
	return err
}

func (s *SQLiteStore) GetRunState(ctx context.Context, runID string) (rundata.State, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return rundata.State{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM run_states WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rundata.State{}, false, nil
		}
		return rundata.State{}, false, err
	}

	state, err := DecodeRunState(payload)
	if err != nil {
		return rundata.State{}, false, fmt.Errorf("decode run state %s: %w", runID, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) ListRunIDs(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT run_id FROM run_states ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) SavePairData(ctx context.Context, runID string, pairs pairdata.Collection) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodePairData(pairs)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO pair_data (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetPairData(ctx context.Context, runID string) (pairdata.Collection, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM pair_data WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	pairs, err := DecodePairData(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode pair data %s: %w", runID, err)
	}
	return pairs, true, nil
}

func (s *SQLiteStore) AppendPhaseRecord(ctx context.Context, runID string, record rundata.PhaseRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if err := record.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO phase_history (run_id, payload)
		VALUES (?, ?)
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetPhaseHistory(ctx context.Context, runID string) ([]rundata.PhaseRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM phase_history WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var history []rundata.PhaseRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		var record rundata.PhaseRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, false, fmt.Errorf("decode phase record for %s: %w", runID, err)
		}
		if record.SchemaVersion != rundata.SchemaVersion {
			return nil, false, ErrVersionMismatch
		}
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if history == nil {
		return nil, false, nil
	}
	return history, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_states (
			run_id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS pair_data (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS phase_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
