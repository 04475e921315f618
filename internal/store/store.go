// Package store implements SQLite persistence for noesis: frozen execution
// records, generated reports, memory artifacts, and reputation events.
// Writes for frozen records are append-only.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/logging"
	"noesis/internal/report"
	"noesis/internal/reputation"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database. A single connection is used; SQLite
// serializes writers anyway and one connection avoids lock contention.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New initializes the SQLite database at the given path.
func New(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store init")
	defer timer.Stop()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// NORMAL is safe with WAL and much faster than the FULL default.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Store initialized at %s", path)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		execution_id     TEXT PRIMARY KEY,
		cognition_id     TEXT NOT NULL,
		cognition_name   TEXT,
		sandbox_mode     INTEGER NOT NULL,
		status           TEXT NOT NULL,
		phases_completed INTEGER NOT NULL,
		total_phases     INTEGER NOT NULL,
		duration_ms      INTEGER NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		error_message    TEXT,
		report_id        TEXT,
		record_json      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_cognition ON executions(cognition_id);

	CREATE TABLE IF NOT EXISTS reports (
		report_id              TEXT PRIMARY KEY,
		execution_id           TEXT NOT NULL,
		cognition_id           TEXT NOT NULL,
		quality_score          REAL NOT NULL,
		merkle_root            TEXT NOT NULL,
		verification_signature TEXT NOT NULL,
		ledger_tx_hash         TEXT,
		content_cid            TEXT,
		generated_at           TEXT NOT NULL,
		report_json            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_execution ON reports(execution_id);

	CREATE TABLE IF NOT EXISTS memory_artifacts (
		memory_id    TEXT PRIMARY KEY,
		cognition_id TEXT NOT NULL,
		phase        TEXT,
		data_json    TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_cognition ON memory_artifacts(cognition_id);

	CREATE TABLE IF NOT EXISTS reputation_events (
		event_id   TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL,
		event_type TEXT NOT NULL,
		outcome    TEXT,
		impact     REAL NOT NULL,
		old_score  REAL NOT NULL,
		new_score  REAL NOT NULL,
		timestamp  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reputation_agent ON reputation_events(agent_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveExecution persists a frozen execution record. Records are immutable;
// saving an existing id fails.
func (s *Store) SaveExecution(rec *cognition.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", rec.ExecutionID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (execution_id, cognition_id, cognition_name, sandbox_mode,
			status, phases_completed, total_phases, duration_ms, start_time, end_time,
			error_message, report_id, record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ExecutionID, rec.CognitionID, rec.CognitionName, boolInt(rec.SandboxMode),
		string(rec.Status), rec.PhasesCompleted, rec.TotalPhases, rec.Duration.Milliseconds(),
		rec.StartTime.Format(time.RFC3339Nano), rec.EndTime.Format(time.RFC3339Nano),
		rec.ErrorMessage, rec.ReportID, string(raw))
	if err != nil {
		logging.StoreError("Failed to save execution %s: %v", rec.ExecutionID, err)
		return fmt.Errorf("save execution %s: %w", rec.ExecutionID, err)
	}

	logging.StoreDebug("Saved execution %s (%s)", rec.ExecutionID, rec.Status)
	return nil
}

// LoadExecution loads a persisted execution record by id.
func (s *Store) LoadExecution(executionID string) (*cognition.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(`SELECT record_json FROM executions WHERE execution_id = ?`, executionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &cognition.NotFoundError{Kind: "execution", ID: executionID}
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}

	var rec cognition.ExecutionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("parse execution %s: %w", executionID, err)
	}
	return &rec, nil
}

// ListExecutions returns persisted records for a cognition (or all when
// cognitionID is empty), most recent first, up to limit (0 = no limit).
func (s *Store) ListExecutions(cognitionID string, limit int) ([]*cognition.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT record_json FROM executions`
	var args []interface{}
	if cognitionID != "" {
		query += ` WHERE cognition_id = ?`
		args = append(args, cognitionID)
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*cognition.ExecutionRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec cognition.ExecutionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logging.StoreError("Skipping corrupt execution row: %v", err)
			continue
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// SetExecutionReportID links a generated report to its execution row.
func (s *Store) SetExecutionReportID(executionID, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE executions SET report_id = ? WHERE execution_id = ?`, reportID, executionID)
	if err != nil {
		return fmt.Errorf("link report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &cognition.NotFoundError{Kind: "execution", ID: executionID}
	}
	return nil
}

// ScoreExecution attaches a rating and feedback to a persisted record.
// Mirrors the archive's Score semantics: the score is clamped to [-100,100].
func (s *Store) ScoreExecution(executionID string, score int, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT record_json FROM executions WHERE execution_id = ?`, executionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return &cognition.NotFoundError{Kind: "execution", ID: executionID}
	}
	if err != nil {
		return fmt.Errorf("score execution %s: %w", executionID, err)
	}

	var rec cognition.ExecutionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("parse execution %s: %w", executionID, err)
	}

	if score > 100 {
		score = 100
	} else if score < -100 {
		score = -100
	}
	rec.Score = &score
	rec.Feedback = feedback
	rec.ScoredAt = time.Now().UTC().Format(time.RFC3339)

	updated, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", executionID, err)
	}
	if _, err := s.db.Exec(`UPDATE executions SET record_json = ? WHERE execution_id = ?`,
		string(updated), executionID); err != nil {
		return fmt.Errorf("score execution %s: %w", executionID, err)
	}
	return nil
}

// SaveReport indexes a generated report. Implements report.Index.
func (s *Store) SaveReport(r *report.CognitionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", r.ReportID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO reports (report_id, execution_id, cognition_id, quality_score,
			merkle_root, verification_signature, ledger_tx_hash, content_cid,
			generated_at, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReportID, r.ExecutionID, r.CognitionID, r.Quality.QualityScore,
		r.MerkleRoot, r.VerificationSignature, r.LedgerTxHash, r.ContentCID,
		r.GeneratedAt.Format(time.RFC3339Nano), string(raw))
	if err != nil {
		logging.StoreError("Failed to index report %s: %v", r.ReportID, err)
		return fmt.Errorf("index report %s: %w", r.ReportID, err)
	}
	return nil
}

// LoadReport loads an indexed report by id.
func (s *Store) LoadReport(reportID string) (*report.CognitionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(`SELECT report_json FROM reports WHERE report_id = ?`, reportID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &cognition.NotFoundError{Kind: "report", ID: reportID}
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}

	var r report.CognitionReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", reportID, err)
	}
	return &r, nil
}

// SaveMemoryArtifact persists a memory artifact.
func (s *Store) SaveMemoryArtifact(m *cognition.MemoryArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("marshal memory %s: %w", m.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO memory_artifacts (memory_id, cognition_id, phase, data_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.CognitionID, m.Phase, string(data), m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save memory %s: %w", m.ID, err)
	}
	return nil
}

// MemoryArtifactsFor returns a cognition's persisted memory artifacts in
// creation order.
func (s *Store) MemoryArtifactsFor(cognitionID string) ([]*cognition.MemoryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT memory_id, cognition_id, phase, data_json, created_at
		FROM memory_artifacts WHERE cognition_id = ? ORDER BY created_at ASC`, cognitionID)
	if err != nil {
		return nil, fmt.Errorf("load memories for %s: %w", cognitionID, err)
	}
	defer rows.Close()

	var out []*cognition.MemoryArtifact
	for rows.Next() {
		var m cognition.MemoryArtifact
		var data, ts string
		if err := rows.Scan(&m.ID, &m.CognitionID, &m.Phase, &data, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
			return nil, fmt.Errorf("decode memory %s: %w", m.ID, err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			m.CreatedAt = parsed
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// RecordReputationEvent persists one reputation adjustment. Implements
// reputation.Recorder.
func (s *Store) RecordReputationEvent(ev reputation.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO reputation_events (event_id, agent_id, event_type, outcome,
			impact, old_score, new_score, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.AgentID, ev.EventType, ev.Outcome,
		ev.Impact, ev.OldScore, ev.NewScore, ev.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record reputation event %s: %w", ev.EventID, err)
	}
	return nil
}

// ReputationAgents returns every agent with at least one persisted
// reputation event, sorted.
func (s *Store) ReputationAgents() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT agent_id FROM reputation_events ORDER BY agent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load reputation agents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var agent string
		if err := rows.Scan(&agent); err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

// ReputationEventsFor returns an agent's persisted events, oldest first.
func (s *Store) ReputationEventsFor(agentID string) ([]reputation.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT event_id, agent_id, event_type, outcome, impact, old_score, new_score, timestamp
		FROM reputation_events WHERE agent_id = ? ORDER BY timestamp ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load reputation events: %w", err)
	}
	defer rows.Close()

	var out []reputation.Event
	for rows.Next() {
		var ev reputation.Event
		var ts string
		if err := rows.Scan(&ev.EventID, &ev.AgentID, &ev.EventType, &ev.Outcome,
			&ev.Impact, &ev.OldScore, &ev.NewScore, &ts); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = parsed
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
