package cognition

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"noesis/internal/logging"

	"github.com/google/uuid"
)

// Archive owns frozen execution records and memory artifacts. Inserts are
// append-only; the only post-freeze mutations are the explicit Score and
// report-reference operations, both performed under the archive's lock.
type Archive struct {
	mu         sync.RWMutex
	executions map[string]*ExecutionRecord
	memories   map[string]*MemoryArtifact
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{
		executions: make(map[string]*ExecutionRecord),
		memories:   make(map[string]*MemoryArtifact),
	}
}

// Put stores a frozen execution record. The archive takes ownership of the
// record; the engine must not mutate it after handing it over.
func (a *Archive) Put(rec *ExecutionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.ExecutionID == "" {
		return fmt.Errorf("execution record missing id")
	}
	if _, exists := a.executions[rec.ExecutionID]; exists {
		return fmt.Errorf("execution %s already archived", rec.ExecutionID)
	}
	a.executions[rec.ExecutionID] = rec
	return nil
}

// Get returns the execution record, or NotFoundError. The record is the
// archive's frozen copy, shared across callers: treat it as read-only and
// go through Score or SetReportID for the sanctioned mutations.
func (a *Archive) Get(executionID string) (*ExecutionRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, ok := a.executions[executionID]
	if !ok {
		return nil, &NotFoundError{Kind: "execution", ID: executionID}
	}
	return rec, nil
}

// List returns all archived execution records, most recent first. The
// slice is fresh but the records are the archive's own frozen copies;
// callers must not mutate them.
func (a *Archive) List() []*ExecutionRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*ExecutionRecord, 0, len(a.executions))
	for _, rec := range a.executions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Score attaches a human or automated rating and free-text feedback to a
// prior execution record. Scores are clamped to [-100, 100].
func (a *Archive) Score(executionID string, score int, feedback string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.executions[executionID]
	if !ok {
		return &NotFoundError{Kind: "execution", ID: executionID}
	}

	if score > 100 {
		score = 100
	} else if score < -100 {
		score = -100
	}
	rec.Score = &score
	rec.Feedback = feedback
	rec.ScoredAt = time.Now().UTC().Format(time.RFC3339)

	logging.Registry("Scored execution %s: %d", executionID, score)
	return nil
}

// SetReportID records the report generated for an execution.
func (a *Archive) SetReportID(executionID, reportID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.executions[executionID]
	if !ok {
		return &NotFoundError{Kind: "execution", ID: executionID}
	}
	rec.ReportID = reportID
	return nil
}

// InjectMemory attaches a memory artifact to a cognition phase for
// traceability and returns its id. The cognition id is not validated;
// dangling references are tolerated.
func (a *Archive) InjectMemory(cognitionID, phase string, data map[string]string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := &MemoryArtifact{
		ID:          "memory_" + uuid.NewString(),
		CognitionID: cognitionID,
		Phase:       phase,
		Data:        make(map[string]string, len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	for k, v := range data {
		m.Data[k] = v
	}
	a.memories[m.ID] = m
	return m.ID
}

// RestoreMemory re-admits a previously persisted memory artifact, keeping
// its original id and timestamp. Used when rehydrating from storage.
func (a *Archive) RestoreMemory(m *MemoryArtifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m.ID == "" {
		return fmt.Errorf("memory artifact missing id")
	}
	if _, exists := a.memories[m.ID]; exists {
		return fmt.Errorf("memory %s already archived", m.ID)
	}
	a.memories[m.ID] = m
	return nil
}

// MemoriesFor returns the memory artifacts referencing a cognition.
func (a *Archive) MemoriesFor(cognitionID string) []*MemoryArtifact {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*MemoryArtifact
	for _, m := range a.memories {
		if m.CognitionID == cognitionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ExecutionsFor returns the execution records referencing a cognition,
// oldest first. Same read-only contract as Get and List.
func (a *Archive) ExecutionsFor(cognitionID string) []*ExecutionRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*ExecutionRecord
	for _, rec := range a.executions {
		if rec.CognitionID == cognitionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ReputationReader is the slice of the reputation store that snapshots need.
type ReputationReader interface {
	SnapshotFor(agents []string) map[string]float64
}

// BuildSnapshot assembles an immutable audit bundle for a cognition: the
// definition, every execution record and memory artifact referencing it,
// and a point-in-time copy of reputation scores for its agents. Never
// mutates state.
func BuildSnapshot(reg *Registry, arc *Archive, rep ReputationReader, cognitionID string) (*Snapshot, error) {
	def, err := reg.Get(cognitionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		SnapshotID: "snapshot_" + uuid.NewString(),
		Definition: def,
		Executions: arc.ExecutionsFor(cognitionID),
		Memories:   arc.MemoriesFor(cognitionID),
		CreatedAt:  time.Now().UTC(),
	}
	if rep != nil {
		snap.Reputation = rep.SnapshotFor(def.Agents)
	} else {
		snap.Reputation = map[string]float64{}
	}
	return snap, nil
}
