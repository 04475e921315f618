// Package cognition defines the core data model for noesis: cognition
// definitions (named, ordered sequences of agent phases), frozen execution
// records, and the registry/archive that own them.
//
// The registry and archive are explicit stores with their own mutation
// discipline; callers never touch shared maps directly. Definitions are
// never deleted, only retired.
package cognition

import (
	"time"
)

// Status represents the lifecycle status of a cognition definition.
type Status string

const (
	StatusIdle      Status = "idle"      // Registered, never run or between runs
	StatusRunning   Status = "running"   // Currently executing
	StatusCompleted Status = "completed" // Last run completed all phases
	StatusFailed    Status = "failed"    // Last run failed a phase
	StatusPaused    Status = "paused"    // Reserved for cooperative suspension
	StatusRetired   Status = "retired"   // Permanently archived, never scheduled again
)

// ExecutionStatus represents the outcome of one execution.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed" // All phases completed
	ExecutionFailed    ExecutionStatus = "failed"    // A modeled phase failure stopped the run
	ExecutionError     ExecutionStatus = "error"     // Engine fault, not a modeled outcome
)

// EventType tags one unit of agent output during a phase.
type EventType string

const (
	EventThinking   EventType = "thinking"   // Deliberation
	EventConclusion EventType = "conclusion" // Stated conclusion
)

// Phase is one step of a cognition: participating agents and an expected
// duration. Order within Definition.Phases is the execution order.
type Phase struct {
	Name             string        `json:"name"`
	ExpectedDuration time.Duration `json:"expected_duration"`
	Agents           []string      `json:"agents"`
}

// Definition is a named, ordered sequence of phases representing one
// orchestrated multi-agent task.
type Definition struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Agents    []string          `json:"agents"`
	Phases    []Phase           `json:"phases"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// clone returns a deep copy of the definition. Phases, agents, and metadata
// never share backing storage with the original.
func (d *Definition) clone() *Definition {
	c := *d
	c.Agents = append([]string(nil), d.Agents...)
	c.Phases = make([]Phase, len(d.Phases))
	for i, p := range d.Phases {
		c.Phases[i] = Phase{
			Name:             p.Name,
			ExpectedDuration: p.ExpectedDuration,
			Agents:           append([]string(nil), p.Agents...),
		}
	}
	c.Metadata = make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// ReasoningEvent is one unit of agent output during a phase.
type ReasoningEvent struct {
	Agent     string    `json:"agent"`
	Phase     string    `json:"phase"`
	Type      EventType `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionRecord is the frozen outcome of running one cognition once.
// It is created at run start, mutated only by the engine invocation that
// owns it, and frozen at run end.
type ExecutionRecord struct {
	ExecutionID     string           `json:"execution_id"`
	CognitionID     string           `json:"cognition_id"` // Dangling references are tolerated
	CognitionName   string           `json:"cognition_name"`
	SandboxMode     bool             `json:"sandbox_mode"`
	Status          ExecutionStatus  `json:"status"`
	PhasesCompleted int              `json:"phases_completed"`
	TotalPhases     int              `json:"total_phases"`
	// Duration is the sum of completed phases' expected durations, not wall
	// clock: sandbox runs may complete in zero real time.
	Duration           time.Duration      `json:"duration"`
	AgentPerformance   map[string]float64 `json:"agent_performance"` // Agent -> mean score in [0,1]
	AgentsParticipated []string           `json:"agents_participated"`
	DetailedOutputs    []ReasoningEvent   `json:"detailed_outputs"`
	Trace              []string           `json:"trace"`
	StartTime          time.Time          `json:"start_time"`
	EndTime            time.Time          `json:"end_time"`
	ErrorMessage       string             `json:"error_message,omitempty"`

	// Attached after the fact via the archive's Score operation.
	Score    *int   `json:"score,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	ScoredAt string `json:"scored_at,omitempty"`

	// Filled once a report has been generated for this execution.
	ReportID string `json:"report_id,omitempty"`
}

// Succeeded reports whether every phase completed.
func (r *ExecutionRecord) Succeeded() bool {
	return r.Status == ExecutionCompleted
}

// MemoryArtifact is an opaque memory entry attached to a cognition phase
// for traceability.
type MemoryArtifact struct {
	ID          string            `json:"id"`
	CognitionID string            `json:"cognition_id"`
	Phase       string            `json:"phase"`
	Data        map[string]string `json:"data"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Snapshot is an immutable audit bundle: the definition plus every execution
// record and memory artifact that references it, plus a point-in-time copy
// of reputation scores for its agents.
type Snapshot struct {
	SnapshotID string             `json:"snapshot_id"`
	Definition *Definition        `json:"definition"`
	Executions []*ExecutionRecord `json:"executions"`
	Memories   []*MemoryArtifact  `json:"memories"`
	Reputation map[string]float64 `json:"reputation"`
	CreatedAt  time.Time          `json:"created_at"`
}
