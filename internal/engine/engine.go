// Package engine runs cognitions: strictly ordered phases of strictly
// ordered agent turns, with modeled phase failure, reasoning fallback, and
// frozen execution records archived at the end of every run.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/logging"
	"noesis/internal/reasoning"

	"github.com/google/uuid"
)

// Policy holds the hot-reloadable execution knobs.
type Policy struct {
	// FailureRate is the per-phase failure probability outside sandbox mode.
	FailureRate float64
	// Pacing is the delay between agent turns outside sandbox mode.
	Pacing time.Duration
	// PerfMin/PerfMax bound per-phase agent performance samples.
	PerfMin float64
	PerfMax float64
	// DefaultTimeout applies when Run is called with no timeout.
	DefaultTimeout time.Duration
}

// DefaultPolicy returns the stock execution policy.
func DefaultPolicy() Policy {
	return Policy{
		FailureRate:    0.02,
		Pacing:         200 * time.Millisecond,
		PerfMin:        0.85,
		PerfMax:        1.0,
		DefaultTimeout: 5 * time.Minute,
	}
}

// EventType classifies engine progress events.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventPhaseStarted   EventType = "phase_started"
	EventAgentOutput    EventType = "agent_output"
	EventPhaseCompleted EventType = "phase_completed"
	EventPhaseFailed    EventType = "phase_failed"
	EventRunFinished    EventType = "run_finished"
)

// Event is one progress notification from a running execution.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	CognitionID string    `json:"cognition_id"`
	Phase       string    `json:"phase,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Engine executes cognitions against the registry and archive.
type Engine struct {
	registry   *cognition.Registry
	archive    *cognition.Archive
	reputation reputationReader
	source     reasoning.Source
	fallback   *reasoning.Synthesizer

	mu     sync.RWMutex
	policy Policy

	// randFloat is swappable for deterministic tests.
	randFloat func() float64
	// sleep is swappable so pacing does not slow tests down.
	sleep func(ctx context.Context, d time.Duration)

	events chan Event
}

// reputationReader is the slice of the reputation store the engine needs.
// The engine only reads scores; adjustments stay with external callers.
type reputationReader interface {
	SnapshotFor(agents []string) map[string]float64
}

// New creates an engine. source may be nil, in which case every agent turn
// uses the fallback synthesizer.
func New(reg *cognition.Registry, arc *cognition.Archive, rep reputationReader, src reasoning.Source) *Engine {
	return &Engine{
		registry:   reg,
		archive:    arc,
		reputation: rep,
		source:     src,
		fallback:   reasoning.NewSynthesizer(),
		policy:     DefaultPolicy(),
		randFloat:  rand.Float64,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

// SetPolicy swaps the execution policy. Safe to call while runs are active;
// in-flight runs pick up the new values at their next phase.
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
	logging.Engine("Policy updated: failure_rate=%.3f pacing=%v perf=[%.2f,%.2f]",
		p.FailureRate, p.Pacing, p.PerfMin, p.PerfMax)
}

// Policy returns the current execution policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Events returns a channel of progress events, creating it on first call.
// Consumers that fall behind lose events rather than blocking execution.
func (e *Engine) Events() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		e.events = make(chan Event, 64)
	}
	return e.events
}

// emitEvent delivers a progress event without ever blocking the run.
func (e *Engine) emitEvent(ev Event) {
	e.mu.RLock()
	ch := e.events
	e.mu.RUnlock()
	if ch == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	select {
	case ch <- ev:
	default:
		// Consumer is behind; drop rather than stall the phase loop.
	}
}

// Run executes a cognition to completion and returns the frozen record.
// Unknown cognition ids get the default three-phase definition registered
// on the fly. timeout <= 0 uses the policy default; breaching the deadline
// yields a record with status error.
func (e *Engine) Run(ctx context.Context, cognitionID string, sandbox bool, timeout time.Duration) (*cognition.ExecutionRecord, error) {
	def, err := e.registry.Get(cognitionID)
	if err != nil {
		if !cognition.IsNotFound(err) {
			return nil, err
		}
		def, err = e.registry.Register(defaultDefinition(cognitionID))
		if err != nil {
			return nil, fmt.Errorf("register default cognition: %w", err)
		}
		logging.Engine("Unknown cognition %s, synthesized default definition", cognitionID)
	}

	if err := e.registry.SetStatus(def.ID, cognition.StatusRunning); err != nil {
		return nil, fmt.Errorf("cognition %s cannot run: %w", def.ID, err)
	}

	if timeout <= 0 {
		timeout = e.Policy().DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := &cognition.ExecutionRecord{
		ExecutionID:      "exec_" + uuid.NewString(),
		CognitionID:      def.ID,
		CognitionName:    def.Name,
		SandboxMode:      sandbox,
		TotalPhases:      len(def.Phases),
		AgentPerformance: make(map[string]float64),
		StartTime:        time.Now().UTC(),
	}

	logging.Engine("Run %s starting: cognition=%s sandbox=%v phases=%d timeout=%v",
		rec.ExecutionID, def.ID, sandbox, len(def.Phases), timeout)
	e.emitEvent(Event{Type: EventRunStarted, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
		Message: fmt.Sprintf("Initializing cognition %s", def.ID)})

	e.executePhases(runCtx, rec, def)
	e.finalize(rec, def)

	if err := e.archive.Put(rec); err != nil {
		return nil, fmt.Errorf("archive execution %s: %w", rec.ExecutionID, err)
	}
	return rec, nil
}

// executePhases runs the phase loop, converting deadline breaches and
// panics into status error on the record.
func (e *Engine) executePhases(ctx context.Context, rec *cognition.ExecutionRecord, def *cognition.Definition) {
	defer func() {
		if r := recover(); r != nil {
			e.markError(rec, fmt.Sprintf("unexpected fault: %v", r))
		}
	}()

	rec.Trace = append(rec.Trace,
		fmt.Sprintf("Initializing cognition %s", def.ID),
		fmt.Sprintf("%d phases planned with %d agents", len(def.Phases), len(participantSet(def))))

	perfSamples := make(map[string][]float64)

	for i, phase := range def.Phases {
		if err := ctx.Err(); err != nil {
			e.markError(rec, fmt.Sprintf("deadline exceeded before phase %s: %v", phase.Name, err))
			return
		}

		agents := phase.Agents
		if len(agents) == 0 {
			agents = def.Agents
		}

		rec.Trace = append(rec.Trace,
			fmt.Sprintf("Phase %d/%d: %s", i+1, len(def.Phases), phase.Name),
			fmt.Sprintf("Active agents: %s", strings.Join(agents, ", ")))
		e.emitEvent(Event{Type: EventPhaseStarted, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
			Phase: phase.Name, Message: fmt.Sprintf("Phase %d/%d: %s", i+1, len(def.Phases), phase.Name)})

		for _, agent := range agents {
			if err := ctx.Err(); err != nil {
				e.markError(rec, fmt.Sprintf("deadline exceeded during phase %s: %v", phase.Name, err))
				return
			}
			e.runAgent(ctx, rec, def, phase.Name, agent)
			if !rec.SandboxMode {
				e.sleep(ctx, e.Policy().Pacing)
			}
		}

		if e.phaseSucceeds(rec.SandboxMode) {
			rec.PhasesCompleted++
			rec.Duration += phase.ExpectedDuration
			rec.Trace = append(rec.Trace, fmt.Sprintf("Phase %s completed successfully", phase.Name))
			e.emitEvent(Event{Type: EventPhaseCompleted, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
				Phase: phase.Name, Message: fmt.Sprintf("Phase %s completed successfully", phase.Name)})

			for _, agent := range agents {
				score := e.samplePerformance()
				perfSamples[agent] = append(perfSamples[agent], score)
				rec.Trace = append(rec.Trace, fmt.Sprintf("%s performance: %.2f", agent, score))
			}
		} else {
			rec.Trace = append(rec.Trace, fmt.Sprintf("Phase %s failed during execution", phase.Name))
			e.emitEvent(Event{Type: EventPhaseFailed, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
				Phase: phase.Name, Message: fmt.Sprintf("Phase %s failed during execution", phase.Name)})
			logging.EngineWarn("Run %s: phase %s failed", rec.ExecutionID, phase.Name)
			break
		}
	}

	for agent, samples := range perfSamples {
		var sum float64
		for _, s := range samples {
			sum += s
		}
		rec.AgentPerformance[agent] = sum / float64(len(samples))
	}
}

// runAgent executes one agent turn: reasoning source with typed fallback,
// events appended in production order.
func (e *Engine) runAgent(ctx context.Context, rec *cognition.ExecutionRecord, def *cognition.Definition, phase, agent string) {
	rec.Trace = append(rec.Trace, fmt.Sprintf("%s starting reasoning...", agent))

	cognitionContext := fmt.Sprintf("Cognition %s - %s phase", def.ID, phase)
	outcome := reasoning.Resolve(ctx, e.source, e.fallback, agent, phase, cognitionContext, def.ID)

	if outcome.Origin == reasoning.OriginFallback && outcome.Err != nil {
		rec.Trace = append(rec.Trace,
			fmt.Sprintf("%s reasoning failed, using fallback: %v", agent, outcome.Err))
	}

	for _, ev := range outcome.Events {
		switch ev.Type {
		case cognition.EventThinking:
			rec.Trace = append(rec.Trace, fmt.Sprintf("%s <thinking>: %s", agent, ev.Content))
		default:
			rec.Trace = append(rec.Trace, fmt.Sprintf("%s: %s", agent, ev.Content))
		}
		rec.DetailedOutputs = append(rec.DetailedOutputs, ev)
		e.emitEvent(Event{Type: EventAgentOutput, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
			Phase: phase, Agent: agent, Message: ev.Content})
	}
}

// finalize freezes the record, updates the registry status, and emits the
// closing events. Reputation is never touched here; score adjustments are an
// explicit caller operation.
func (e *Engine) finalize(rec *cognition.ExecutionRecord, def *cognition.Definition) {
	rec.EndTime = time.Now().UTC()

	if rec.Status != cognition.ExecutionError {
		if rec.PhasesCompleted == rec.TotalPhases {
			rec.Status = cognition.ExecutionCompleted
		} else {
			rec.Status = cognition.ExecutionFailed
		}
	}

	rec.AgentsParticipated = participatedAgents(rec)

	defStatus := cognition.StatusFailed
	if rec.Succeeded() {
		defStatus = cognition.StatusCompleted
	}
	if err := e.registry.SetStatus(def.ID, defStatus); err != nil {
		logging.EngineWarn("Run %s: failed to update cognition status: %v", rec.ExecutionID, err)
	}

	avg := 0.0
	if len(rec.AgentPerformance) > 0 {
		var sum float64
		for _, s := range rec.AgentPerformance {
			sum += s
		}
		avg = sum / float64(len(rec.AgentPerformance))
	}

	rec.Trace = append(rec.Trace,
		"Run complete",
		fmt.Sprintf("Success: %v", rec.Succeeded()),
		fmt.Sprintf("Phases completed: %d/%d", rec.PhasesCompleted, rec.TotalPhases),
		fmt.Sprintf("Total duration: %s", rec.Duration),
		fmt.Sprintf("Average performance: %.2f", avg))

	logging.Engine("Run %s finished: status=%s phases=%d/%d avg_perf=%.2f",
		rec.ExecutionID, rec.Status, rec.PhasesCompleted, rec.TotalPhases, avg)
	e.emitEvent(Event{Type: EventRunFinished, ExecutionID: rec.ExecutionID, CognitionID: def.ID,
		Message: fmt.Sprintf("Run finished with status %s", rec.Status)})
}

// markError puts the record into the error state: no phase credit, message
// preserved in the trace.
func (e *Engine) markError(rec *cognition.ExecutionRecord, msg string) {
	rec.Status = cognition.ExecutionError
	rec.PhasesCompleted = 0
	rec.Duration = 0
	rec.ErrorMessage = msg
	rec.Trace = append(rec.Trace, "Error during execution: "+msg)
	logging.EngineWarn("Run %s errored: %s", rec.ExecutionID, msg)
}

// phaseSucceeds models phase failure. Sandbox runs always succeed.
func (e *Engine) phaseSucceeds(sandbox bool) bool {
	if sandbox {
		return true
	}
	return e.randFloat() > e.Policy().FailureRate
}

// samplePerformance draws one agent performance score from the policy range.
func (e *Engine) samplePerformance() float64 {
	p := e.Policy()
	return p.PerfMin + e.randFloat()*(p.PerfMax-p.PerfMin)
}

// defaultDefinition is registered for unknown cognition ids: the stock
// Analysis/Verification/Decision sequence.
func defaultDefinition(id string) *cognition.Definition {
	return &cognition.Definition{
		ID:     id,
		Name:   fmt.Sprintf("Default Cognition %s", id),
		Agents: []string{"Theory", "Echo", "Verdict"},
		Phases: []cognition.Phase{
			{Name: "Analysis", ExpectedDuration: 30 * time.Second, Agents: []string{"Theory"}},
			{Name: "Verification", ExpectedDuration: 20 * time.Second, Agents: []string{"Echo"}},
			{Name: "Decision", ExpectedDuration: 10 * time.Second, Agents: []string{"Verdict"}},
		},
	}
}

// participantSet collects the distinct agents across all phases.
func participantSet(def *cognition.Definition) map[string]bool {
	set := make(map[string]bool)
	for _, phase := range def.Phases {
		agents := phase.Agents
		if len(agents) == 0 {
			agents = def.Agents
		}
		for _, a := range agents {
			set[a] = true
		}
	}
	return set
}

// participatedAgents lists agents that produced output or earned a score,
// sorted for stable records.
func participatedAgents(rec *cognition.ExecutionRecord) []string {
	set := make(map[string]bool)
	for _, ev := range rec.DetailedOutputs {
		set[ev.Agent] = true
	}
	for agent := range rec.AgentPerformance {
		set[agent] = true
	}
	agents := make([]string, 0, len(set))
	for a := range set {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}
