package engine

import (
	"context"
	"testing"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/reasoning"
	"noesis/internal/reputation"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (a transitive dependency) starts a background worker
	// goroutine in its package init that cannot be stopped by test code.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestEngine(src reasoning.Source) (*Engine, *cognition.Registry, *cognition.Archive) {
	reg := cognition.NewRegistry()
	arc := cognition.NewArchive()
	rep := reputation.NewStore()
	e := New(reg, arc, rep, src)
	// No real sleeping or randomness in tests.
	e.sleep = func(ctx context.Context, d time.Duration) {}
	e.randFloat = func() float64 { return 0.5 }
	return e, reg, arc
}

func registerThreePhase(t *testing.T, reg *cognition.Registry) *cognition.Definition {
	t.Helper()
	def, err := reg.Register(&cognition.Definition{
		Name:   "Test Cognition",
		Agents: []string{"Theory", "Echo", "Verdict"},
		Phases: []cognition.Phase{
			{Name: "Analysis", ExpectedDuration: 30 * time.Second, Agents: []string{"Theory"}},
			{Name: "Verification", ExpectedDuration: 20 * time.Second, Agents: []string{"Echo"}},
			{Name: "Decision", ExpectedDuration: 10 * time.Second, Agents: []string{"Verdict"}},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return def
}

func TestRunSandboxCompletesAllPhases(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.Status != cognition.ExecutionCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.PhasesCompleted != 3 || rec.TotalPhases != 3 {
		t.Errorf("phases = %d/%d, want 3/3", rec.PhasesCompleted, rec.TotalPhases)
	}
	if rec.Duration != 60*time.Second {
		t.Errorf("duration = %v, want 60s (sum of expected phase durations)", rec.Duration)
	}
	if len(rec.AgentsParticipated) != 3 {
		t.Errorf("participants = %v, want 3 agents", rec.AgentsParticipated)
	}
	for agent, score := range rec.AgentPerformance {
		if score < 0.85 || score > 1.0 {
			t.Errorf("%s performance %.3f outside [0.85,1.0]", agent, score)
		}
	}

	got, err := reg.Get(def.ID)
	if err != nil {
		t.Fatalf("get after run: %v", err)
	}
	if got.Status != cognition.StatusCompleted {
		t.Errorf("definition status = %s, want completed", got.Status)
	}
}

func TestRunSandboxDeterministicOutcome(t *testing.T) {
	// With a scripted source and pinned randomness, two sandbox runs of the
	// same definition agree on everything except identifiers and timestamps.
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	rec1, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	rec2, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if rec1.PhasesCompleted != rec2.PhasesCompleted || rec1.Status != rec2.Status {
		t.Errorf("outcome diverged: %d/%s vs %d/%s",
			rec1.PhasesCompleted, rec1.Status, rec2.PhasesCompleted, rec2.Status)
	}
	if len(rec1.DetailedOutputs) != len(rec2.DetailedOutputs) {
		t.Errorf("output counts diverged: %d vs %d", len(rec1.DetailedOutputs), len(rec2.DetailedOutputs))
	}
	for agent, score := range rec1.AgentPerformance {
		if rec2.AgentPerformance[agent] != score {
			t.Errorf("%s performance diverged: %.3f vs %.3f", agent, score, rec2.AgentPerformance[agent])
		}
	}
}

func TestRunUnknownCognitionSynthesizesDefault(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())

	rec, err := e.Run(context.Background(), "cognition_mystery", true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.TotalPhases != 3 {
		t.Errorf("default definition should have 3 phases, got %d", rec.TotalPhases)
	}
	if rec.Status != cognition.ExecutionCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}

	// The synthesized definition is registered for future runs.
	def, err := reg.Get("cognition_mystery")
	if err != nil {
		t.Fatalf("default definition not registered: %v", err)
	}
	if len(def.Phases) != 3 {
		t.Errorf("registered default has %d phases, want 3", len(def.Phases))
	}
}

func TestRunEmptyCognitionCompletesTrivially(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def, err := reg.Register(&cognition.Definition{Name: "Empty"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != cognition.ExecutionCompleted {
		t.Errorf("empty cognition status = %s, want completed", rec.Status)
	}
	if rec.PhasesCompleted != 0 || rec.TotalPhases != 0 || rec.Duration != 0 {
		t.Errorf("empty cognition accounting: %d/%d, duration %v",
			rec.PhasesCompleted, rec.TotalPhases, rec.Duration)
	}
}

func TestRunEventOrdering(t *testing.T) {
	e, reg, _ := newTestEngine(&reasoning.ScriptedSource{EventsPerAgent: 2})
	def, err := reg.Register(&cognition.Definition{
		Name: "Ordered",
		Phases: []cognition.Phase{
			{Name: "First", ExpectedDuration: time.Second, Agents: []string{"Theory", "Echo"}},
			{Name: "Second", ExpectedDuration: time.Second, Agents: []string{"Verdict"}},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Phase order, then agent order within a phase, then event order within
	// an agent turn. 3 events per agent turn (2 thinking + 1 conclusion).
	wantTurns := []struct {
		phase string
		agent string
	}{
		{"First", "Theory"},
		{"First", "Echo"},
		{"Second", "Verdict"},
	}
	if len(rec.DetailedOutputs) != len(wantTurns)*3 {
		t.Fatalf("output count = %d, want %d", len(rec.DetailedOutputs), len(wantTurns)*3)
	}
	for i, ev := range rec.DetailedOutputs {
		turn := wantTurns[i/3]
		if ev.Phase != turn.phase || ev.Agent != turn.agent {
			t.Errorf("output %d = %s/%s, want %s/%s", i, ev.Phase, ev.Agent, turn.phase, turn.agent)
		}
		if i%3 == 2 && ev.Type != cognition.EventConclusion {
			t.Errorf("output %d should be the turn's conclusion, got %s", i, ev.Type)
		}
	}
}

func TestRunFallbackOnSingleAgentFailure(t *testing.T) {
	src := &reasoning.ScriptedSource{FailFor: map[string]bool{"Echo": true}}
	e, reg, _ := newTestEngine(src)
	def := registerThreePhase(t, reg)

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The failing agent degrades to fallback output; the run still completes.
	if rec.Status != cognition.ExecutionCompleted {
		t.Errorf("status = %s, want completed despite agent failure", rec.Status)
	}
	echoEvents := 0
	for _, ev := range rec.DetailedOutputs {
		if ev.Agent == "Echo" {
			echoEvents++
		}
	}
	if echoEvents == 0 {
		t.Error("failing agent produced no fallback events")
	}
}

func TestRunPhaseFailureStopsLoop(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	// Non-sandbox with randFloat below the failure rate: every phase fails.
	e.SetPolicy(Policy{FailureRate: 0.9, PerfMin: 0.85, PerfMax: 1.0, DefaultTimeout: time.Minute})
	e.randFloat = func() float64 { return 0.1 }

	rec, err := e.Run(context.Background(), def.ID, false, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.Status != cognition.ExecutionFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if rec.PhasesCompleted != 0 {
		t.Errorf("phases completed = %d, want 0", rec.PhasesCompleted)
	}
	if rec.Duration != 0 {
		t.Errorf("duration = %v, want 0 for no completed phases", rec.Duration)
	}
	// Later phases never produced output.
	for _, ev := range rec.DetailedOutputs {
		if ev.Phase != "Analysis" {
			t.Errorf("unexpected output from phase %s after failure", ev.Phase)
		}
	}
}

func TestRunMonotonicAccounting(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	// Fail on the third phase only.
	calls := 0
	e.randFloat = func() float64 {
		calls++
		// phaseSucceeds draws once per phase, then samplePerformance draws
		// once per agent; phases have one agent each here, so the phase
		// draws are calls 1, 3, 5.
		if calls == 5 {
			return 0.0
		}
		return 0.99
	}
	e.SetPolicy(Policy{FailureRate: 0.5, PerfMin: 0.85, PerfMax: 1.0, DefaultTimeout: time.Minute})

	rec, err := e.Run(context.Background(), def.ID, false, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.Status != cognition.ExecutionFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if rec.PhasesCompleted != 2 {
		t.Errorf("phases completed = %d, want 2", rec.PhasesCompleted)
	}
	if rec.Duration != 50*time.Second {
		t.Errorf("duration = %v, want 50s (Analysis 30s + Verification 20s)", rec.Duration)
	}
}

func TestRunDeadlineYieldsError(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Deadline already gone when the loop starts.

	rec, err := e.Run(ctx, def.ID, true, time.Minute)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rec.Status != cognition.ExecutionError {
		t.Errorf("status = %s, want error", rec.Status)
	}
	if rec.PhasesCompleted != 0 {
		t.Errorf("phases completed = %d, want 0 on error", rec.PhasesCompleted)
	}
	if rec.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	found := false
	for _, line := range rec.Trace {
		if len(line) >= 5 && line[:5] == "Error" {
			found = true
		}
	}
	if !found {
		t.Error("trace missing error line")
	}
}

func TestRunArchivesRecord(t *testing.T) {
	e, reg, arc := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := arc.Get(rec.ExecutionID)
	if err != nil {
		t.Fatalf("archived record missing: %v", err)
	}
	if got.Status != rec.Status || got.PhasesCompleted != rec.PhasesCompleted {
		t.Errorf("archived record differs: %+v vs %+v", got, rec)
	}
}

func TestRunLeavesReputationUntouched(t *testing.T) {
	// Runs only read reputation (for predictions); adjusting scores is an
	// explicit caller operation, never a side effect of execution.
	reg := cognition.NewRegistry()
	arc := cognition.NewArchive()
	rep := reputation.NewStore()
	e := New(reg, arc, rep, reasoning.NewScriptedSource())
	e.sleep = func(ctx context.Context, d time.Duration) {}
	e.randFloat = func() float64 { return 0.5 }
	def := registerThreePhase(t, reg)

	completed, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("sandbox run: %v", err)
	}

	// A failing non-sandbox run must not move scores either.
	e.SetPolicy(Policy{FailureRate: 0.9, PerfMin: 0.85, PerfMax: 1.0, DefaultTimeout: time.Minute})
	e.randFloat = func() float64 { return 0.1 }
	failed, err := e.Run(context.Background(), def.ID, false, 0)
	if err != nil {
		t.Fatalf("failing run: %v", err)
	}
	if completed.Status != cognition.ExecutionCompleted || failed.Status != cognition.ExecutionFailed {
		t.Fatalf("unexpected outcomes: %s, %s", completed.Status, failed.Status)
	}

	for _, agent := range []string{"Theory", "Echo", "Verdict"} {
		if r := rep.Get(agent); r.Score != reputation.NeutralScore {
			t.Errorf("%s score = %.1f after runs, want untouched neutral %.1f",
				agent, r.Score, reputation.NeutralScore)
		}
		if events := rep.EventsFor(agent); len(events) != 0 {
			t.Errorf("%s has %d reputation events after runs, want none", agent, len(events))
		}
	}
}

func TestRunRetiredCognitionRejected(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)
	if err := reg.Retire(def.ID, "obsolete"); err != nil {
		t.Fatalf("retire: %v", err)
	}

	if _, err := e.Run(context.Background(), def.ID, true, 0); err == nil {
		t.Error("expected error running a retired cognition")
	}
}

func TestRunEmitsProgressEvents(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)
	events := e.Events()

	rec, err := e.Run(context.Background(), def.ID, true, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var types []EventType
drain:
	for {
		select {
		case ev := <-events:
			if ev.ExecutionID != rec.ExecutionID {
				t.Errorf("event for unexpected execution %s", ev.ExecutionID)
			}
			types = append(types, ev.Type)
		default:
			break drain
		}
	}

	if len(types) == 0 || types[0] != EventRunStarted {
		t.Fatalf("first event = %v, want run_started", types)
	}
	if types[len(types)-1] != EventRunFinished {
		t.Errorf("last event = %s, want run_finished", types[len(types)-1])
	}
}

func TestWhyFailedOnFailedRun(t *testing.T) {
	e, reg, _ := newTestEngine(reasoning.NewScriptedSource())
	def := registerThreePhase(t, reg)

	e.SetPolicy(Policy{FailureRate: 0.9, PerfMin: 0.85, PerfMax: 1.0, DefaultTimeout: time.Minute})
	e.randFloat = func() float64 { return 0.1 }

	rec, err := e.Run(context.Background(), def.ID, false, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	pm, err := e.WhyFailed(rec.ExecutionID)
	if err != nil {
		t.Fatalf("postmortem: %v", err)
	}
	if len(pm.FailurePoints) == 0 || len(pm.RootCauses) == 0 {
		t.Errorf("empty postmortem for failed run: %+v", pm)
	}
	if len(pm.ExecutionTrace) == 0 {
		t.Error("postmortem missing execution trace")
	}
}

func TestWhyFailedUnknownExecution(t *testing.T) {
	e, _, _ := newTestEngine(nil)
	if _, err := e.WhyFailed("exec_ghost"); !cognition.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestTestHypothesisConfidenceBuckets(t *testing.T) {
	e, _, _ := newTestEngine(nil)

	tests := []struct {
		draw               float64
		wantConfidence     float64
		wantVerdict        string
		wantContradictions int
	}{
		// confidence = 0.6 + draw*0.35
		{1.0, 0.95, "supported", 0},
		{0.5, 0.775, "supported", 1},
		{0.1, 0.635, "inconclusive", 1},
	}
	for _, tt := range tests {
		e.randFloat = func() float64 { return tt.draw }

		h := e.TestHypothesis("rates will fall next quarter", map[string]string{"window": "Q4"}, "")
		if h.Confidence < tt.wantConfidence-1e-9 || h.Confidence > tt.wantConfidence+1e-9 {
			t.Errorf("draw %.2f: confidence = %.3f, want %.3f", tt.draw, h.Confidence, tt.wantConfidence)
		}
		if want := "Hypothesis " + tt.wantVerdict + " by simulated testing"; h.Conclusion != want {
			t.Errorf("draw %.2f: conclusion = %q, want %q", tt.draw, h.Conclusion, want)
		}
		if len(h.Contradictions) != tt.wantContradictions {
			t.Errorf("draw %.2f: %d contradictions, want %d", tt.draw, len(h.Contradictions), tt.wantContradictions)
		}
		if len(h.Evidence) != 3 {
			t.Errorf("draw %.2f: %d evidence lines, want 3", tt.draw, len(h.Evidence))
		}
		if h.Methodology != "simulation" {
			t.Errorf("empty methodology should default to simulation, got %q", h.Methodology)
		}
	}
}

func TestTestHypothesisDetachesData(t *testing.T) {
	e, _, _ := newTestEngine(nil)

	data := map[string]string{"fact": "original"}
	h := e.TestHypothesis("long hypothesis text that exceeds the thirty character evidence cap", data, "backtest")
	data["fact"] = "mutated"

	if h.TestData["fact"] != "original" {
		t.Error("test result aliased caller data")
	}
	if h.Methodology != "backtest" {
		t.Errorf("methodology = %q", h.Methodology)
	}
	want := "Data point supports long hypothesis text that exce..."
	if h.Evidence[0] != want {
		t.Errorf("evidence[0] = %q, want %q", h.Evidence[0], want)
	}
}

func TestPredictOutcomeReputationShift(t *testing.T) {
	reg := cognition.NewRegistry()
	arc := cognition.NewArchive()
	rep := reputation.NewStore()
	e := New(reg, arc, rep, nil)

	neutral := e.PredictOutcome(ActionPlan{Agents: []string{"Theory"}}, 0.8)
	rep.Set("Theory", 100, "perfect record")
	high := e.PredictOutcome(ActionPlan{Agents: []string{"Theory"}}, 0.8)
	rep.Set("Theory", 0, "collapsed")
	low := e.PredictOutcome(ActionPlan{Agents: []string{"Theory"}}, 0.8)

	if !(high.Outcomes[0].Probability > neutral.Outcomes[0].Probability) {
		t.Errorf("high reputation should raise success probability: %.2f vs %.2f",
			high.Outcomes[0].Probability, neutral.Outcomes[0].Probability)
	}
	if !(low.Outcomes[0].Probability < neutral.Outcomes[0].Probability) {
		t.Errorf("low reputation should lower success probability: %.2f vs %.2f",
			low.Outcomes[0].Probability, neutral.Outcomes[0].Probability)
	}
	for _, p := range []*Prediction{neutral, high, low} {
		for _, o := range p.Outcomes {
			if o.Probability < 0.05 || o.Probability > 0.9 {
				t.Errorf("probability %.2f outside clamp range", o.Probability)
			}
		}
	}
}
