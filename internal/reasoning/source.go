// Package reasoning provides the agent reasoning source used by the phase
// execution engine: an interface to live LLM-backed reasoning, a
// deterministic scripted source for offline runs and tests, and a static
// fallback synthesizer used when a live call fails.
//
// The engine consumes reasoning through Resolve, which returns a typed
// outcome (live or fallback) instead of signaling expected failures through
// errors: a single agent's failure degrades, it never aborts a phase.
package reasoning

import (
	"context"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/logging"
)

// Source produces an ordered sequence of reasoning events for one agent in
// one phase. Implementations may fail; callers recover through Resolve.
type Source interface {
	GenerateReasoning(ctx context.Context, agent, phase, cognitionContext, cognitionID string) ([]cognition.ReasoningEvent, error)
}

// Origin tags where an outcome's events came from.
type Origin string

const (
	OriginLive     Origin = "live"     // Produced by the configured source
	OriginFallback Origin = "fallback" // Synthesized after a source failure
)

// Outcome is the typed result of requesting reasoning for one agent: the
// events plus their origin, and the source error when the fallback path was
// taken. Err is informational; an outcome always carries usable events.
type Outcome struct {
	Agent  string
	Phase  string
	Origin Origin
	Events []cognition.ReasoningEvent
	Err    error
}

// Resolve requests reasoning from src and degrades to the synthesizer on
// failure. The returned outcome always has at least the fallback events; a
// source that returns no events and no error is treated as a failure.
func Resolve(ctx context.Context, src Source, fb *Synthesizer, agent, phase, cognitionContext, cognitionID string) Outcome {
	if src != nil {
		events, err := src.GenerateReasoning(ctx, agent, phase, cognitionContext, cognitionID)
		if err == nil && len(events) > 0 {
			return Outcome{Agent: agent, Phase: phase, Origin: OriginLive, Events: events}
		}
		if err != nil {
			logging.ReasoningWarn("Reasoning source failed for %s in %s: %v (using fallback)", agent, phase, err)
		}
		return Outcome{
			Agent:  agent,
			Phase:  phase,
			Origin: OriginFallback,
			Events: fb.Synthesize(agent, phase, cognitionID),
			Err:    err,
		}
	}

	return Outcome{
		Agent:  agent,
		Phase:  phase,
		Origin: OriginFallback,
		Events: fb.Synthesize(agent, phase, cognitionID),
	}
}

// now returns the event timestamp. Split out so tests can pin it.
var now = func() time.Time { return time.Now().UTC() }
