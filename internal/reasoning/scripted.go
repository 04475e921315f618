package reasoning

import (
	"context"
	"fmt"

	"noesis/internal/cognition"
)

// ScriptedSource is a deterministic in-process reasoning source for offline
// runs and tests. Each call yields a fixed deliberation/conclusion sequence
// derived from the agent's profile; optional per-agent failures let tests
// exercise the fallback path.
type ScriptedSource struct {
	// FailFor lists agents whose calls return an error.
	FailFor map[string]bool
	// EventsPerAgent is the number of thinking events before the conclusion.
	// Zero means the default of 3.
	EventsPerAgent int
}

// NewScriptedSource creates a scripted source with defaults.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{}
}

// GenerateReasoning implements Source.
func (s *ScriptedSource) GenerateReasoning(ctx context.Context, agent, phase, cognitionContext, cognitionID string) ([]cognition.ReasoningEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FailFor[agent] {
		return nil, fmt.Errorf("scripted failure for agent %s", agent)
	}

	n := s.EventsPerAgent
	if n <= 0 {
		n = 3
	}

	p := ProfileFor(agent)
	ts := now()
	events := make([]cognition.ReasoningEvent, 0, n+1)
	for i := 0; i < n; i++ {
		events = append(events, cognition.ReasoningEvent{
			Agent:     agent,
			Phase:     phase,
			Type:      cognition.EventThinking,
			Content:   fmt.Sprintf("%s step %d: %s applied to %s", p.Role, i+1, p.Style, cognitionContext),
			Timestamp: ts,
		})
	}
	events = append(events, cognition.ReasoningEvent{
		Agent:     agent,
		Phase:     phase,
		Type:      cognition.EventConclusion,
		Content:   fmt.Sprintf("%s conclusion for %s: focus on %s", agent, phase, p.Focus),
		Timestamp: ts,
	})
	return events, nil
}
