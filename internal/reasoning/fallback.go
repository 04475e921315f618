package reasoning

import (
	"fmt"
	"strings"

	"noesis/internal/cognition"
)

// Synthesizer produces minimal fallback reasoning traces from static
// per-phase templates. It is deterministic for a given (agent, phase,
// cognition) triple so degraded runs stay reproducible.
type Synthesizer struct{}

// NewSynthesizer creates a fallback synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize generates a fallback reasoning trace for one agent in one
// phase: a few deliberation events followed by one stated conclusion.
func (s *Synthesizer) Synthesize(agent, phase, cognitionID string) []cognition.ReasoningEvent {
	p := ProfileFor(agent)

	var thoughts []string
	switch phase {
	case "Analysis":
		thoughts = []string{
			fmt.Sprintf("Initiating %s for cognition %s", strings.ToLower(p.Role), shortID(cognitionID)),
			fmt.Sprintf("Focus area: %s", p.Focus),
			fmt.Sprintf("Applying %s approach to the problem", p.Style),
			"Generating initial hypotheses and frameworks",
			"Evaluating data patterns and relationships",
		}
	case "Verification":
		thoughts = []string{
			"Cross-referencing analysis results",
			"Searching historical precedent database",
			"Validating hypothesis against known patterns",
			"Weighing evidence strength and reliability",
			"Documenting verification findings",
		}
	case "Decision":
		thoughts = []string{
			"Synthesizing all available evidence",
			"Evaluating decision criteria and constraints",
			"Risk assessment and impact analysis complete",
			"Preparing final recommendation",
			"Decision rationale documented",
		}
	default:
		thoughts = []string{
			fmt.Sprintf("%s engaging with %s phase", p.Role, strings.ToLower(phase)),
			fmt.Sprintf("Focusing on %s", p.Focus),
			fmt.Sprintf("Processing with %s methodology", p.Style),
			"Contributing specialized expertise",
			"Coordinating with other agents",
		}
	}

	// Agent-specific flavoring, matching the built-in roster.
	switch agent {
	case "Theory":
		thoughts = append(thoughts, "Developing theoretical framework for optimal outcomes")
	case "Echo":
		thoughts = append(thoughts, "Cross-referencing with historical precedents")
	case "Verdict":
		thoughts = append(thoughts, "Compliance verified, proceeding with confidence")
	case "Sentinel":
		thoughts = append(thoughts, "Security scan complete, no threats detected")
	case "Lyra":
		thoughts = append(thoughts, "Orchestrating seamless agent coordination")
	}

	ts := now()
	events := make([]cognition.ReasoningEvent, 0, len(thoughts)+1)
	for _, content := range thoughts {
		events = append(events, cognition.ReasoningEvent{
			Agent:     agent,
			Phase:     phase,
			Type:      cognition.EventThinking,
			Content:   content,
			Timestamp: ts,
		})
	}
	events = append(events, cognition.ReasoningEvent{
		Agent:     agent,
		Phase:     phase,
		Type:      cognition.EventConclusion,
		Content:   fmt.Sprintf("%s completed %s analysis for cognition %s", agent, phase, shortID(cognitionID)),
		Timestamp: ts,
	})
	return events
}

// shortID trims a generated id to its leading segment for readable traces.
func shortID(id string) string {
	if i := strings.IndexByte(id, '_'); i > 0 {
		return id[:i]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
