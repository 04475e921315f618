package reasoning

import (
	"context"
	"errors"
	"testing"

	"noesis/internal/cognition"

	"github.com/google/go-cmp/cmp"
)

func TestSynthesizeDeterministic(t *testing.T) {
	s := NewSynthesizer()

	a := s.Synthesize("Theory", "Analysis", "cognition_abc")
	b := s.Synthesize("Theory", "Analysis", "cognition_abc")

	normalize := func(events []cognition.ReasoningEvent) []cognition.ReasoningEvent {
		out := append([]cognition.ReasoningEvent(nil), events...)
		for i := range out {
			out[i].Timestamp = a[0].Timestamp
		}
		return out
	}
	if diff := cmp.Diff(normalize(a), normalize(b)); diff != "" {
		t.Errorf("fallback not deterministic:\n%s", diff)
	}
}

func TestSynthesizeShape(t *testing.T) {
	s := NewSynthesizer()

	for _, phase := range []string{"Analysis", "Verification", "Decision", "CustomPhase"} {
		events := s.Synthesize("Echo", phase, "cognition_x")
		if len(events) < 2 {
			t.Fatalf("phase %s produced %d events, want thoughts plus conclusion", phase, len(events))
		}
		for _, ev := range events[:len(events)-1] {
			if ev.Type != cognition.EventThinking {
				t.Errorf("phase %s: non-final event typed %s", phase, ev.Type)
			}
			if ev.Agent != "Echo" || ev.Phase != phase {
				t.Errorf("phase %s: event mislabeled: %+v", phase, ev)
			}
		}
		last := events[len(events)-1]
		if last.Type != cognition.EventConclusion {
			t.Errorf("phase %s: final event typed %s, want conclusion", phase, last.Type)
		}
	}
}

func TestSynthesizeAgentFlavoring(t *testing.T) {
	s := NewSynthesizer()

	generic := s.Synthesize("Nobody", "Analysis", "c")
	flavored := s.Synthesize("Theory", "Analysis", "c")
	if len(flavored) != len(generic)+1 {
		t.Errorf("known agent should add one flavored thought: %d vs %d", len(flavored), len(generic))
	}
}

func TestResolveLivePath(t *testing.T) {
	src := NewScriptedSource()

	out := Resolve(context.Background(), src, NewSynthesizer(), "Theory", "Analysis", "ctx", "c1")
	if out.Origin != OriginLive {
		t.Errorf("origin = %s, want live", out.Origin)
	}
	if out.Err != nil {
		t.Errorf("unexpected error: %v", out.Err)
	}
	if len(out.Events) != 4 {
		t.Errorf("scripted default should produce 4 events, got %d", len(out.Events))
	}
}

func TestResolveFallbackOnError(t *testing.T) {
	src := &ScriptedSource{FailFor: map[string]bool{"Echo": true}}

	out := Resolve(context.Background(), src, NewSynthesizer(), "Echo", "Verification", "ctx", "c1")
	if out.Origin != OriginFallback {
		t.Errorf("origin = %s, want fallback", out.Origin)
	}
	if out.Err == nil {
		t.Error("fallback outcome should carry the source error")
	}
	if len(out.Events) == 0 {
		t.Error("fallback outcome carries no events")
	}
}

func TestResolveNilSourceUsesFallback(t *testing.T) {
	out := Resolve(context.Background(), nil, NewSynthesizer(), "Theory", "Analysis", "ctx", "c1")
	if out.Origin != OriginFallback || out.Err != nil {
		t.Errorf("nil source: origin=%s err=%v, want silent fallback", out.Origin, out.Err)
	}
}

type emptySource struct{}

func (emptySource) GenerateReasoning(ctx context.Context, agent, phase, cognitionContext, cognitionID string) ([]cognition.ReasoningEvent, error) {
	return nil, nil
}

func TestResolveEmptyNoErrorIsFailure(t *testing.T) {
	out := Resolve(context.Background(), emptySource{}, NewSynthesizer(), "Theory", "Analysis", "ctx", "c1")
	if out.Origin != OriginFallback {
		t.Errorf("empty live result should degrade to fallback, got %s", out.Origin)
	}
	if len(out.Events) == 0 {
		t.Error("fallback events missing")
	}
}

func TestScriptedSourceHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptedSource().GenerateReasoning(ctx, "Theory", "Analysis", "ctx", "c1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseReasoningSplitsThinkingSpans(t *testing.T) {
	text := `<thinking>first thought</thinking>
<thinking>second thought</thinking>
The conclusion stands.`

	events := parseReasoning("Theory", "Analysis", text)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != cognition.EventThinking || events[0].Content != "first thought" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != cognition.EventThinking || events[1].Content != "second thought" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Type != cognition.EventConclusion || events[2].Content != "The conclusion stands." {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestParseReasoningInterleavedText(t *testing.T) {
	text := `Preface statement. <thinking>inner</thinking> Final word.`

	events := parseReasoning("Echo", "Decision", text)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != cognition.EventConclusion || events[0].Content != "Preface statement." {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Type != cognition.EventThinking {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Type != cognition.EventConclusion || events[2].Content != "Final word." {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestProfileForUnknownAgent(t *testing.T) {
	p := ProfileFor("Stranger")
	if p.Role != "General Agent" {
		t.Errorf("unknown agent role = %q", p.Role)
	}
	if got := ProfileFor("Theory"); got.Role != "Theoretical Analyst" {
		t.Errorf("Theory role = %q", got.Role)
	}
}
