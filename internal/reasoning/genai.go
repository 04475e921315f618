package reasoning

import (
	"context"
	"fmt"
	"strings"

	"noesis/internal/cognition"

	"google.golang.org/genai"
)

// GenAISource generates live agent reasoning using Google's Gemini API.
// Agents share one client; the agent's profile shapes the prompt. Responses
// are parsed into deliberation events (<thinking> spans) and conclusion
// events (everything else).
type GenAISource struct {
	client *genai.Client
	model  string
}

// NewGenAISource creates a GenAI-backed reasoning source.
func NewGenAISource(apiKey, model string) (*GenAISource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAISource{client: client, model: model}, nil
}

// GenerateReasoning implements Source.
func (g *GenAISource) GenerateReasoning(ctx context.Context, agent, phase, cognitionContext, cognitionID string) ([]cognition.ReasoningEvent, error) {
	p := ProfileFor(agent)

	prompt := fmt.Sprintf(`You are %s, the %s of a multi-agent cognition system.
Your style: %s. Your focus: %s.

Context: %s (phase %q of cognition %s).

Produce your reasoning for this phase. Wrap internal deliberation in
<thinking>...</thinking> tags, one thought per tag, then state your
conclusion as plain text. Keep it under 8 thoughts.`,
		agent, p.Role, p.Style, p.Focus, cognitionContext, phase, cognitionID)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("GenAI reasoning failed for %s: %w", agent, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("GenAI returned empty reasoning for %s", agent)
	}

	return parseReasoning(agent, phase, text), nil
}

// parseReasoning splits a model response into thinking and conclusion
// events, preserving the order produced.
func parseReasoning(agent, phase, text string) []cognition.ReasoningEvent {
	ts := now()
	var events []cognition.ReasoningEvent

	rest := text
	for {
		open := strings.Index(rest, "<thinking>")
		if open < 0 {
			break
		}
		closeIdx := strings.Index(rest[open:], "</thinking>")
		if closeIdx < 0 {
			break
		}
		closeIdx += open

		// Text before the tag is conclusion material.
		if lead := strings.TrimSpace(rest[:open]); lead != "" {
			events = append(events, cognition.ReasoningEvent{
				Agent: agent, Phase: phase, Type: cognition.EventConclusion,
				Content: lead, Timestamp: ts,
			})
		}
		if thought := strings.TrimSpace(rest[open+len("<thinking>") : closeIdx]); thought != "" {
			events = append(events, cognition.ReasoningEvent{
				Agent: agent, Phase: phase, Type: cognition.EventThinking,
				Content: thought, Timestamp: ts,
			})
		}
		rest = rest[closeIdx+len("</thinking>"):]
	}

	if tail := strings.TrimSpace(rest); tail != "" {
		events = append(events, cognition.ReasoningEvent{
			Agent: agent, Phase: phase, Type: cognition.EventConclusion,
			Content: tail, Timestamp: ts,
		})
	}
	return events
}
