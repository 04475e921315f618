package report

import (
	"fmt"
	"sort"
	"strings"

	"noesis/internal/cognition"
)

// agentMetrics derives per-agent metrics from the record's base scores and
// reasoning events. The derived scores are fixed linear functions of the
// base score and the thinking ratio.
func agentMetrics(rec *cognition.ExecutionRecord) map[string]AgentMetrics {
	metrics := make(map[string]AgentMetrics, len(rec.AgentPerformance))

	for agent, base := range rec.AgentPerformance {
		var contributions, thinking, conclusions int
		for _, ev := range rec.DetailedOutputs {
			if ev.Agent != agent {
				continue
			}
			contributions++
			switch ev.Type {
			case cognition.EventThinking:
				thinking++
			case cognition.EventConclusion:
				conclusions++
			}
		}

		ratio := 0.0
		if total := thinking + conclusions; total > 0 {
			ratio = float64(thinking) / float64(total)
		}

		metrics[agent] = AgentMetrics{
			OverallScore:      base,
			ContributionCount: contributions,
			ThinkingRatio:     ratio,
			ConsistencyScore:  clamp01(0.8 + (base-0.7)*0.5),
			InnovationScore:   clamp01(0.6 + ratio*0.4),
			EfficiencyScore:   clamp01(float64(contributions) / 10.0),
		}
	}
	return metrics
}

// agentContributions collects each agent's conclusion texts.
func agentContributions(rec *cognition.ExecutionRecord) map[string][]string {
	contributions := make(map[string][]string)
	for _, ev := range rec.DetailedOutputs {
		if ev.Type == cognition.EventConclusion {
			contributions[ev.Agent] = append(contributions[ev.Agent], ev.Content)
		}
	}
	return contributions
}

// phaseTimings maps each phase to its expected duration in milliseconds.
func phaseTimings(phases []cognition.Phase) map[string]int64 {
	timings := make(map[string]int64, len(phases))
	for _, p := range phases {
		timings[p.Name] = p.ExpectedDuration.Milliseconds()
	}
	return timings
}

// defaultPhaseDurationMS is used when no definition is available for a
// phase seen in the outputs.
const defaultPhaseDurationMS = 30000

// phaseResults groups the record's events by phase, in definition order
// when available and first-seen order otherwise. The first PhasesCompleted
// phases are completed; the rest failed.
func phaseResults(rec *cognition.ExecutionRecord, phases []cognition.Phase) []PhaseResult {
	type group struct {
		agents      map[string]bool
		outputs     int
		thinking    int
		conclusions int
	}

	groups := make(map[string]*group)
	var order []string
	for _, p := range phases {
		groups[p.Name] = &group{agents: make(map[string]bool)}
		order = append(order, p.Name)
	}
	for _, ev := range rec.DetailedOutputs {
		g, ok := groups[ev.Phase]
		if !ok {
			g = &group{agents: make(map[string]bool)}
			groups[ev.Phase] = g
			order = append(order, ev.Phase)
		}
		g.agents[ev.Agent] = true
		g.outputs++
		switch ev.Type {
		case cognition.EventThinking:
			g.thinking++
		case cognition.EventConclusion:
			g.conclusions++
		}
	}

	durations := phaseTimings(phases)
	results := make([]PhaseResult, 0, len(order))
	for i, name := range order {
		g := groups[name]
		if g.outputs == 0 && i >= rec.PhasesCompleted {
			// Phase never started.
			continue
		}

		status := "failed"
		if i < rec.PhasesCompleted {
			status = "completed"
		}
		dur, ok := durations[name]
		if !ok {
			dur = defaultPhaseDurationMS
		}

		agents := make([]string, 0, len(g.agents))
		for a := range g.agents {
			agents = append(agents, a)
		}
		sort.Strings(agents)

		results = append(results, PhaseResult{
			PhaseName:         name,
			Status:            status,
			DurationMS:        dur,
			AgentsInvolved:    agents,
			OutputCount:       g.outputs,
			ThinkingOutputs:   g.thinking,
			ConclusionOutputs: g.conclusions,
		})
	}
	return results
}

func phaseSuccessRates(results []PhaseResult) map[string]float64 {
	rates := make(map[string]float64, len(results))
	for _, p := range results {
		if p.Status == "completed" {
			rates[p.PhaseName] = 1.0
		} else {
			rates[p.PhaseName] = 0.0
		}
	}
	return rates
}

// insights applies fixed threshold rules over the record.
func insights(rec *cognition.ExecutionRecord, metrics map[string]AgentMetrics, results []PhaseResult) []string {
	var out []string

	if len(metrics) > 0 {
		var sum float64
		for _, m := range metrics {
			sum += m.OverallScore
		}
		avg := sum / float64(len(metrics))
		if avg > 0.85 {
			out = append(out, fmt.Sprintf("Exceptional agent performance achieved with %.1f%% average score", avg*100))
		}
	}

	if len(results) > 0 {
		out = append(out, fmt.Sprintf("Successfully executed %d phases with comprehensive agent engagement", len(results)))
	}

	if total := len(rec.DetailedOutputs); total > 20 {
		out = append(out, fmt.Sprintf("High agent engagement with %d total contributions", total))
	}

	if rec.Status == cognition.ExecutionCompleted {
		out = append(out, "Full cognition cycle completed successfully with all phases executed")
	}

	return out
}

// recommendations applies fixed threshold rules over the record.
func recommendations(rec *cognition.ExecutionRecord) []string {
	var out []string

	var lowPerformers []string
	for agent, score := range rec.AgentPerformance {
		if score < 0.7 {
			lowPerformers = append(lowPerformers, agent)
		}
	}
	sort.Strings(lowPerformers)
	if len(lowPerformers) > 0 {
		out = append(out, fmt.Sprintf("Consider additional training or configuration adjustment for agents: %s",
			strings.Join(lowPerformers, ", ")))
	}

	if rec.SandboxMode && rec.Succeeded() {
		out = append(out, "Consider production deployment given successful sandbox execution")
	}

	if rec.Duration.Milliseconds() > 180000 {
		out = append(out, "Optimize phase timing or agent coordination to improve execution speed")
	}

	if rec.PhasesCompleted >= 3 {
		out = append(out, "Execution pattern is stable and suitable for automation")
	}

	return out
}

// assessRisks applies fixed threshold rules producing leveled findings.
func assessRisks(rec *cognition.ExecutionRecord) []Risk {
	var risks []Risk

	var lowPerformers []string
	for agent, score := range rec.AgentPerformance {
		if score < 0.6 {
			lowPerformers = append(lowPerformers, agent)
		}
	}
	sort.Strings(lowPerformers)
	if len(lowPerformers) > 0 {
		risks = append(risks, Risk{
			Type:        "performance",
			Level:       "medium",
			Description: fmt.Sprintf("Low performance detected in agents: %s", strings.Join(lowPerformers, ", ")),
			Mitigation:  "Monitor agent configurations and consider retraining",
		})
	}

	if rec.Duration.Milliseconds() > 300000 {
		risks = append(risks, Risk{
			Type:        "timing",
			Level:       "low",
			Description: "Execution duration exceeded expected timeframe",
			Mitigation:  "Optimize agent coordination and phase transitions",
		})
	}

	if rec.Status != cognition.ExecutionCompleted {
		risks = append(risks, Risk{
			Type:        "completion",
			Level:       "high",
			Description: "Cognition execution did not complete successfully",
			Mitigation:  "Review error logs and adjust configuration parameters",
		})
	}

	return risks
}

// consensusMetrics returns agreement indicators. The agreement score grows
// with participation and saturates at 1.0; the remaining indicators are
// fixed baselines.
func consensusMetrics(rec *cognition.ExecutionRecord) map[string]float64 {
	return map[string]float64{
		"agent_agreement_score":    clamp01(0.85 + 0.15*float64(len(rec.AgentsParticipated))/5.0),
		"decision_confidence":      0.88,
		"output_consistency":       0.92,
		"recommendation_alignment": 0.87,
	}
}

// qualityMetrics computes the fixed weighted quality combinations, each
// clamped to [0,1].
func qualityMetrics(rec *cognition.ExecutionRecord, metrics map[string]AgentMetrics) QualityMetrics {
	avgPerformance := 0.7
	if len(metrics) > 0 {
		var sum float64
		for _, m := range metrics {
			sum += m.OverallScore
		}
		avgPerformance = sum / float64(len(metrics))
	}

	completionRate := 0.5
	if rec.Status == cognition.ExecutionCompleted {
		completionRate = 1.0
	}

	outputs := float64(len(rec.DetailedOutputs))
	outputQuality := clamp01(outputs / 15.0)

	durationMS := rec.Duration.Milliseconds()
	if durationMS < 30000 {
		durationMS = 30000
	}
	efficiency := 120000.0 / float64(durationMS)
	if efficiency < 0.3 {
		efficiency = 0.3
	} else if efficiency > 1.0 {
		efficiency = 1.0
	}

	success := 0.0
	if rec.Succeeded() {
		success = 1.0
	}

	return QualityMetrics{
		QualityScore:     clamp01(avgPerformance*0.4 + completionRate*0.3 + outputQuality*0.3),
		ReliabilityIndex: clamp01(completionRate*0.8 + success*0.2),
		InnovationScore:  clamp01(outputs / 20.0),
		EfficiencyRating: efficiency,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
