package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/logging"

	"github.com/google/uuid"
)

// Postmortem is the failure analysis of one frozen execution.
type Postmortem struct {
	AnalysisID      string    `json:"analysis_id"`
	ExecutionID     string    `json:"execution_id"`
	FailurePoints   []string  `json:"failure_points"`
	RootCauses      []string  `json:"root_causes"`
	Recommendations []string  `json:"recommendations"`
	ExecutionTrace  []string  `json:"execution_trace"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// WhyFailed traces the logic path that led to a failed or errored
// execution. Succeeded executions yield an empty analysis.
func (e *Engine) WhyFailed(executionID string) (*Postmortem, error) {
	rec, err := e.archive.Get(executionID)
	if err != nil {
		return nil, err
	}

	pm := &Postmortem{
		AnalysisID:  "analysis_" + uuid.NewString(),
		ExecutionID: executionID,
		AnalyzedAt:  time.Now().UTC(),
	}

	if !rec.Succeeded() {
		if rec.PhasesCompleted < rec.TotalPhases {
			pm.FailurePoints = append(pm.FailurePoints,
				fmt.Sprintf("Failed at phase %d/%d", rec.PhasesCompleted+1, rec.TotalPhases))
			pm.RootCauses = append(pm.RootCauses, "Phase execution failure")
			pm.Recommendations = append(pm.Recommendations, "Review phase configuration and agent assignments")
		}

		var lowPerformers []string
		for agent, score := range rec.AgentPerformance {
			if score < 0.7 {
				lowPerformers = append(lowPerformers, agent)
			}
		}
		sort.Strings(lowPerformers)
		if len(lowPerformers) > 0 {
			pm.FailurePoints = append(pm.FailurePoints,
				fmt.Sprintf("Low performance from agents: %s", strings.Join(lowPerformers, ", ")))
			pm.RootCauses = append(pm.RootCauses, "Agent performance issues")
			pm.Recommendations = append(pm.Recommendations, "Consider agent replacement or additional training")
		}

		if rec.Status == cognition.ExecutionError {
			pm.FailurePoints = append(pm.FailurePoints, "Engine fault: "+rec.ErrorMessage)
			pm.RootCauses = append(pm.RootCauses, "Execution aborted outside modeled outcomes")
			pm.Recommendations = append(pm.Recommendations, "Optimize phase execution or increase timeout")
		}
	}

	pm.ExecutionTrace = []string{
		fmt.Sprintf("Execution %s started", executionID),
		fmt.Sprintf("Cognition: %s", rec.CognitionID),
		fmt.Sprintf("Phases completed: %d/%d", rec.PhasesCompleted, rec.TotalPhases),
		fmt.Sprintf("Duration: %s", rec.Duration),
		fmt.Sprintf("Status: %s", rec.Status),
	}
	for _, point := range pm.FailurePoints {
		pm.ExecutionTrace = append(pm.ExecutionTrace, "FAILURE: "+point)
	}

	logging.Engine("Postmortem %s for execution %s: %d failure points",
		pm.AnalysisID, executionID, len(pm.FailurePoints))
	return pm, nil
}
