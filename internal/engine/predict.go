package engine

import (
	"time"

	"noesis/internal/logging"
	"noesis/internal/reputation"

	"github.com/google/uuid"
)

// ActionPlan describes a planned course of action for outcome prediction.
type ActionPlan struct {
	Description string   `json:"description"`
	Agents      []string `json:"agents"`
}

// PredictedOutcome is one branch of a prediction with its probability.
type PredictedOutcome struct {
	Probability           float64  `json:"probability"`
	Outcome               string   `json:"outcome"`
	Details               string   `json:"details"`
	RiskFactors           []string `json:"risk_factors"`
	MitigationSuggestions []string `json:"mitigation_suggestions"`
}

// Prediction is the full outcome forecast for an action plan.
type Prediction struct {
	PredictionID    string             `json:"prediction_id"`
	Plan            ActionPlan         `json:"action_plan"`
	Outcomes        []PredictedOutcome `json:"predicted_outcomes"`
	ConfidenceLevel float64            `json:"confidence_level"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
}

// PredictOutcome forecasts success/partial/failure probabilities for a plan.
// The base success rate of 0.7 shifts with the mean reputation of the
// participating agents: neutral reputation leaves it unchanged, each 100
// points above or below neutral moves it by 0.2.
func (e *Engine) PredictOutcome(plan ActionPlan, confidence float64) *Prediction {
	if confidence <= 0 {
		confidence = 0.8
	}

	baseSuccess := 0.7
	if len(plan.Agents) > 0 && e.reputation != nil {
		scores := e.reputation.SnapshotFor(plan.Agents)
		var sum float64
		for _, s := range scores {
			sum += s
		}
		avg := sum / float64(len(plan.Agents))
		baseSuccess += (avg - reputation.NeutralScore) / 100 * 0.2
	}

	successP := clampRange(baseSuccess, 0.1, 0.9)
	partialP := 0.25
	failureP := clampRange(1-baseSuccess-partialP, 0.05, 0.3)

	p := &Prediction{
		PredictionID:    "prediction_" + uuid.NewString(),
		Plan:            plan,
		ConfidenceLevel: confidence,
		AnalyzedAt:      time.Now().UTC(),
		Outcomes: []PredictedOutcome{
			{
				Probability:           successP,
				Outcome:               "success",
				Details:               "Plan likely to succeed with current configuration",
				RiskFactors:           []string{},
				MitigationSuggestions: []string{},
			},
			{
				Probability:           partialP,
				Outcome:               "partial_success",
				Details:               "May require additional coordination or resources",
				RiskFactors:           []string{"Agent availability", "Resource constraints"},
				MitigationSuggestions: []string{"Add backup agents", "Increase timeout"},
			},
			{
				Probability:           failureP,
				Outcome:               "failure",
				Details:               "Risk of failure due to various factors",
				RiskFactors:           []string{"Agent conflicts", "Technical issues", "Timeout"},
				MitigationSuggestions: []string{"Review agent selection", "Add monitoring"},
			},
		},
	}

	logging.Engine("Prediction %s: success=%.2f partial=%.2f failure=%.2f agents=%d",
		p.PredictionID, successP, partialP, failureP, len(plan.Agents))
	return p
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
