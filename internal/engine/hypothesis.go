package engine

import (
	"fmt"
	"time"

	"noesis/internal/logging"

	"github.com/google/uuid"
)

// HypothesisTest is the outcome of running simulated logic over a
// hypothesis and its supporting data.
type HypothesisTest struct {
	TestID         string            `json:"test_id"`
	Hypothesis     string            `json:"hypothesis"`
	TestData       map[string]string `json:"test_data"`
	Methodology    string            `json:"methodology"`
	Confidence     float64           `json:"confidence"`
	Evidence       []string          `json:"evidence"`
	Contradictions []string          `json:"contradictions"`
	Conclusion     string            `json:"conclusion"`
	TestedAt       time.Time         `json:"tested_at"`
}

// TestHypothesis evaluates a hypothesis against hypothetical data. The
// confidence draw lands in [0.6, 0.95]; evidence is always produced, while
// contradictions accumulate as confidence drops below the 0.8 and 0.6
// thresholds. Conclusions bucket at >0.7 supported, >0.4 inconclusive,
// contradicted otherwise.
func (e *Engine) TestHypothesis(hypothesis string, testData map[string]string, methodology string) *HypothesisTest {
	if methodology == "" {
		methodology = "simulation"
	}

	confidence := 0.6 + e.randFloat()*0.35

	evidence := []string{
		fmt.Sprintf("Data point supports %s...", truncate(hypothesis, 30)),
		"Historical precedent aligns with hypothesis",
		fmt.Sprintf("Agent consensus score: %.1f%%", confidence*100),
	}

	var contradictions []string
	if confidence < 0.8 {
		contradictions = append(contradictions, "Some data points show variance")
	}
	if confidence < 0.6 {
		contradictions = append(contradictions, "Limited historical support")
	}

	verdict := "contradicted"
	switch {
	case confidence > 0.7:
		verdict = "supported"
	case confidence > 0.4:
		verdict = "inconclusive"
	}

	data := make(map[string]string, len(testData))
	for k, v := range testData {
		data[k] = v
	}

	h := &HypothesisTest{
		TestID:         "test_" + uuid.NewString(),
		Hypothesis:     hypothesis,
		TestData:       data,
		Methodology:    methodology,
		Confidence:     confidence,
		Evidence:       evidence,
		Contradictions: contradictions,
		Conclusion:     fmt.Sprintf("Hypothesis %s by simulated testing", verdict),
		TestedAt:       time.Now().UTC(),
	}

	logging.Engine("Hypothesis test %s: confidence=%.2f verdict=%s contradictions=%d",
		h.TestID, confidence, verdict, len(contradictions))
	return h
}

// truncate caps a hypothesis for evidence lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
