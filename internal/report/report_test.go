package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *cognition.ExecutionRecord {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := &cognition.ExecutionRecord{
		ExecutionID:        "exec_sample",
		CognitionID:        "cognition_sample",
		CognitionName:      "Sample Cognition",
		SandboxMode:        true,
		Status:             cognition.ExecutionCompleted,
		PhasesCompleted:    3,
		TotalPhases:        3,
		Duration:           60 * time.Second,
		AgentPerformance:   map[string]float64{"Theory": 0.92, "Echo": 0.88, "Verdict": 0.9},
		AgentsParticipated: []string{"Theory", "Echo", "Verdict"},
		StartTime:          start,
		EndTime:            start.Add(60 * time.Second),
	}
	for i, phase := range []string{"Analysis", "Verification", "Decision"} {
		agent := rec.AgentsParticipated[i]
		for j := 0; j < 5; j++ {
			rec.DetailedOutputs = append(rec.DetailedOutputs, cognition.ReasoningEvent{
				Agent: agent, Phase: phase, Type: cognition.EventThinking,
				Content: fmt.Sprintf("%s thought %d", agent, j), Timestamp: start,
			})
		}
		rec.DetailedOutputs = append(rec.DetailedOutputs, cognition.ReasoningEvent{
			Agent: agent, Phase: phase, Type: cognition.EventConclusion,
			Content: agent + " conclusion", Timestamp: start,
		})
	}
	return rec
}

func samplePhases() []cognition.Phase {
	return []cognition.Phase{
		{Name: "Analysis", ExpectedDuration: 30 * time.Second, Agents: []string{"Theory"}},
		{Name: "Verification", ExpectedDuration: 20 * time.Second, Agents: []string{"Echo"}},
		{Name: "Decision", ExpectedDuration: 10 * time.Second, Agents: []string{"Verdict"}},
	}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(ledger.NewSimulatedLedger("testnet"), ledger.NewSimulatedContentStore(), t.TempDir())
}

func TestMerkleRootDeterministic(t *testing.T) {
	r := &CognitionReport{
		ExecutionID:         "exec_1",
		CognitionID:         "cognition_1",
		TotalDurationMS:     60000,
		ParticipatingAgents: []string{"Theory", "Echo"},
		KeyInsights:         []string{"insight one", "insight two"},
		Quality:             QualityMetrics{QualityScore: 0.91},
	}

	root1, err := computeMerkleRoot(r)
	require.NoError(t, err)
	root2, err := computeMerkleRoot(r)
	require.NoError(t, err)
	assert.Equal(t, root1, root2)
	assert.Len(t, root1, 64)
}

func TestMerkleRootAgentOrderIndependent(t *testing.T) {
	a := &CognitionReport{
		ExecutionID:         "exec_1",
		CognitionID:         "cognition_1",
		ParticipatingAgents: []string{"Theory", "Echo", "Verdict"},
		Quality:             QualityMetrics{QualityScore: 0.5},
	}
	b := &CognitionReport{
		ExecutionID:         "exec_1",
		CognitionID:         "cognition_1",
		ParticipatingAgents: []string{"Verdict", "Theory", "Echo"},
		Quality:             QualityMetrics{QualityScore: 0.5},
	}

	rootA, err := computeMerkleRoot(a)
	require.NoError(t, err)
	rootB, err := computeMerkleRoot(b)
	require.NoError(t, err)
	assert.Equal(t, rootA, rootB)
}

func TestMerkleRootSensitiveToContent(t *testing.T) {
	base := &CognitionReport{
		ExecutionID: "exec_1",
		CognitionID: "cognition_1",
		KeyInsights: []string{"a"},
		Quality:     QualityMetrics{QualityScore: 0.5},
	}
	root1, err := computeMerkleRoot(base)
	require.NoError(t, err)

	changed := *base
	changed.KeyInsights = []string{"b"}
	root2, err := computeMerkleRoot(&changed)
	require.NoError(t, err)
	assert.NotEqual(t, root1, root2)
}

func TestGenerateEndToEnd(t *testing.T) {
	g := newTestGenerator(t)

	r, err := g.Generate(context.Background(), sampleRecord(), samplePhases())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ReportID)
	assert.Equal(t, ReportVersion, r.ReportVersion)
	assert.Equal(t, int64(60000), r.TotalDurationMS)
	assert.Len(t, r.MerkleRoot, 64)
	assert.Len(t, r.VerificationSignature, 64)
	assert.NotEmpty(t, r.LedgerTxHash)
	assert.NotEmpty(t, r.ContentCID)

	require.NoError(t, Verify(r))

	// All three views persisted.
	require.Len(t, r.GeneratedAssets, 3)
	for _, path := range r.GeneratedAssets {
		_, err := os.Stat(path)
		assert.NoError(t, err, "asset %s missing", path)
	}
}

func TestGenerateQualityBounds(t *testing.T) {
	g := newTestGenerator(t)

	records := []*cognition.ExecutionRecord{
		sampleRecord(),
		{
			ExecutionID: "exec_empty", CognitionID: "cognition_empty",
			Status:    cognition.ExecutionFailed,
			StartTime: time.Now().UTC(), EndTime: time.Now().UTC(),
		},
	}
	for _, rec := range records {
		r, err := g.Generate(context.Background(), rec, nil)
		require.NoError(t, err)
		for name, v := range map[string]float64{
			"quality":     r.Quality.QualityScore,
			"reliability": r.Quality.ReliabilityIndex,
			"innovation":  r.Quality.InnovationScore,
			"efficiency":  r.Quality.EfficiencyRating,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s for %s", name, rec.ExecutionID)
			assert.LessOrEqual(t, v, 1.0, "%s for %s", name, rec.ExecutionID)
		}
		for metric, v := range r.ConsensusMetrics {
			assert.GreaterOrEqual(t, v, 0.0, metric)
			assert.LessOrEqual(t, v, 1.0, metric)
		}
	}
}

type failingLedger struct{}

func (failingLedger) SubmitReport(ctx context.Context, reportID string, payload []byte) (ledger.Receipt, error) {
	return ledger.Receipt{}, errors.New("ledger unavailable")
}

type failingContentStore struct{}

func (failingContentStore) StoreReport(ctx context.Context, reportID string, payload []byte) (string, error) {
	return "", errors.New("content store unavailable")
}

func TestGenerateSurvivesSubmissionFailure(t *testing.T) {
	g := NewGenerator(failingLedger{}, failingContentStore{}, t.TempDir())

	r, err := g.Generate(context.Background(), sampleRecord(), samplePhases())
	require.NoError(t, err)

	assert.Empty(t, r.LedgerTxHash)
	assert.Empty(t, r.ContentCID)
	assert.NotEmpty(t, r.MerkleRoot)
	require.NoError(t, Verify(r))
}

func TestGetAndList(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	r1, err := g.Generate(ctx, sampleRecord(), samplePhases())
	require.NoError(t, err)

	got, err := g.Get(r1.ReportID)
	require.NoError(t, err)
	assert.Equal(t, r1.ReportID, got.ReportID)
	assert.Equal(t, r1.MerkleRoot, got.MerkleRoot)
	require.NoError(t, Verify(got))

	rec2 := sampleRecord()
	rec2.ExecutionID = "exec_second"
	_, err = g.Generate(ctx, rec2, samplePhases())
	require.NoError(t, err)

	all, err := g.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = g.Get("report_missing")
	assert.True(t, cognition.IsNotFound(err))
}

func TestVerifyDetectsTampering(t *testing.T) {
	g := newTestGenerator(t)

	r, err := g.Generate(context.Background(), sampleRecord(), samplePhases())
	require.NoError(t, err)

	r.KeyInsights = append(r.KeyInsights, "injected insight")
	assert.Error(t, Verify(r))
}

func TestAgentMetricsDerivation(t *testing.T) {
	rec := sampleRecord()
	metrics := agentMetrics(rec)

	require.Contains(t, metrics, "Theory")
	m := metrics["Theory"]
	assert.Equal(t, 0.92, m.OverallScore)
	assert.Equal(t, 6, m.ContributionCount) // 5 thinking + 1 conclusion
	assert.InDelta(t, 5.0/6.0, m.ThinkingRatio, 1e-9)
	assert.InDelta(t, 0.8+(0.92-0.7)*0.5, m.ConsistencyScore, 1e-9)
	assert.InDelta(t, 0.6, m.EfficiencyScore, 1e-9)
}

func TestAgentMetricsZeroEvents(t *testing.T) {
	rec := &cognition.ExecutionRecord{
		AgentPerformance: map[string]float64{"Ghost": 0.8},
	}
	m := agentMetrics(rec)["Ghost"]
	assert.Equal(t, 0.0, m.ThinkingRatio)
	assert.Equal(t, 0, m.ContributionCount)
}

func TestPhaseResultsMarkIncomplete(t *testing.T) {
	rec := sampleRecord()
	rec.Status = cognition.ExecutionFailed
	rec.PhasesCompleted = 1

	results := phaseResults(rec, samplePhases())
	require.Len(t, results, 3)
	assert.Equal(t, "completed", results[0].Status)
	assert.Equal(t, "failed", results[1].Status)
	assert.Equal(t, "failed", results[2].Status)
	assert.Equal(t, int64(30000), results[0].DurationMS)
}

func TestRecommendationsFlagLowPerformers(t *testing.T) {
	rec := sampleRecord()
	rec.AgentPerformance["Echo"] = 0.55

	recs := recommendations(rec)
	found := false
	for _, r := range recs {
		if strings.Contains(r, "Echo") {
			found = true
		}
	}
	assert.True(t, found, "expected low-performer recommendation, got %v", recs)

	risks := assessRisks(rec)
	require.NotEmpty(t, risks)
	assert.Equal(t, "performance", risks[0].Type)
}
