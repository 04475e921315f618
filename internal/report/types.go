// Package report turns frozen execution records into verifiable cognition
// reports: deterministic metrics, a merkle root over the report's key
// components, a verification signature, and submission to the ledger and
// content store.
package report

import "time"

// ReportVersion identifies the report schema.
const ReportVersion = "1.0.0"

// AgentMetrics is the per-agent performance breakdown derived from a
// record's reasoning events.
type AgentMetrics struct {
	OverallScore      float64 `json:"overall_score"`
	ContributionCount int     `json:"contribution_count"`
	ThinkingRatio     float64 `json:"thinking_ratio"`
	ConsistencyScore  float64 `json:"consistency_score"`
	InnovationScore   float64 `json:"innovation_score"`
	EfficiencyScore   float64 `json:"efficiency_score"`
}

// PhaseResult summarizes one phase's activity.
type PhaseResult struct {
	PhaseName         string   `json:"phase_name"`
	Status            string   `json:"status"`
	DurationMS        int64    `json:"duration_ms"`
	AgentsInvolved    []string `json:"agents_involved"`
	OutputCount       int      `json:"output_count"`
	ThinkingOutputs   int      `json:"thinking_outputs"`
	ConclusionOutputs int      `json:"conclusion_outputs"`
}

// Risk is one finding from the rule-based risk assessment.
type Risk struct {
	Type        string `json:"type"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// QualityMetrics are the fixed weighted combinations over record facts,
// each clamped to [0,1].
type QualityMetrics struct {
	QualityScore     float64 `json:"quality_score"`
	ReliabilityIndex float64 `json:"reliability_index"`
	InnovationScore  float64 `json:"innovation_score"`
	EfficiencyRating float64 `json:"efficiency_rating"`
}

// CognitionReport is the complete verifiable report for one execution.
// Immutable once signed: every field feeding MerkleRoot or the signature
// must not change after Generate returns.
type CognitionReport struct {
	ReportID      string    `json:"report_id"`
	ReportVersion string    `json:"report_version"`
	GeneratedAt   time.Time `json:"generated_at"`

	ExecutionID     string `json:"execution_id"`
	CognitionID     string `json:"cognition_id"`
	CognitionName   string `json:"cognition_name"`
	ExecutionStatus string `json:"execution_status"`
	SandboxMode     bool   `json:"sandbox_mode"`

	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	TotalDurationMS int64            `json:"total_duration_ms"`
	PhaseTimings    map[string]int64 `json:"phase_timings"`

	ParticipatingAgents []string                `json:"participating_agents"`
	AgentMetrics        map[string]AgentMetrics `json:"agent_performance_metrics"`
	AgentContributions  map[string][]string     `json:"agent_contributions"`

	PhaseResults      []PhaseResult      `json:"phase_results"`
	PhaseSuccessRates map[string]float64 `json:"phase_success_rates"`

	KeyInsights      []string           `json:"key_insights"`
	Recommendations  []string           `json:"recommendations"`
	RiskAssessments  []Risk             `json:"risk_assessments"`
	ConsensusMetrics map[string]float64 `json:"consensus_metrics"`

	Quality QualityMetrics `json:"quality_metrics"`

	LedgerTxHash          string `json:"ledger_tx_hash"`
	ContentCID            string `json:"content_cid"`
	MerkleRoot            string `json:"merkle_root"`
	VerificationSignature string `json:"verification_signature"`

	ExecutionTrace  []string `json:"execution_trace"`
	GeneratedAssets []string `json:"generated_assets"`
}
