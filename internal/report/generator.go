package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/ledger"
	"noesis/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Index receives generated reports for database indexing. Optional; a nil
// index skips the step.
type Index interface {
	SaveReport(r *CognitionReport) error
}

// Generator builds, signs, submits and persists cognition reports.
type Generator struct {
	ledger  ledger.Ledger
	content ledger.ContentStore
	index   Index
	dir     string
}

// NewGenerator creates a report generator writing artifacts under dir.
func NewGenerator(l ledger.Ledger, c ledger.ContentStore, dir string) *Generator {
	return &Generator{ledger: l, content: c, dir: dir}
}

// WithIndex attaches a database index and returns the generator.
func (g *Generator) WithIndex(idx Index) *Generator {
	g.index = idx
	return g
}

// Generate derives a full report from a frozen execution record. The phases
// slice supplies expected durations for phase timings; nil falls back to a
// default estimate. Ledger and content-store submission run concurrently
// and are best-effort: on failure the report stays valid with empty ledger
// fields.
func (g *Generator) Generate(ctx context.Context, rec *cognition.ExecutionRecord, phases []cognition.Phase) (*CognitionReport, error) {
	if rec == nil {
		return nil, fmt.Errorf("execution record is required")
	}

	timer := logging.StartTimer(logging.CategoryReport, "report generation")
	defer timer.Stop()

	r := &CognitionReport{
		ReportID:      newReportID(),
		ReportVersion: ReportVersion,
		GeneratedAt:   time.Now().UTC(),

		ExecutionID:     rec.ExecutionID,
		CognitionID:     rec.CognitionID,
		CognitionName:   rec.CognitionName,
		ExecutionStatus: string(rec.Status),
		SandboxMode:     rec.SandboxMode,

		StartTime:       rec.StartTime,
		EndTime:         rec.EndTime,
		TotalDurationMS: rec.EndTime.Sub(rec.StartTime).Milliseconds(),
		PhaseTimings:    phaseTimings(phases),

		ParticipatingAgents: append([]string(nil), rec.AgentsParticipated...),
		AgentMetrics:        agentMetrics(rec),
		AgentContributions:  agentContributions(rec),

		ExecutionTrace: append([]string(nil), rec.Trace...),
	}

	r.PhaseResults = phaseResults(rec, phases)
	r.PhaseSuccessRates = phaseSuccessRates(r.PhaseResults)
	r.KeyInsights = insights(rec, r.AgentMetrics, r.PhaseResults)
	r.Recommendations = recommendations(rec)
	r.RiskAssessments = assessRisks(rec)
	r.ConsensusMetrics = consensusMetrics(rec)
	r.Quality = qualityMetrics(rec, r.AgentMetrics)

	root, err := computeMerkleRoot(r)
	if err != nil {
		return nil, fmt.Errorf("merkle root: %w", err)
	}
	r.MerkleRoot = root
	r.VerificationSignature = verificationSignature(r)

	g.submit(ctx, r)

	if err := g.persist(r); err != nil {
		return nil, fmt.Errorf("persist report %s: %w", r.ReportID, err)
	}

	if g.index != nil {
		if err := g.index.SaveReport(r); err != nil {
			logging.ReportWarn("Failed to index report %s: %v", r.ReportID, err)
		}
	}

	logging.Report("Generated report %s for execution %s (quality %.2f, root %s)",
		r.ReportID, r.ExecutionID, r.Quality.QualityScore, shortHash(r.MerkleRoot))
	return r, nil
}

// submit sends the signed report to the ledger and content store
// concurrently. Failures downgrade to warnings.
func (g *Generator) submit(ctx context.Context, r *CognitionReport) {
	payload, err := canonicalJSON(r)
	if err != nil {
		logging.ReportWarn("Failed to canonicalize report %s for submission: %v", r.ReportID, err)
		return
	}

	var eg errgroup.Group
	if g.ledger != nil {
		eg.Go(func() error {
			receipt, err := g.ledger.SubmitReport(ctx, r.ReportID, payload)
			if err != nil {
				logging.LedgerWarn("Ledger submission failed for %s: %v", r.ReportID, err)
				return nil
			}
			r.LedgerTxHash = receipt.TxHash
			return nil
		})
	}
	if g.content != nil {
		eg.Go(func() error {
			cid, err := g.content.StoreReport(ctx, r.ReportID, payload)
			if err != nil {
				logging.LedgerWarn("Content store failed for %s: %v", r.ReportID, err)
				return nil
			}
			r.ContentCID = cid
			return nil
		})
	}
	eg.Wait()
}

// persist writes the three report views: canonical JSON, rendered HTML, and
// ledger metadata.
func (g *Generator) persist(r *CognitionReport) error {
	jsonPath := filepath.Join(g.dir, "json", r.ReportID+".json")
	htmlPath := filepath.Join(g.dir, "html", r.ReportID+".html")
	ledgerPath := filepath.Join(g.dir, "ledger", r.ReportID+"_ledger.json")
	r.GeneratedAssets = []string{jsonPath, htmlPath, ledgerPath}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(jsonPath, data); err != nil {
		return err
	}

	html, err := renderHTML(r)
	if err != nil {
		return err
	}
	if err := writeFile(htmlPath, html); err != nil {
		return err
	}

	meta := map[string]interface{}{
		"report_id":              r.ReportID,
		"ledger_tx_hash":         r.LedgerTxHash,
		"content_cid":            r.ContentCID,
		"merkle_root":            r.MerkleRoot,
		"verification_signature": r.VerificationSignature,
		"timestamp":              r.GeneratedAt.Format(time.RFC3339),
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(ledgerPath, metaData)
}

// Get loads a persisted report by id.
func (g *Generator) Get(reportID string) (*CognitionReport, error) {
	data, err := os.ReadFile(filepath.Join(g.dir, "json", reportID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cognition.NotFoundError{Kind: "report", ID: reportID}
		}
		return nil, err
	}
	var r CognitionReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", reportID, err)
	}
	return &r, nil
}

// List returns all persisted reports, newest first.
func (g *Generator) List() ([]*CognitionReport, error) {
	entries, err := os.ReadDir(filepath.Join(g.dir, "json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var reports []*CognitionReport
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		r, err := g.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logging.ReportWarn("Skipping unreadable report file %s: %v", entry.Name(), err)
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt)
	})
	return reports, nil
}

// Verify recomputes the merkle root and signature of a report and checks
// them against the stored values.
func Verify(r *CognitionReport) error {
	root, err := computeMerkleRoot(r)
	if err != nil {
		return err
	}
	if root != r.MerkleRoot {
		return fmt.Errorf("merkle root mismatch: computed %s, stored %s", shortHash(root), shortHash(r.MerkleRoot))
	}
	if sig := verificationSignature(r); sig != r.VerificationSignature {
		return fmt.Errorf("verification signature mismatch")
	}
	return nil
}

func newReportID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("report_%d_%s", time.Now().UnixMilli(), suffix)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
