package report

import (
	"bytes"
	"html/template"
)

// htmlTemplate renders the human-readable report view.
var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cognition Report {{.ReportID}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2em; color: #222; }
h1, h2 { color: #1a3c6e; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: left; }
th { background: #f0f4fa; }
.status-completed { color: #1a7a2e; font-weight: bold; }
.status-failed, .status-error { color: #a02020; font-weight: bold; }
code { background: #f4f4f4; padding: 2px 4px; word-break: break-all; }
.risk-high { color: #a02020; }
.risk-medium { color: #b07010; }
.risk-low { color: #666; }
</style>
</head>
<body>
<h1>Cognition Report</h1>
<table>
<tr><th>Report ID</th><td>{{.ReportID}}</td></tr>
<tr><th>Execution</th><td>{{.ExecutionID}}</td></tr>
<tr><th>Cognition</th><td>{{.CognitionName}} ({{.CognitionID}})</td></tr>
<tr><th>Status</th><td class="status-{{.ExecutionStatus}}">{{.ExecutionStatus}}</td></tr>
<tr><th>Sandbox</th><td>{{.SandboxMode}}</td></tr>
<tr><th>Duration</th><td>{{.TotalDurationMS}} ms</td></tr>
<tr><th>Generated</th><td>{{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</td></tr>
</table>

<h2>Quality</h2>
<table>
<tr><th>Quality Score</th><td>{{printf "%.3f" .Quality.QualityScore}}</td></tr>
<tr><th>Reliability Index</th><td>{{printf "%.3f" .Quality.ReliabilityIndex}}</td></tr>
<tr><th>Innovation Score</th><td>{{printf "%.3f" .Quality.InnovationScore}}</td></tr>
<tr><th>Efficiency Rating</th><td>{{printf "%.3f" .Quality.EfficiencyRating}}</td></tr>
</table>

<h2>Agents</h2>
<table>
<tr><th>Agent</th><th>Score</th><th>Contributions</th><th>Thinking Ratio</th></tr>
{{range $agent, $m := .AgentMetrics}}
<tr><td>{{$agent}}</td><td>{{printf "%.3f" $m.OverallScore}}</td><td>{{$m.ContributionCount}}</td><td>{{printf "%.2f" $m.ThinkingRatio}}</td></tr>
{{end}}
</table>

<h2>Phases</h2>
<table>
<tr><th>Phase</th><th>Status</th><th>Duration (ms)</th><th>Outputs</th></tr>
{{range .PhaseResults}}
<tr><td>{{.PhaseName}}</td><td class="status-{{.Status}}">{{.Status}}</td><td>{{.DurationMS}}</td><td>{{.OutputCount}}</td></tr>
{{end}}
</table>

{{if .KeyInsights}}
<h2>Key Insights</h2>
<ul>{{range .KeyInsights}}<li>{{.}}</li>{{end}}</ul>
{{end}}

{{if .Recommendations}}
<h2>Recommendations</h2>
<ul>{{range .Recommendations}}<li>{{.}}</li>{{end}}</ul>
{{end}}

{{if .RiskAssessments}}
<h2>Risk Assessments</h2>
<ul>
{{range .RiskAssessments}}<li class="risk-{{.Level}}"><strong>{{.Type}}</strong> ({{.Level}}): {{.Description}} &mdash; {{.Mitigation}}</li>{{end}}
</ul>
{{end}}

<h2>Verification</h2>
<table>
<tr><th>Merkle Root</th><td><code>{{.MerkleRoot}}</code></td></tr>
<tr><th>Signature</th><td><code>{{.VerificationSignature}}</code></td></tr>
{{if .LedgerTxHash}}<tr><th>Ledger Tx</th><td><code>{{.LedgerTxHash}}</code></td></tr>{{end}}
{{if .ContentCID}}<tr><th>Content CID</th><td><code>{{.ContentCID}}</code></td></tr>{{end}}
</table>
</body>
</html>
`))

func renderHTML(r *CognitionReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
