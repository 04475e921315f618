package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/gowebpki/jcs"
)

// Domain-separated hash prefixes. Versioned so a future leaf format change
// cannot collide with v1 hashes.
const (
	leafPrefix = "noesis:report:leaf:v1"
	nodePrefix = "noesis:report:node:v1"
)

// merkleComponents extracts the six integrity components of a report, in
// fixed order. Agent and insight lists are rendered as RFC 8785 canonical
// JSON so the root is byte-for-byte reproducible.
func merkleComponents(r *CognitionReport) ([][]byte, error) {
	agents := append([]string(nil), r.ParticipatingAgents...)
	sort.Strings(agents)
	agentsJSON, err := canonicalJSON(agents)
	if err != nil {
		return nil, fmt.Errorf("canonicalize agents: %w", err)
	}

	insights := r.KeyInsights
	if insights == nil {
		insights = []string{}
	}
	insightsJSON, err := canonicalJSON(insights)
	if err != nil {
		return nil, fmt.Errorf("canonicalize insights: %w", err)
	}

	return [][]byte{
		[]byte(r.ExecutionID),
		[]byte(r.CognitionID),
		[]byte(strconv.FormatInt(r.TotalDurationMS, 10)),
		agentsJSON,
		insightsJSON,
		[]byte(formatScore(r.Quality.QualityScore)),
	}, nil
}

// computeMerkleRoot hashes the report's integrity components into
// domain-separated leaves and combines them pairwise bottom-up, duplicating
// the last node on odd levels.
func computeMerkleRoot(r *CognitionReport) (string, error) {
	components, err := merkleComponents(r)
	if err != nil {
		return "", err
	}

	level := make([]string, len(components))
	for i, comp := range components {
		level[i] = sha256Hex(leafBytes(i, comp))
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, nodeHash(level[i], level[i+1]))
		}
		level = next
	}
	return level[0], nil
}

// verificationSignature binds the report id, execution id, merkle root and
// quality score into a single SHA-256 digest.
func verificationSignature(r *CognitionReport) string {
	data := fmt.Sprintf("%s_%s_%s_%s", r.ReportID, r.ExecutionID, r.MerkleRoot, formatScore(r.Quality.QualityScore))
	return sha256Hex([]byte(data))
}

func leafBytes(index int, component []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(leafPrefix)
	buf.WriteByte(0)
	buf.WriteString(strconv.Itoa(index))
	buf.WriteByte(0)
	buf.Write(component)
	return buf.Bytes()
}

func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodePrefix)
	buf.WriteByte(0)
	buf.WriteString(left)
	buf.WriteString(right)
	return sha256Hex(buf.Bytes())
}

func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// formatScore renders a score with the shortest exact decimal form so the
// same float always yields the same bytes.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
