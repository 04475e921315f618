// Package ledger provides the report submission targets: an append-only
// verification ledger and a content-addressed store. Both are simulated
// in-process backends deriving their identifiers from content hashes, so
// submissions are reproducible and idempotent per report.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"noesis/internal/logging"
)

// Receipt is the result of a ledger submission.
type Receipt struct {
	TxHash      string    `json:"tx_hash"`
	BlockNumber int64     `json:"block_number"`
	Network     string    `json:"network"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ledger records report digests on a verification ledger.
type Ledger interface {
	SubmitReport(ctx context.Context, reportID string, payload []byte) (Receipt, error)
}

// ContentStore persists full report payloads under a content identifier.
type ContentStore interface {
	StoreReport(ctx context.Context, reportID string, payload []byte) (string, error)
}

// SimulatedLedger is an in-process Ledger. The transaction hash is derived
// from the payload digest, and repeat submissions for the same report id
// return the original receipt.
type SimulatedLedger struct {
	mu       sync.Mutex
	network  string
	block    int64
	receipts map[string]Receipt // By report id
}

// NewSimulatedLedger creates a simulated ledger for the given network name.
func NewSimulatedLedger(network string) *SimulatedLedger {
	if network == "" {
		network = "noesis-local"
	}
	return &SimulatedLedger{
		network:  network,
		block:    1,
		receipts: make(map[string]Receipt),
	}
}

// SubmitReport implements Ledger.
func (l *SimulatedLedger) SubmitReport(ctx context.Context, reportID string, payload []byte) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.receipts[reportID]; ok {
		logging.Ledger("Report %s already on ledger, returning receipt %s", reportID, r.TxHash)
		return r, nil
	}

	digest := sha256.Sum256(payload)
	r := Receipt{
		TxHash:      "0x" + hex.EncodeToString(digest[:]),
		BlockNumber: l.block,
		Network:     l.network,
		SubmittedAt: time.Now().UTC(),
	}
	l.block++
	l.receipts[reportID] = r

	logging.Ledger("Report %s submitted: tx=%s block=%d network=%s", reportID, r.TxHash, r.BlockNumber, r.Network)
	return r, nil
}

// SimulatedContentStore is an in-process ContentStore. The content id is
// derived from the payload digest; repeat stores for the same report id
// return the original id.
type SimulatedContentStore struct {
	mu       sync.Mutex
	ids      map[string]string // Report id -> content id
	payloads map[string][]byte // Content id -> payload
}

// NewSimulatedContentStore creates an empty simulated content store.
func NewSimulatedContentStore() *SimulatedContentStore {
	return &SimulatedContentStore{
		ids:      make(map[string]string),
		payloads: make(map[string][]byte),
	}
}

// StoreReport implements ContentStore.
func (c *SimulatedContentStore) StoreReport(ctx context.Context, reportID string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cid, ok := c.ids[reportID]; ok {
		logging.Ledger("Report %s already stored as %s", reportID, cid)
		return cid, nil
	}

	digest := sha256.Sum256(payload)
	cid := "Qm" + hex.EncodeToString(digest[:])[:44]
	c.ids[reportID] = cid
	c.payloads[cid] = append([]byte(nil), payload...)

	logging.Ledger("Report %s stored: cid=%s size=%d", reportID, cid, len(payload))
	return cid, nil
}

// Fetch returns the payload stored under a content id.
func (c *SimulatedContentStore) Fetch(cid string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.payloads[cid]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}
