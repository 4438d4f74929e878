// Package history keeps a tamper-evident record of completed runs: an
// append-only JSONL ledger of hash-chained, ed25519-signed entries.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the ledger record for one completed run.
type Entry struct {
	Index        int    `json:"index"`
	Timestamp    string `json:"timestamp"`
	RunID        string `json:"run_id"`
	Branch       string `json:"branch"`
	Verdict      string `json:"verdict"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Cancelled    int    `json:"cancelled"`
	Skipped      int    `json:"skipped"`
	ReportDigest string `json:"report_digest"` // sha256 of the serialized run report
	PrevHash     string `json:"prev_hash"`
	Hash         string `json:"hash"`
	Signature    string `json:"signature"`
	PubKey       string `json:"pub_key"`
}

// canonicalData returns the JSON bytes the entry hash covers. Hash,
// Signature and PubKey are excluded on purpose.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index        int    `json:"index"`
		Timestamp    string `json:"timestamp"`
		RunID        string `json:"run_id"`
		Branch       string `json:"branch"`
		Verdict      string `json:"verdict"`
		Succeeded    int    `json:"succeeded"`
		Failed       int    `json:"failed"`
		Cancelled    int    `json:"cancelled"`
		Skipped      int    `json:"skipped"`
		ReportDigest string `json:"report_digest"`
		PrevHash     string `json:"prev_hash"`
	}{
		Index:        e.Index,
		Timestamp:    e.Timestamp,
		RunID:        e.RunID,
		Branch:       e.Branch,
		Verdict:      e.Verdict,
		Succeeded:    e.Succeeded,
		Failed:       e.Failed,
		Cancelled:    e.Cancelled,
		Skipped:      e.Skipped,
		ReportDigest: e.ReportDigest,
		PrevHash:     e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates sha256 over canonicalData.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewEntry constructs an entry and computes its hash (not yet signed).
func NewEntry(index int, runID, branch, verdict string, succeeded, failed, cancelled, skipped int, reportDigest, prevHash string) (*Entry, error) {
	e := &Entry{
		Index:        index,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		RunID:        runID,
		Branch:       branch,
		Verdict:      verdict,
		Succeeded:    succeeded,
		Failed:       failed,
		Cancelled:    cancelled,
		Skipped:      skipped,
		ReportDigest: reportDigest,
		PrevHash:     prevHash,
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
