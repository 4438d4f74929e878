package history

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Ledger is the append-only run-history file: JSON lines, one signed
// entry per completed run.
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// OpenLedger loads an existing ledger file or creates an empty one.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return l, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		l.entries = append(l.entries, &e)
	}
	return l, nil
}

// Append signs the entry with the server key, checks the chain link,
// persists it and keeps it in memory.
func (l *Ledger) Append(e *Entry, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Recompute so the canonical fields and the hash cannot drift.
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("recompute entry hash: %w", err)
	}
	e.Hash = h

	if n := len(l.entries); n > 0 {
		last := l.entries[n-1]
		if e.PrevHash != last.Hash {
			return fmt.Errorf("prev_hash mismatch: expected %s, got %s", last.Hash, e.PrevHash)
		}
	}

	if len(priv) == 0 {
		return fmt.Errorf("private key is empty, cannot sign entry")
	}
	sig := ed25519.Sign(priv, []byte(e.Hash))
	e.Signature = hex.EncodeToString(sig)
	e.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.entries = append(l.entries, e)
	return nil
}

// Entries returns the in-memory view of the chain.
func (l *Ledger) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries
}

// NextIndex returns the index the next entry should carry.
func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastHash returns the newest entry's hash, or "" for an empty chain.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}

// VerifyChain recomputes every entry hash, link and signature to
// detect tampering.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", e.Index)
		}
		if i > 0 && e.PrevHash != l.entries[i-1].Hash {
			return fmt.Errorf("prev_hash mismatch at index %d", e.Index)
		}
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d got %d", i, e.Index)
		}
		if e.Signature != "" {
			ok, err := verifySignatureFromHex(e.PubKey, []byte(e.Hash), e.Signature)
			if err != nil {
				return fmt.Errorf("bad signature encoding at index %d: %w", e.Index, err)
			}
			if !ok {
				return fmt.Errorf("signature mismatch at index %d", e.Index)
			}
		}
	}
	return nil
}
