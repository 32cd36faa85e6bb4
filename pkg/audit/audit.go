// Package audit implements the hash-chained, append-only Audit Trail
// (spec §3.7, §4.4): every evaluation outcome worth recording becomes an
// immutable Record linked to its predecessor by content hash.
package audit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/legalis-go/core/pkg/canonicalize"
	"github.com/legalis-go/core/pkg/errtax"
	"github.com/legalis-go/core/pkg/eval"
	"github.com/legalis-go/core/pkg/rule"
)

// GenesisHash seeds the chain: the first Record's PreviousHash (spec
// §4.4: "the first record uses a fixed genesis hash").
var GenesisHash = "sha256:" + strings.Repeat("0", 64)

// Record is one immutable entry in the audit chain (spec §3.7).
type Record struct {
	ID             string         `json:"id"`
	Sequence       uint64         `json:"sequence"`
	Timestamp      time.Time      `json:"timestamp"`
	SubjectID      string         `json:"subject_id"`
	StatuteID      string         `json:"statute_id"`
	StatuteVersion int            `json:"statute_version"`
	Outcome        eval.Status    `json:"outcome"`
	Effects        []rule.Effect  `json:"effects,omitempty"`
	Trace          eval.TraceNode `json:"trace"`
	PreviousHash   string         `json:"previous_hash"`
	EntryHash      string         `json:"entry_hash,omitempty"`
}

// hashableContent is exactly Record minus EntryHash: the bytes that get
// canonicalized and hashed to produce EntryHash (spec §4.4: "record_hash
// = H(prev_hash ‖ canonical_bytes(record_without_hash))"). The
// evaluation timestamp is part of this content, so identical (entity,
// statute, t) evaluations repeated at different wall-clock append times
// never collide.
type hashableContent struct {
	ID             string         `json:"id"`
	Sequence       uint64         `json:"sequence"`
	Timestamp      time.Time      `json:"timestamp"`
	SubjectID      string         `json:"subject_id"`
	StatuteID      string         `json:"statute_id"`
	StatuteVersion int            `json:"statute_version"`
	Outcome        eval.Status    `json:"outcome"`
	Effects        []rule.Effect  `json:"effects,omitempty"`
	Trace          eval.TraceNode `json:"trace"`
	PreviousHash   string         `json:"previous_hash"`
}

// Store is the append-only, hash-chained audit log. Appends are
// serialized by mu (single-writer); reads take the same lock in
// read-mode, which is sufficient at this scale and keeps the chain-head
// invariant trivially correct (spec §4.4, §5: "single writer lock;
// readers use the indices lock-free via immutable snapshots" — here
// approximated with RWMutex since Go gives no cheaper lock-free reader
// path without unsafe tricks the teacher itself never reaches for).
type Store struct {
	mu         sync.RWMutex
	records    []*Record
	byID       map[string]*Record
	bySubject  map[string][]*Record
	byStatute  map[string][]*Record
	chainHead  string
	sequence   uint64
}

// NewStore constructs an empty audit store seeded with GenesisHash.
func NewStore() *Store {
	return &Store{
		byID:      make(map[string]*Record),
		bySubject: make(map[string][]*Record),
		byStatute: make(map[string][]*Record),
		chainHead: GenesisHash,
	}
}

// Append adds a new record to the chain and returns the new head hash.
func (s *Store) Append(subjectID, statuteID string, statuteVersion int, outcome eval.Status, effects []rule.Effect, trace eval.TraceNode, timestamp time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	record := &Record{
		ID:             uuid.New().String(),
		Sequence:       s.sequence,
		Timestamp:      timestamp.UTC(),
		SubjectID:      subjectID,
		StatuteID:      statuteID,
		StatuteVersion: statuteVersion,
		Outcome:        outcome,
		Effects:        effects,
		Trace:          trace,
		PreviousHash:   s.chainHead,
	}

	hash, err := s.computeEntryHash(record)
	if err != nil {
		s.sequence--
		return "", err
	}
	record.EntryHash = hash
	s.chainHead = hash

	s.records = append(s.records, record)
	s.byID[record.ID] = record
	s.bySubject[subjectID] = append(s.bySubject[subjectID], record)
	s.byStatute[statuteID] = append(s.byStatute[statuteID], record)

	return hash, nil
}

func (s *Store) computeEntryHash(r *Record) (string, error) {
	content := hashableContent{
		ID: r.ID, Sequence: r.Sequence, Timestamp: r.Timestamp,
		SubjectID: r.SubjectID, StatuteID: r.StatuteID, StatuteVersion: r.StatuteVersion,
		Outcome: r.Outcome, Effects: r.Effects, Trace: r.Trace, PreviousHash: r.PreviousHash,
	}
	canonical, err := canonicalize.JCS(content)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalizing record %s: %w", r.ID, err)
	}
	return canonicalize.HashBytes(append([]byte(r.PreviousHash), canonical...)), nil
}

// Get retrieves a record by id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, errtax.New(errtax.CodeNotFound, errtax.ClassState, fmt.Sprintf("audit record %q not found", id))
	}
	return r, nil
}

// QueryBySubject returns every record for a subject entity id, in
// append order.
func (s *Store) QueryBySubject(subjectID string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Record(nil), s.bySubject[subjectID]...)
}

// QueryByStatute returns every record for a statute id, in append order.
func (s *Store) QueryByStatute(statuteID string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Record(nil), s.byStatute[statuteID]...)
}

// QueryByTimeRange returns every record with timestamp in [start, end).
func (s *Store) QueryByTimeRange(start, end time.Time) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0)
	// records are append-ordered but not necessarily timestamp-ordered
	// (a caller may append historical records out of wall-clock order),
	// so a linear scan plus sort is the honest implementation rather
	// than assuming sorted input.
	for _, r := range s.records {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// VerifyChain recomputes every record's hash and checks the chain
// linkage, returning the 1-based position of the first broken record, or
// -1 if the chain is intact (spec §4.4: "verify_chain() → ok |
// first_broken_index"). Positions are 1-based to match spec scenario S5
// literally: tampering the second of three appended records must report
// index 2, not 1.
func (s *Store) VerifyChain() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expectedPrev := GenesisHash
	for i, r := range s.records {
		if r.PreviousHash != expectedPrev {
			return i + 1
		}
		computed, err := s.computeEntryHash(r)
		if err != nil || computed != r.EntryHash {
			return i + 1
		}
		expectedPrev = r.EntryHash
	}
	return -1
}

// Len returns the number of records appended so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Head returns the current chain head hash.
func (s *Store) Head() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHead
}
