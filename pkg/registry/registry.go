// Package registry implements the Rule Registry (spec §3.6, §4.7): the
// in-memory catalog that owns every Statute, its version history, and
// its status lifecycle. The Evaluator and Verifier borrow read-only
// references from here for the duration of a call and never retain them.
package registry

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/legalis-go/core/pkg/errtax"
	"github.com/legalis-go/core/pkg/rule"
)

// Status is a registry entry's position in the lifecycle state machine
// (spec §3.6, §4.7): Draft -> Active; Active <-> Suspended; Active or
// Suspended -> Repealed; Repealed is terminal.
type Status string

const (
	Draft     Status = "draft"
	Active    Status = "active"
	Suspended Status = "suspended"
	Repealed  Status = "repealed"
)

// legalTransitions enumerates the state machine edges spec §4.7 draws.
var legalTransitions = map[Status]map[Status]bool{
	Draft:     {Active: true},
	Active:    {Suspended: true, Repealed: true},
	Suspended: {Active: true, Repealed: true},
	Repealed:  {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// Entry wraps a Statute with registry-owned bookkeeping (spec §3.6): the
// current status, creation/modification times, prior immutable version
// snapshots, and a free-form tags map.
//
// PackVersion is additive to the spec's required strictly-increasing
// integer Statute.Version (§4.7), which remains the authoritative
// ordering used by GetVersion/Update; PackVersion exists only so a host
// distributing statutes as part of a versioned jurisdiction pack can
// express a semver compatibility constraint against the entry (e.g.
// "requires pack >= 2.1.0"), the same purpose the teacher's pack
// registry uses semver for.
type Entry struct {
	Statute     rule.Statute
	Status      Status
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Tags        map[string]string
	PackVersion *semver.Version

	history map[int]rule.Statute // prior immutable snapshots, keyed by Statute.Version
}

// History returns the entry's prior immutable Statute versions, oldest
// first. The current Statute is not included.
func (e Entry) History() []rule.Statute {
	versions := make([]int, 0, len(e.history))
	for v := range e.history {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	out := make([]rule.Statute, 0, len(versions))
	for _, v := range versions {
		out = append(out, e.history[v])
	}
	return out
}

// Registry is the owning store of Statutes across versions and status
// (spec §4.7). Implementations must hold ids immutable, enforce
// strictly-increasing per-id version numbers, and preserve the prior
// version snapshot whenever Update replaces an Active statute's body.
type Registry interface {
	Add(statute rule.Statute) error
	Update(id string, newStatute rule.Statute) error
	SetStatus(id string, status Status) error
	Get(id string) (Entry, error)
	GetVersion(id string, version int) (rule.Statute, error)
	ListByRegion(region string) []Entry
	ListByTag(key, value string) []Entry
	ListByStatus(status Status) []Entry
	SearchByTitle(substring string) []Entry
	// ActiveStatutes returns the Statute bodies of every Active entry,
	// the default pool the Evaluator considers (spec §4.7: "Only Active
	// statutes are considered by the Evaluator by default"). When
	// includeSuspended is true, Suspended entries are included too, for
	// callers opting into hypothetical simulation over suspended rules.
	ActiveStatutes(includeSuspended bool) []rule.Statute
}

// InMemoryRegistry is the reference, thread-safe Registry implementation
// (spec §1: "the in-memory reference" is the one required backend).
// Multiple readers are admitted concurrently; every mutator takes the
// single write lock, matching the single-writer/multi-reader discipline
// spec §5 assigns to the Registry's shared-resource policy.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{entries: make(map[string]*Entry)}
}

func errNotFound(id string) error {
	return errtax.New(errtax.CodeNotFound, errtax.ClassState, "statute "+id+" not found")
}

func errVersionConflict(msg string) error {
	return errtax.New(errtax.CodeVersionConflict, errtax.ClassState, msg)
}

func errIllegalTransition(msg string) error {
	return errtax.New(errtax.CodeIllegalTransition, errtax.ClassState, msg)
}

// Add registers a brand-new statute in Draft status. The id must not
// already exist in the registry.
func (r *InMemoryRegistry) Add(statute rule.Statute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[statute.ID]; exists {
		return errVersionConflict("statute " + statute.ID + " already registered")
	}
	if statute.Version == 0 {
		statute.Version = 1
	}
	now := time.Now().UTC()
	r.entries[statute.ID] = &Entry{
		Statute:    statute,
		Status:     Draft,
		CreatedAt:  now,
		ModifiedAt: now,
		Tags:       make(map[string]string),
		history:    make(map[int]rule.Statute),
	}
	return nil
}

// Update creates a new version of an existing statute, preserving the
// prior version snapshot in the entry's history (spec §4.7: "update on
// an Active statute preserves the prior version snapshot accessible via
// get_version"). The id on newStatute is ignored; the existing entry's
// id is kept. Version numbers strictly increase regardless of the
// caller-supplied Version field.
func (r *InMemoryRegistry) Update(id string, newStatute rule.Statute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return errNotFound(id)
	}
	if entry.Status == Repealed {
		return errIllegalTransition("cannot update repealed statute " + id)
	}

	prior := entry.Statute
	entry.history[prior.Version] = prior

	newStatute.ID = id
	newStatute.Version = prior.Version + 1
	entry.Statute = newStatute
	entry.ModifiedAt = time.Now().UTC()
	return nil
}

// SetStatus transitions an entry's status, enforcing the spec §4.7
// state machine.
func (r *InMemoryRegistry) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return errNotFound(id)
	}
	if entry.Status == status {
		return nil
	}
	if !CanTransition(entry.Status, status) {
		return errIllegalTransition("cannot transition statute " + id + " from " + string(entry.Status) + " to " + string(status))
	}
	entry.Status = status
	entry.ModifiedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the current entry for id.
func (r *InMemoryRegistry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, errNotFound(id)
	}
	return cloneEntry(entry), nil
}

// GetVersion returns an immutable prior snapshot, or the current
// version if version matches the entry's current Statute.Version.
func (r *InMemoryRegistry) GetVersion(id string, version int) (rule.Statute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return rule.Statute{}, errNotFound(id)
	}
	if entry.Statute.Version == version {
		return entry.Statute, nil
	}
	snap, ok := entry.history[version]
	if !ok {
		return rule.Statute{}, errNotFound(id + "@" + strconv.Itoa(version))
	}
	return snap, nil
}

// ListByRegion returns every entry whose statute's region scope includes
// the given region identifier or is universal.
func (r *InMemoryRegistry) ListByRegion(region string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, entry := range r.entries {
		if entry.Statute.RegionScope.IsUniversal() {
			out = append(out, cloneEntry(entry))
			continue
		}
		for _, rg := range entry.Statute.RegionScope {
			if rg.ID == region {
				out = append(out, cloneEntry(entry))
				break
			}
		}
	}
	sortEntries(out)
	return out
}

// ListByTag returns every entry tagged with key=value.
func (r *InMemoryRegistry) ListByTag(key, value string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, entry := range r.entries {
		if entry.Tags[key] == value {
			out = append(out, cloneEntry(entry))
		}
	}
	sortEntries(out)
	return out
}

// ListByStatus returns every entry in the given status.
func (r *InMemoryRegistry) ListByStatus(status Status) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, entry := range r.entries {
		if entry.Status == status {
			out = append(out, cloneEntry(entry))
		}
	}
	sortEntries(out)
	return out
}

// SearchByTitle returns every entry whose title contains substring,
// case-insensitively.
func (r *InMemoryRegistry) SearchByTitle(substring string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(substring)
	var out []Entry
	for _, entry := range r.entries {
		if strings.Contains(strings.ToLower(entry.Statute.Title), needle) {
			out = append(out, cloneEntry(entry))
		}
	}
	sortEntries(out)
	return out
}

// ActiveStatutes returns the Statute bodies of every Active entry (and
// every Suspended entry too, when includeSuspended is set).
func (r *InMemoryRegistry) ActiveStatutes(includeSuspended bool) []rule.Statute {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rule.Statute
	for _, entry := range r.entries {
		if entry.Status == Active || (includeSuspended && entry.Status == Suspended) {
			out = append(out, entry.Statute)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Statute.ID < entries[j].Statute.ID })
}

// cloneEntry copies an entry's map fields so callers can't mutate
// registry-owned state through a returned Entry.
func cloneEntry(e *Entry) Entry {
	tags := make(map[string]string, len(e.Tags))
	for k, v := range e.Tags {
		tags[k] = v
	}
	return Entry{
		Statute:     e.Statute,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		ModifiedAt:  e.ModifiedAt,
		Tags:        tags,
		PackVersion: e.PackVersion,
		history:     e.history,
	}
}

