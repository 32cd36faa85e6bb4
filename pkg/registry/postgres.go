package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/legalis-go/core/pkg/rule"
)

// PostgresRegistry is an optional durable Registry backed by
// database/sql (driver: github.com/lib/pq). Spec §1 names "storage
// backends beyond the in-memory reference" out of scope as a *required*
// implementation; this adapter is additive for hosts that want registry
// durability across process restarts while keeping InMemoryRegistry as
// the reference implementation every invariant is specified against.
//
// Statutes are stored as their canonical §6.1 JSON document
// (rule.MarshalStatute), not hand-mapped columns, so the adapter never
// drifts from the wire format readers/writers elsewhere in the module
// already agree on.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry wraps an already-opened *sql.DB (postgres driver).
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// OpenPostgres opens a connection using the lib/pq driver and wraps it
// in a PostgresRegistry, the same `sql.Open("postgres", dsn)` call the
// teacher's cmd/bootstrap makes before constructing its own registry.
func OpenPostgres(dsn string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open postgres: %w", err)
	}
	return NewPostgresRegistry(db), nil
}

const pgRegistrySchema = `
CREATE TABLE IF NOT EXISTS registry_entries (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	statute_json JSONB NOT NULL,
	pack_version TEXT,
	tags_json JSONB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	modified_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS registry_history (
	id TEXT NOT NULL,
	version INT NOT NULL,
	statute_json JSONB NOT NULL,
	PRIMARY KEY (id, version)
);
`

// Init creates the registry's tables if they don't already exist.
func (r *PostgresRegistry) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgRegistrySchema)
	return err
}

func (r *PostgresRegistry) Add(statute rule.Statute) error {
	ctx := context.Background()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM registry_entries WHERE id = $1)`, statute.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return errVersionConflict("statute " + statute.ID + " already registered")
	}

	if statute.Version == 0 {
		statute.Version = 1
	}
	statuteJSON, err := rule.MarshalStatute(statute)
	if err != nil {
		return fmt.Errorf("registry: marshal statute %s: %w", statute.ID, err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO registry_entries (id, status, statute_json, tags_json, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, statute.ID, string(Draft), statuteJSON, []byte("{}"), now, now)
	return err
}

func (r *PostgresRegistry) Update(id string, newStatute rule.Statute) error {
	ctx := context.Background()

	row := r.db.QueryRowContext(ctx, `SELECT status, statute_json FROM registry_entries WHERE id = $1`, id)
	var statusStr string
	var currentJSON []byte
	if err := row.Scan(&statusStr, &currentJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound(id)
		}
		return err
	}
	if Status(statusStr) == Repealed {
		return errIllegalTransition("cannot update repealed statute " + id)
	}

	current, err := rule.UnmarshalStatute(currentJSON)
	if err != nil {
		return fmt.Errorf("registry: unmarshal current statute %s: %w", id, err)
	}

	newStatute.ID = id
	newStatute.Version = current.Version + 1
	newJSON, err := rule.MarshalStatute(newStatute)
	if err != nil {
		return fmt.Errorf("registry: marshal statute %s: %w", id, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registry_history (id, version, statute_json) VALUES ($1, $2, $3)
	`, id, current.Version, currentJSON); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE registry_entries SET statute_json = $1, modified_at = $2 WHERE id = $3
	`, newJSON, time.Now().UTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRegistry) SetStatus(id string, status Status) error {
	ctx := context.Background()

	var current string
	if err := r.db.QueryRowContext(ctx, `SELECT status FROM registry_entries WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound(id)
		}
		return err
	}
	if Status(current) == status {
		return nil
	}
	if !CanTransition(Status(current), status) {
		return errIllegalTransition("cannot transition statute " + id + " from " + current + " to " + string(status))
	}
	_, err := r.db.ExecContext(ctx, `UPDATE registry_entries SET status = $1, modified_at = $2 WHERE id = $3`, string(status), time.Now().UTC(), id)
	return err
}

func (r *PostgresRegistry) Get(id string) (Entry, error) {
	ctx := context.Background()
	row := r.db.QueryRowContext(ctx, `
		SELECT status, statute_json, tags_json, created_at, modified_at
		FROM registry_entries WHERE id = $1
	`, id)
	var statusStr string
	var statuteJSON, tagsJSON []byte
	var createdAt, modifiedAt time.Time
	if err := row.Scan(&statusStr, &statuteJSON, &tagsJSON, &createdAt, &modifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, errNotFound(id)
		}
		return Entry{}, err
	}
	return r.hydrate(ctx, id, statusStr, statuteJSON, tagsJSON, createdAt, modifiedAt)
}

func (r *PostgresRegistry) GetVersion(id string, version int) (rule.Statute, error) {
	ctx := context.Background()

	var currentJSON []byte
	if err := r.db.QueryRowContext(ctx, `SELECT statute_json FROM registry_entries WHERE id = $1`, id).Scan(&currentJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rule.Statute{}, errNotFound(id)
		}
		return rule.Statute{}, err
	}
	current, err := rule.UnmarshalStatute(currentJSON)
	if err != nil {
		return rule.Statute{}, err
	}
	if current.Version == version {
		return current, nil
	}

	var histJSON []byte
	err = r.db.QueryRowContext(ctx, `SELECT statute_json FROM registry_history WHERE id = $1 AND version = $2`, id, version).Scan(&histJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return rule.Statute{}, errNotFound(fmt.Sprintf("%s@%d", id, version))
	}
	if err != nil {
		return rule.Statute{}, err
	}
	return rule.UnmarshalStatute(histJSON)
}

func (r *PostgresRegistry) hydrate(ctx context.Context, id, statusStr string, statuteJSON, tagsJSON []byte, createdAt, modifiedAt time.Time) (Entry, error) {
	statute, err := rule.UnmarshalStatute(statuteJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("registry: unmarshal statute %s: %w", id, err)
	}
	var tags map[string]string
	if err := json.Unmarshal(tagsJSON, &tags); err != nil {
		tags = make(map[string]string)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT version, statute_json FROM registry_history WHERE id = $1`, id)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = rows.Close() }()

	history := make(map[int]rule.Statute)
	for rows.Next() {
		var v int
		var hj []byte
		if err := rows.Scan(&v, &hj); err != nil {
			continue
		}
		snap, err := rule.UnmarshalStatute(hj)
		if err == nil {
			history[v] = snap
		}
	}
	if err := rows.Err(); err != nil {
		return Entry{}, err
	}

	return Entry{
		Statute:    statute,
		Status:     Status(statusStr),
		CreatedAt:  createdAt,
		ModifiedAt: modifiedAt,
		Tags:       tags,
		history:    history,
	}, nil
}

func (r *PostgresRegistry) listWhere(ctx context.Context, where string, args ...interface{}) []Entry {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, statute_json, tags_json, created_at, modified_at
		FROM registry_entries `+where, args...)
	if err != nil {
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var id, statusStr string
		var statuteJSON, tagsJSON []byte
		var createdAt, modifiedAt time.Time
		if err := rows.Scan(&id, &statusStr, &statuteJSON, &tagsJSON, &createdAt, &modifiedAt); err != nil {
			continue
		}
		entry, err := r.hydrate(ctx, id, statusStr, statuteJSON, tagsJSON, createdAt, modifiedAt)
		if err == nil {
			out = append(out, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return out
	}
	sortEntries(out)
	return out
}

func (r *PostgresRegistry) ListByRegion(region string) []Entry {
	ctx := context.Background()
	all := r.listWhere(ctx, "")
	var out []Entry
	for _, e := range all {
		if e.Statute.RegionScope.IsUniversal() {
			out = append(out, e)
			continue
		}
		for _, rg := range e.Statute.RegionScope {
			if rg.ID == region {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (r *PostgresRegistry) ListByTag(key, value string) []Entry {
	ctx := context.Background()
	all := r.listWhere(ctx, "")
	var out []Entry
	for _, e := range all {
		if e.Tags[key] == value {
			out = append(out, e)
		}
	}
	return out
}

func (r *PostgresRegistry) ListByStatus(status Status) []Entry {
	ctx := context.Background()
	return r.listWhere(ctx, "WHERE status = $1", string(status))
}

func (r *PostgresRegistry) SearchByTitle(substring string) []Entry {
	ctx := context.Background()
	all := r.listWhere(ctx, "")
	needle := strings.ToLower(substring)
	var out []Entry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Statute.Title), needle) {
			out = append(out, e)
		}
	}
	return out
}

func (r *PostgresRegistry) ActiveStatutes(includeSuspended bool) []rule.Statute {
	entries := r.ListByStatus(Active)
	if includeSuspended {
		entries = append(entries, r.ListByStatus(Suspended)...)
	}
	out := make([]rule.Statute, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Statute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ Registry = (*PostgresRegistry)(nil)
var _ Registry = (*InMemoryRegistry)(nil)
