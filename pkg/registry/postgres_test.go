package registry

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

func sampleStatute(id string) rule.Statute {
	return rule.Statute{
		ID:            id,
		Title:         "Minimum age requirement",
		Version:       1,
		RegionScope:   rule.RegionScope{{Kind: rule.RegionCountry, ID: "US"}},
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Conditions: []rule.Condition{
			rule.Leaf("age", value.OpGte, value.Int(18)),
		},
		Effects: []rule.Effect{
			{Kind: rule.EffectGrant, Target: "voting_rights", Value: value.Null()},
		},
	}
}

func TestPostgresRegistry_Add(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewPostgresRegistry(db)
	statute := sampleStatute("R1")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM registry_entries WHERE id = \$1\)`).
		WithArgs(statute.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectExec(`INSERT INTO registry_entries`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.Add(statute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_Add_DuplicateIsVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewPostgresRegistry(db)
	statute := sampleStatute("R1")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM registry_entries WHERE id = \$1\)`).
		WithArgs(statute.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err = r.Add(statute)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_SetStatus_IllegalTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewPostgresRegistry(db)

	mock.ExpectQuery(`SELECT status FROM registry_entries WHERE id = \$1`).
		WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(Repealed)))

	err = r.SetStatus("R1", Active)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewPostgresRegistry(db)

	mock.ExpectQuery(`SELECT status, statute_json, tags_json, created_at, modified_at`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = r.Get("missing")
	require.Error(t, err)
}
