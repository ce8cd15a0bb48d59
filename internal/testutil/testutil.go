// Package testutil provides a throwaway SQLite store and seed helpers for
// tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/society-voting/internal/database"
	"github.com/iliyamo/society-voting/internal/model"
)

// SetupTestDB opens a fresh SQLite database in the test's temp directory
// with the full schema.  It is closed when the test ends.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "voting.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.CreateSchema(context.Background(), db))
	return db
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// SeedSettings inserts the settings row of a society.
func SeedSettings(t *testing.T, db *sqlx.DB, s model.Settings) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO settings
        (society_name, housing_type, max_candidates_selection, is_towerwise, max_voters, voted_count)
        VALUES (?, ?, ?, ?, ?, ?)`),
		s.SocietyName, s.HousingType, s.MaxCandidatesSelection, s.IsTowerwise, s.MaxVoters, s.VotedCount)
	require.NoError(t, err)
}

// SeedSchedule inserts the voting window of a society.  Nil bounds are
// stored as NULL.
func SeedSchedule(t *testing.T, db *sqlx.DB, society string, start, end *time.Time) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO voting_schedule (society_name, start_time, end_time) VALUES (?, ?, ?)`),
		society, utc(start), utc(end))
	require.NoError(t, err)
}

func utc(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Household describes a households row to seed.  Zero values give an
// allowed, unblocked household that has not voted.
type Household struct {
	Society      string
	Tower        *string
	Flat         *string
	Code         string
	FaceTemplate *string
	Blocked      bool
	Disallowed   bool
	VotedAt      *time.Time // non-nil marks the household as voted
	Contestant   string     // non-empty makes the household a contestant
	Symbol       *string
}

// SeedHousehold inserts h and returns its id.
func SeedHousehold(t *testing.T, db *sqlx.DB, h Household) uint64 {
	t.Helper()
	var contestant interface{}
	if h.Contestant != "" {
		contestant = h.Contestant
	}
	res, err := db.Exec(db.Rebind(`INSERT INTO households
        (society_name, tower, flat, secret_code, face_recognition_image, is_admin_blocked, is_vote_allowed,
         voted_in_cycle, voted_at, is_contestant, contestant_name, contestant_symbol)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		h.Society, h.Tower, h.Flat, h.Code, h.FaceTemplate, h.Blocked, !h.Disallowed,
		h.VotedAt != nil, utc(h.VotedAt), h.Contestant != "", contestant, h.Symbol)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// LiveTallies returns the non-archived tallies of a society ordered by tower
// and candidate name.
func LiveTallies(t *testing.T, db *sqlx.DB, society string) []model.Tally {
	t.Helper()
	out := make([]model.Tally, 0)
	err := db.Select(&out, db.Rebind(`SELECT id, society_name, tower, contestant_name, is_archived, vote_count
        FROM votes WHERE society_name = ? AND is_archived = ?
        ORDER BY tower, contestant_name`), society, false)
	require.NoError(t, err)
	return out
}
