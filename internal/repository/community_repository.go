package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/society-voting/internal/model"
)

// CommunityRepo provides access to the per-society settings and
// voting_schedule tables.  Both tables hold exactly one row per society.
type CommunityRepo struct {
	db *sqlx.DB
}

// NewCommunityRepo returns a new CommunityRepo bound to the given database.
func NewCommunityRepo(db *sqlx.DB) *CommunityRepo { return &CommunityRepo{db: db} }

// DB exposes the underlying handle so that callers can open transactions
// spanning several repositories.
func (r *CommunityRepo) DB() *sqlx.DB { return r.db }

// GetSettings loads the settings row of a society.  ErrNotFound is returned
// when the society has no settings row.
func (r *CommunityRepo) GetSettings(ctx context.Context, society string) (*model.Settings, error) {
	const q = `SELECT society_name, housing_type, max_candidates_selection, is_towerwise, max_voters, voted_count
               FROM settings WHERE society_name = ?`
	var s model.Settings
	if err := r.db.GetContext(ctx, &s, r.db.Rebind(q), society); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetSchedule loads the voting window of a society.  A missing row yields
// ErrNotFound; a row with null bounds is returned as-is so that callers can
// treat both as "schedule not set".
func (r *CommunityRepo) GetSchedule(ctx context.Context, society string) (*model.Schedule, error) {
	const q = `SELECT start_time, end_time FROM voting_schedule WHERE society_name = ?`
	var start, end sql.NullTime
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(q), society).Scan(&start, &end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s := &model.Schedule{SocietyName: society}
	if start.Valid {
		t := start.Time.UTC()
		s.Start = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		s.End = &t
	}
	return s, nil
}

// IncrementVotedCountTx bumps voted_count by one inside the provided
// transaction, but only while voted_count < max_voters.  When the guard
// fails no row is touched and ErrCapacityReached is returned.
func (r *CommunityRepo) IncrementVotedCountTx(ctx context.Context, tx *sqlx.Tx, society string) error {
	const q = `UPDATE settings SET voted_count = voted_count + 1
               WHERE society_name = ? AND voted_count < max_voters`
	res, err := tx.ExecContext(ctx, tx.Rebind(q), society)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCapacityReached
	}
	return nil
}
