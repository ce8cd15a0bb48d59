package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/society-voting/internal/database"
)

// TallyRepo maintains the aggregated per-candidate counters in the votes
// table.  Only live (non-archived) rows are written; archiving is performed
// outside this service.
type TallyRepo struct {
	increment string
}

// NewTallyRepo returns a new TallyRepo bound to the given database.  The
// upsert statement is rendered once for the database's dialect.
func NewTallyRepo(db *sqlx.DB) *TallyRepo {
	stmt := database.DialectOf(db).UpsertIncrement(
		"votes",
		[]string{"society_name", "tower", "contestant_name", "is_archived"},
		[]string{"society_name", "tower", "contestant_name", "is_archived"},
		"vote_count",
	)
	return &TallyRepo{increment: db.Rebind(stmt)}
}

// IncrementTx adds one vote for a candidate inside the provided
// transaction, creating the tally row with a count of one on first use.
func (r *TallyRepo) IncrementTx(ctx context.Context, tx *sqlx.Tx, society, tower, candidate string) error {
	_, err := tx.ExecContext(ctx, r.increment, society, tower, candidate, false)
	return err
}
