package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/society-voting/internal/model"
)

// HouseholdRepo provides data access to the households table: lookups by
// address and proof, the address directory of a society, the candidate
// list of a ballot and the conditional voted-flag transition.
type HouseholdRepo struct {
	db *sqlx.DB
}

// NewHouseholdRepo returns a new HouseholdRepo bound to the provided database.
func NewHouseholdRepo(db *sqlx.DB) *HouseholdRepo { return &HouseholdRepo{db: db} }

// householdRecord mirrors the households columns read by the engine.
// Business logic should use model.Household instead.
type householdRecord struct {
	ID             uint64         `db:"id"`
	SocietyName    string         `db:"society_name"`
	Tower          sql.NullString `db:"tower"`
	Flat           sql.NullString `db:"flat"`
	SecretCode     string         `db:"secret_code"`
	FaceTemplate   sql.NullString `db:"face_recognition_image"`
	IsAdminBlocked bool           `db:"is_admin_blocked"`
	IsVoteAllowed  bool           `db:"is_vote_allowed"`
	VotedInCycle   bool           `db:"voted_in_cycle"`
	VotedAt        sql.NullTime   `db:"voted_at"`
	IsContestant   bool           `db:"is_contestant"`
	ContestantName sql.NullString `db:"contestant_name"`
}

const householdColumns = `id, society_name, tower, flat, secret_code, face_recognition_image,
       is_admin_blocked, is_vote_allowed, voted_in_cycle, voted_at, is_contestant, contestant_name`

func (rec householdRecord) toModel() *model.Household {
	h := &model.Household{
		ID:             rec.ID,
		SocietyName:    rec.SocietyName,
		Tower:          nullString(rec.Tower),
		Flat:           nullString(rec.Flat),
		SecretCode:     rec.SecretCode,
		FaceTemplate:   nullString(rec.FaceTemplate),
		IsAdminBlocked: rec.IsAdminBlocked,
		IsVoteAllowed:  rec.IsVoteAllowed,
		VotedInCycle:   rec.VotedInCycle,
		IsContestant:   rec.IsContestant,
		ContestantName: nullString(rec.ContestantName),
	}
	if rec.VotedAt.Valid {
		t := rec.VotedAt.Time.UTC()
		h.VotedAt = &t
	}
	return h
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// addressClause renders an AddressFilter as SQL conditions.  Lane and house
// fragments are aliases of tower and flat, so only the unaddressed form
// needs to look at the lane and house_number columns.
func addressClause(f model.AddressFilter) (string, []interface{}) {
	switch f.Kind {
	case model.FilterTowerFlat:
		return ` AND tower = ? AND flat = ?`, []interface{}{f.Address.Primary, f.Address.Secondary}
	case model.FilterFlat:
		return ` AND flat = ?`, []interface{}{f.Address.Secondary}
	default:
		return ` AND tower IS NULL AND flat IS NULL AND lane IS NULL AND house_number IS NULL`, nil
	}
}

func (r *HouseholdRepo) findOne(ctx context.Context, where string, args []interface{}) (*model.Household, error) {
	q := `SELECT ` + householdColumns + ` FROM households WHERE ` + where + ` ORDER BY id LIMIT 1`
	var rec householdRecord
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.toModel(), nil
}

// FindByCode locates the household of a society matching both the address
// filter and the secret code in a single lookup, so a miss does not reveal
// which of the two was wrong.
func (r *HouseholdRepo) FindByCode(ctx context.Context, society string, f model.AddressFilter, code string) (*model.Household, error) {
	clause, args := addressClause(f)
	where := `society_name = ? AND secret_code = ?` + clause
	return r.findOne(ctx, where, append([]interface{}{society, code}, args...))
}

// FindEnrolled locates the household matching the address filter among
// those that carry a stored face template.  Households without a template
// never match.
func (r *HouseholdRepo) FindEnrolled(ctx context.Context, society string, f model.AddressFilter) (*model.Household, error) {
	clause, args := addressClause(f)
	where := `society_name = ? AND face_recognition_image IS NOT NULL` + clause
	return r.findOne(ctx, where, append([]interface{}{society}, args...))
}

// GetByID returns a single household.  ErrNotFound is returned when no row
// exists.
func (r *HouseholdRepo) GetByID(ctx context.Context, id uint64) (*model.Household, error) {
	return r.findOne(ctx, `id = ?`, []interface{}{id})
}

// AddressRow is one (tower, flat) pair of the society directory.
type AddressRow struct {
	Tower sql.NullString `db:"tower"`
	Flat  sql.NullString `db:"flat"`
}

// ListAddresses returns the tower and flat of every household in a society
// ordered by tower, then flat.
func (r *HouseholdRepo) ListAddresses(ctx context.Context, society string) ([]AddressRow, error) {
	const q = `SELECT tower, flat FROM households WHERE society_name = ? ORDER BY tower, flat`
	rows := make([]AddressRow, 0)
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), society); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCandidates returns the contestants of a society ordered by name.  When
// tower is non-nil only contestants of that tower are returned.
func (r *HouseholdRepo) ListCandidates(ctx context.Context, society string, tower *string) ([]model.Candidate, error) {
	q := `SELECT contestant_name, contestant_symbol, contestant_photo_b64
          FROM households
          WHERE is_contestant = ? AND society_name = ? AND contestant_name IS NOT NULL`
	args := []interface{}{true, society}
	if tower != nil {
		q += ` AND tower = ?`
		args = append(args, *tower)
	}
	q += ` ORDER BY contestant_name`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Candidate, 0)
	for rows.Next() {
		var c model.Candidate
		var symbol, photo sql.NullString
		if err := rows.Scan(&c.Name, &symbol, &photo); err != nil {
			return nil, err
		}
		c.Symbol = nullString(symbol)
		c.PhotoB64 = nullString(photo)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkVotedTx flips voted_in_cycle and stamps voted_at within the provided
// transaction.  The update only applies while the flag is still false; if
// another ballot already committed for the household no row is affected
// and ErrAlreadyVoted is returned.  The caller must commit or roll back.
func (r *HouseholdRepo) MarkVotedTx(ctx context.Context, tx *sqlx.Tx, id uint64, at time.Time) error {
	const q = `UPDATE households SET voted_in_cycle = ?, voted_at = ?
               WHERE id = ? AND voted_in_cycle = ?`
	res, err := tx.ExecContext(ctx, tx.Rebind(q), true, at.UTC(), id, false)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyVoted
	}
	return nil
}
