package model

import "time"

// Candidate is a household flagged as a contestant, as shown on a ballot.
type Candidate struct {
	Name     string  `json:"name"`      // households.contestant_name
	Symbol   *string `json:"symbol"`    // households.contestant_symbol
	PhotoB64 *string `json:"photo_b64"` // households.contestant_photo_b64
}

// Tally is an aggregated per-candidate counter.  Rows are keyed by
// (society, tower, candidate, archived); individual ballots are never
// stored.  Tower is empty when the voting household has no tower.
type Tally struct {
	ID             uint64 `db:"id"`              // votes.id
	SocietyName    string `db:"society_name"`    // votes.society_name
	Tower          string `db:"tower"`           // votes.tower
	ContestantName string `db:"contestant_name"` // votes.contestant_name
	IsArchived     bool   `db:"is_archived"`     // votes.is_archived
	VoteCount      int    `db:"vote_count"`      // votes.vote_count
}

// Session is the authenticated household binding carried between
// verification and ballot submission.  It is issued once verification
// succeeds and revoked once a ballot is committed.
type Session struct {
	ID          string    // unique session id (JWT jti)
	HouseholdID uint64    // authenticated household
	SocietyName string    // society the household belongs to
	ExpiresAt   time.Time // absolute expiry, UTC
}
