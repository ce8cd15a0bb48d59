package service

import (
	"strings"
	"time"

	"github.com/iliyamo/society-voting/internal/model"
)

// Mode tells the gate what the caller intends to do after verification.
type Mode string

const (
	// ModeVote verifies a household that is about to cast its ballot.
	ModeVote Mode = "vote"
	// ModeVerify re-verifies a household, for instance to show its proof
	// of vote.  The schedule window and the voted flag are not checked.
	ModeVerify Mode = "verify"
)

// ParseMode maps a request parameter onto a Mode, defaulting to ModeVote.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "verify", "verify_only", "verify-only":
		return ModeVerify
	default:
		return ModeVote
	}
}

// Gate holds the eligibility rules shared by both verification strategies
// and repeated by the ballot engine right before a ballot is committed.
//
// The checks run in a fixed order:
//
//  1. the schedule exists and has both bounds
//  2. the household was identified (done by the strategy)
//  3. the household is not blocked by an admin
//  4. the household is allowed to vote
//  5. for ModeVote only: now is within [start, end) and the household has
//     not voted in this cycle
type Gate struct {
	Now func() time.Time
}

func (g Gate) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// RequireSchedule performs check 1.
func (g Gate) RequireSchedule(s *model.Schedule) error {
	if !s.Configured() {
		return ErrScheduleNotSet
	}
	return nil
}

// Admit performs checks 3 to 5 on an identified household.
func (g Gate) Admit(h *model.Household, s *model.Schedule, mode Mode) error {
	if h.IsAdminBlocked {
		return ErrBlocked
	}
	if !h.IsVoteAllowed {
		return ErrVoteNotAllowed
	}
	if mode == ModeVerify {
		return nil
	}
	if !s.Open(g.now()) {
		return ErrVotingClosed
	}
	if h.VotedInCycle {
		return ErrAlreadyVoted
	}
	return nil
}
