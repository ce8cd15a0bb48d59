package model

import (
	"strings"
	"time"
)

// HousingType describes how households inside a society are addressed.
type HousingType string

const (
	// HousingApartment addresses households by tower and flat.
	HousingApartment HousingType = "apartment"
	// HousingLanes reuses tower as the lane name and flat as the house number.
	HousingLanes HousingType = "lanes"
	// HousingFlatOnly addresses households by flat alone (or not at all).
	HousingFlatOnly HousingType = "flat-only"
)

// ParseHousingType maps the free-form settings.housing_type column onto a
// HousingType.  Values mentioning "apartment" or "lanes" select those
// layouts; everything else is treated as flat-only.
func ParseHousingType(raw string) HousingType {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "apartment"):
		return HousingApartment
	case strings.Contains(v, "lanes"):
		return HousingLanes
	default:
		return HousingFlatOnly
	}
}

// Settings mirrors a row of the `settings` table.  One row exists per
// society and carries its ballot configuration together with the
// monotonically increasing voted_count.
//
// Fields:
//  SocietyName            – society identifier (primary key).
//  HousingType            – raw housing_type column.
//  MaxCandidatesSelection – upper bound on selections per ballot.
//  IsTowerwise            – candidates are scoped to a tower.
//  MaxVoters              – capacity of the current cycle.
//  VotedCount             – ballots committed in the current cycle.
type Settings struct {
	SocietyName            string `db:"society_name"`             // settings.society_name
	HousingType            string `db:"housing_type"`             // settings.housing_type
	MaxCandidatesSelection int    `db:"max_candidates_selection"` // settings.max_candidates_selection
	IsTowerwise            bool   `db:"is_towerwise"`             // settings.is_towerwise
	MaxVoters              int    `db:"max_voters"`               // settings.max_voters
	VotedCount             int    `db:"voted_count"`              // settings.voted_count
}

// Layout returns the parsed housing type.
func (s Settings) Layout() HousingType { return ParseHousingType(s.HousingType) }

// CapacityReached reports whether no further ballots may be committed.
func (s Settings) CapacityReached() bool { return s.VotedCount >= s.MaxVoters }

// Schedule is the voting window of a society.  Voting is open on the
// half-open interval [Start, End).  Both bounds are UTC.
type Schedule struct {
	SocietyName string     // voting_schedule.society_name
	Start       *time.Time // voting_schedule.start_time (nullable)
	End         *time.Time // voting_schedule.end_time (nullable)
}

// Configured reports whether both bounds of the window are set.
func (s *Schedule) Configured() bool {
	return s != nil && s.Start != nil && s.End != nil
}

// Open reports whether now falls inside [Start, End).  An unconfigured
// schedule is never open.
func (s *Schedule) Open(now time.Time) bool {
	if !s.Configured() {
		return false
	}
	now = now.UTC()
	return !now.Before(s.Start.UTC()) && now.Before(s.End.UTC())
}
