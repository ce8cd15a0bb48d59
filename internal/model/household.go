package model

import "time"

// Household is the unit of franchise: one residence that may cast at most
// one ballot per voting cycle.  It corresponds to a row in the
// `households` table.  Tower and Flat are reused as lane name and house
// number in lane-based societies; both are nil for societies that do not
// address their households at all.
//
// Invariant: VotedInCycle is true exactly when VotedAt is non-nil.
type Household struct {
	ID             uint64     // households.id
	SocietyName    string     // households.society_name
	Tower          *string    // households.tower (lane name for lane layouts)
	Flat           *string    // households.flat (house number for lane layouts)
	SecretCode     string     // households.secret_code
	FaceTemplate   *string    // households.face_recognition_image, JSON embedding (nullable)
	IsAdminBlocked bool       // households.is_admin_blocked
	IsVoteAllowed  bool       // households.is_vote_allowed
	VotedInCycle   bool       // households.voted_in_cycle
	VotedAt        *time.Time // households.voted_at (nullable, set once)
	IsContestant   bool       // households.is_contestant
	ContestantName *string    // households.contestant_name
}

// TowerKey returns the tower used to key tallies.  Households without a
// tower share the empty key.
func (h *Household) TowerKey() string {
	if h.Tower == nil {
		return ""
	}
	return *h.Tower
}

// ProofOfVote returns the timestamp at which the household's ballot was
// committed, or nil when it has not voted in this cycle.
func (h *Household) ProofOfVote() *time.Time {
	if !h.VotedInCycle || h.VotedAt == nil {
		return nil
	}
	t := h.VotedAt.UTC()
	return &t
}

// Address is the normalized (primary, secondary) address key of a
// household.  Primary holds the tower or lane, Secondary the flat or house
// number.  Presentation decides which labels to show.
type Address struct {
	Primary   string
	Secondary string
}

// FilterKind selects which address columns an AddressFilter constrains.
type FilterKind int

const (
	// FilterTowerFlat matches tower and flat exactly (also used for lane/house).
	FilterTowerFlat FilterKind = iota + 1
	// FilterFlat matches flat alone.
	FilterFlat
	// FilterUnaddressed matches households with every address column null.
	FilterUnaddressed
)

// AddressFilter is the resolved lookup predicate for one household within
// a society.
type AddressFilter struct {
	Kind    FilterKind
	Address Address
}
