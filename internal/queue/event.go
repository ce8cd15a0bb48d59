// Package queue carries vote-cast notifications over RabbitMQ.  Events say
// that a household voted, never for whom.
package queue

// VoteCastQueue is the durable queue vote events are published to.
const VoteCastQueue = "vote.cast"

// VoteCastEvent is published after a ballot is committed.  It is enough
// for downstream consumers to audit turnout without touching the voting
// database.  Candidate names are deliberately absent.
type VoteCastEvent struct {
	SocietyName string `json:"society_name"`
	Tower       string `json:"tower,omitempty"`
	HouseholdID uint64 `json:"household_id"`
	Selections  int    `json:"selections"`
	VotedAt     string `json:"voted_at"` // RFC 3339, UTC
}
