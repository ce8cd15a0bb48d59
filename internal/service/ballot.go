package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/society-voting/internal/metrics"
	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/queue"
	"github.com/iliyamo/society-voting/internal/repository"
)

// SessionRevoker invalidates a voter session.
type SessionRevoker interface {
	Revoke(ctx context.Context, sess model.Session) error
}

// EventPublisher announces committed ballots.
type EventPublisher interface {
	PublishVoteCast(ctx context.Context, ev queue.VoteCastEvent) error
}

// BallotEngine serves the ballot of an authenticated household and records
// its selections.
type BallotEngine struct {
	Communities *repository.CommunityRepo
	Households  *repository.HouseholdRepo
	Tallies     *repository.TallyRepo
	Gate        Gate
	Sessions    SessionRevoker // optional
	Events      EventPublisher // optional
	Log         logrus.FieldLogger
}

// NewBallotEngine constructs a BallotEngine.  sessions and events may be
// nil.
func NewBallotEngine(communities *repository.CommunityRepo, households *repository.HouseholdRepo, tallies *repository.TallyRepo,
	gate Gate, sessions SessionRevoker, events EventPublisher, log logrus.FieldLogger) *BallotEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BallotEngine{
		Communities: communities,
		Households:  households,
		Tallies:     tallies,
		Gate:        gate,
		Sessions:    sessions,
		Events:      events,
		Log:         log,
	}
}

// Sheet is the ballot shown to a household.
type Sheet struct {
	Society       string            `json:"society_name"`
	Tower         *string           `json:"tower"`
	MaxSelections int               `json:"max_selections"`
	Candidates    []model.Candidate `json:"contestants"`
}

// Receipt describes a committed ballot.
type Receipt struct {
	HouseholdID uint64
	Society     string
	VotedAt     time.Time
	Selections  int
}

// household loads the household bound to sess.  A session pointing at
// another society is treated as unknown.
func (e *BallotEngine) household(ctx context.Context, sess model.Session) (*model.Household, error) {
	h, err := e.Households.GetByID(ctx, sess.HouseholdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHouseholdNotFound
		}
		return nil, Internal(err)
	}
	if h.SocietyName != sess.SocietyName {
		return nil, ErrHouseholdNotFound
	}
	return h, nil
}

func (e *BallotEngine) settings(ctx context.Context, society string) (*model.Settings, error) {
	s, err := e.Communities.GetSettings(ctx, society)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, Internal(err)
	}
	return s, nil
}

// candidates lists the ballot of h: the contestants of its tower when the
// society votes tower-wise, every contestant of the society otherwise.
func (e *BallotEngine) candidates(ctx context.Context, h *model.Household, s *model.Settings) ([]model.Candidate, error) {
	var tower *string
	if s.IsTowerwise && h.Tower != nil {
		tower = h.Tower
	}
	list, err := e.Households.ListCandidates(ctx, h.SocietyName, tower)
	if err != nil {
		return nil, Internal(err)
	}
	return list, nil
}

func (e *BallotEngine) revoke(ctx context.Context, sess model.Session) {
	if e.Sessions == nil {
		return
	}
	if err := e.Sessions.Revoke(ctx, sess); err != nil {
		e.Log.WithError(err).WithField("session", sess.ID).Warn("session revoke failed")
	}
}

// Sheet returns the ballot of the household bound to sess.  A household
// that already voted gets ErrAlreadyVoted and its session is revoked.
func (e *BallotEngine) Sheet(ctx context.Context, sess model.Session) (*Sheet, error) {
	h, err := e.household(ctx, sess)
	if err != nil {
		return nil, err
	}
	if h.VotedInCycle {
		e.revoke(ctx, sess)
		return nil, ErrAlreadyVoted
	}
	s, err := e.settings(ctx, h.SocietyName)
	if err != nil {
		return nil, err
	}
	list, err := e.candidates(ctx, h, s)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoCandidates
	}
	sheet := &Sheet{Society: h.SocietyName, MaxSelections: s.MaxCandidatesSelection, Candidates: list}
	if s.IsTowerwise {
		sheet.Tower = h.Tower
	}
	return sheet, nil
}

// normalizeSelection trims the selected names, drops blanks and rejects
// duplicates.
func normalizeSelection(selected []string) ([]string, error) {
	out := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, ErrDuplicateSelection
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, ErrNoSelection
	}
	return out, nil
}

// Submit records the selections of the household bound to sess.
//
// Eligibility is re-checked against fresh state before anything is written,
// then the voted flag, the society's voted_count and one tally per selected
// candidate are updated in a single transaction.  The voted flag and the
// capacity counter are conditional updates, so two concurrent submissions
// for the same household commit at most once, and the society never goes
// beyond max_voters.  Any rejection leaves the store untouched.
func (e *BallotEngine) Submit(ctx context.Context, sess model.Session, selected []string) (rec *Receipt, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = AsError(err).Code
		}
		metrics.ObserveBallot(outcome)
	}()

	h, err := e.household(ctx, sess)
	if err != nil {
		return nil, err
	}
	if h.VotedInCycle {
		e.revoke(ctx, sess)
		return nil, ErrAlreadyVoted
	}
	names, err := normalizeSelection(selected)
	if err != nil {
		return nil, err
	}

	sched, err := e.Communities.GetSchedule(ctx, h.SocietyName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduleNotSet
		}
		return nil, Internal(err)
	}
	if err := e.Gate.RequireSchedule(sched); err != nil {
		return nil, err
	}
	if err := e.Gate.Admit(h, sched, ModeVote); err != nil {
		return nil, err
	}

	s, err := e.settings(ctx, h.SocietyName)
	if err != nil {
		return nil, err
	}
	if len(names) > s.MaxCandidatesSelection {
		return nil, ErrTooManySelections
	}
	if s.CapacityReached() {
		return nil, ErrCapacityReached
	}
	list, err := e.candidates(ctx, h, s)
	if err != nil {
		return nil, err
	}
	onBallot := make(map[string]struct{}, len(list))
	for _, c := range list {
		onBallot[c.Name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := onBallot[name]; !ok {
			return nil, ErrUnknownCandidate
		}
	}

	votedAt := e.Gate.now()
	if err := e.commit(ctx, h, names, votedAt); err != nil {
		return nil, err
	}

	e.revoke(ctx, sess)
	if e.Events != nil {
		ev := queue.VoteCastEvent{
			SocietyName: h.SocietyName,
			Tower:       h.TowerKey(),
			HouseholdID: h.ID,
			Selections:  len(names),
			VotedAt:     votedAt.Format(time.RFC3339),
		}
		if err := e.Events.PublishVoteCast(ctx, ev); err != nil {
			e.Log.WithError(err).Warn("vote event not published")
		}
	}
	e.Log.WithFields(logrus.Fields{
		"society":    h.SocietyName,
		"household":  h.ID,
		"selections": len(names),
	}).Info("ballot committed")

	return &Receipt{HouseholdID: h.ID, Society: h.SocietyName, VotedAt: votedAt, Selections: len(names)}, nil
}

// commit performs the ballot writes in one transaction.  Once begun, the
// transaction ignores request cancellation.
func (e *BallotEngine) commit(ctx context.Context, h *model.Household, names []string, at time.Time) error {
	ctx = context.WithoutCancel(ctx)
	tx, err := e.Communities.DB().BeginTxx(ctx, nil)
	if err != nil {
		return Internal(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := e.Households.MarkVotedTx(ctx, tx, h.ID, at); err != nil {
		if errors.Is(err, repository.ErrAlreadyVoted) {
			return ErrAlreadyVoted
		}
		return Internal(err)
	}
	if err := e.Communities.IncrementVotedCountTx(ctx, tx, h.SocietyName); err != nil {
		if errors.Is(err, repository.ErrCapacityReached) {
			return ErrCapacityReached
		}
		return Internal(err)
	}
	tower := h.TowerKey()
	for _, name := range names {
		if err := e.Tallies.IncrementTx(ctx, tx, h.SocietyName, tower, name); err != nil {
			return Internal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Internal(err)
	}
	committed = true
	return nil
}
