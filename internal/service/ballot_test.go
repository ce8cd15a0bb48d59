package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/queue"
	"github.com/iliyamo/society-voting/internal/testutil"
)

type recordingRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (r *recordingRevoker) Revoke(_ context.Context, sess model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, sess.ID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.VoteCastEvent
	err    error
}

func (p *recordingPublisher) PublishVoteCast(_ context.Context, ev queue.VoteCastEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (f *fixture) engine(rev SessionRevoker, pub EventPublisher) *BallotEngine {
	return NewBallotEngine(f.communities, f.households, f.tallies, f.gate, rev, pub, f.log)
}

func sessionFor(id uint64, society string) model.Session {
	return model.Session{ID: "sess-" + society, HouseholdID: id, SocietyName: society, ExpiresAt: t0.Add(15 * time.Minute)}
}

// seedBallot adds contestants Alice and Bob in tower T and Carol in tower U.
func seedBallot(t *testing.T, f *fixture) {
	testutil.SeedHousehold(t, f.db, testutil.Household{Society: "Palm", Tower: testutil.Str("T"), Flat: testutil.Str("901"), Code: "x1", Contestant: "Alice", Symbol: testutil.Str("lamp")})
	testutil.SeedHousehold(t, f.db, testutil.Household{Society: "Palm", Tower: testutil.Str("T"), Flat: testutil.Str("902"), Code: "x2", Contestant: "Bob"})
	testutil.SeedHousehold(t, f.db, testutil.Household{Society: "Palm", Tower: testutil.Str("U"), Flat: testutil.Str("903"), Code: "x3", Contestant: "Carol"})
}

func voter(t *testing.T, f *fixture, tower, flat string) uint64 {
	return testutil.SeedHousehold(t, f.db, testutil.Household{Society: "Palm", Tower: testutil.Str(tower), Flat: testutil.Str(flat), Code: "c-" + tower + flat})
}

func TestSubmitTallies(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	rev, pub := &recordingRevoker{}, &recordingPublisher{}
	e := f.engine(rev, pub)
	ctx := context.Background()

	first := voter(t, f, "T", "101")
	rec, err := e.Submit(ctx, sessionFor(first, "Palm"), []string{"Alice", " Bob "})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Selections)
	assert.True(t, t0.Equal(rec.VotedAt))

	second := voter(t, f, "T", "102")
	_, err = e.Submit(ctx, sessionFor(second, "Palm"), []string{"Alice"})
	require.NoError(t, err)

	tallies := testutil.LiveTallies(t, f.db, "Palm")
	require.Len(t, tallies, 2)
	assert.Equal(t, "Alice", tallies[0].ContestantName)
	assert.Equal(t, "T", tallies[0].Tower)
	assert.Equal(t, 2, tallies[0].VoteCount)
	assert.Equal(t, "Bob", tallies[1].ContestantName)
	assert.Equal(t, 1, tallies[1].VoteCount)

	h := f.household(t, first)
	assert.True(t, h.VotedInCycle)
	require.NotNil(t, h.VotedAt)
	assert.True(t, t0.Equal(*h.VotedAt))
	assert.Equal(t, 2, f.settings(t, "Palm").VotedCount)

	assert.Len(t, rev.revoked, 2)
	require.Len(t, pub.events, 2)
	assert.Equal(t, queue.VoteCastEvent{SocietyName: "Palm", Tower: "T", HouseholdID: first, Selections: 2, VotedAt: "2025-03-05T10:00:00Z"}, pub.events[0])
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	e := f.engine(nil, nil)
	id := voter(t, f, "T", "101")
	sess := sessionFor(id, "Palm")

	_, err := e.Submit(context.Background(), sess, []string{"Alice"})
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), sess, []string{"Bob"})
	require.ErrorIs(t, err, ErrAlreadyVoted)

	tallies := testutil.LiveTallies(t, f.db, "Palm")
	require.Len(t, tallies, 1)
	assert.Equal(t, 1, f.settings(t, "Palm").VotedCount)
}

func TestSubmitCapacityLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	testutil.SeedSettings(t, f.db, model.Settings{SocietyName: "Palm", HousingType: "apartment", MaxCandidatesSelection: 2, MaxVoters: 1, VotedCount: 1})
	start, end := t0.Add(-time.Hour), t0.Add(time.Hour)
	testutil.SeedSchedule(t, f.db, "Palm", &start, &end)
	seedBallot(t, f)
	e := f.engine(nil, nil)
	id := voter(t, f, "T", "101")

	before := f.household(t, id)
	_, err := e.Submit(context.Background(), sessionFor(id, "Palm"), []string{"Alice"})
	require.ErrorIs(t, err, ErrCapacityReached)

	assert.Equal(t, before, f.household(t, id))
	assert.Equal(t, 1, f.settings(t, "Palm").VotedCount)
	tallies := testutil.LiveTallies(t, f.db, "Palm")
	assert.Empty(t, tallies)
}

func TestSubmitScheduleBoundary(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	e := f.engine(nil, nil)
	end := t0.Add(time.Hour)

	f.clock = end
	id := voter(t, f, "T", "101")
	_, err := e.Submit(context.Background(), sessionFor(id, "Palm"), []string{"Alice"})
	require.ErrorIs(t, err, ErrVotingClosed)
	assert.False(t, f.household(t, id).VotedInCycle)

	f.clock = end.Add(-time.Millisecond)
	_, err = e.Submit(context.Background(), sessionFor(id, "Palm"), []string{"Alice"})
	require.NoError(t, err)

	f.clock = t0.Add(-time.Hour) // exactly the start
	other := voter(t, f, "T", "102")
	_, err = e.Submit(context.Background(), sessionFor(other, "Palm"), []string{"Alice"})
	require.NoError(t, err)
}

func TestSubmitValidatesSelection(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	e := f.engine(nil, nil)
	id := voter(t, f, "T", "101")
	sess := sessionFor(id, "Palm")
	ctx := context.Background()

	cases := []struct {
		selected []string
		want     error
	}{
		{nil, ErrNoSelection},
		{[]string{" ", ""}, ErrNoSelection},
		{[]string{"Alice", "Alice"}, ErrDuplicateSelection},
		{[]string{"Alice", "Bob", "Carol"}, ErrTooManySelections},
		{[]string{"Mallory"}, ErrUnknownCandidate},
	}
	for _, tc := range cases {
		_, err := e.Submit(ctx, sess, tc.selected)
		require.ErrorIs(t, err, tc.want, "%v", tc.selected)
	}
	assert.False(t, f.household(t, id).VotedInCycle)
	assert.Zero(t, f.settings(t, "Palm").VotedCount)
}

func TestSubmitTowerwiseBallot(t *testing.T) {
	f := newFixture(t)
	testutil.SeedSettings(t, f.db, model.Settings{SocietyName: "Palm", HousingType: "apartment", MaxCandidatesSelection: 1, IsTowerwise: true, MaxVoters: 10})
	start, end := t0.Add(-time.Hour), t0.Add(time.Hour)
	testutil.SeedSchedule(t, f.db, "Palm", &start, &end)
	seedBallot(t, f)
	e := f.engine(nil, nil)
	id := voter(t, f, "U", "101")
	sess := sessionFor(id, "Palm")

	sheet, err := e.Sheet(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, sheet.Candidates, 1)
	assert.Equal(t, "Carol", sheet.Candidates[0].Name)
	assert.Equal(t, "U", *sheet.Tower)
	assert.Equal(t, 1, sheet.MaxSelections)

	// a candidate of another tower is not on this ballot
	_, err = e.Submit(context.Background(), sess, []string{"Alice"})
	require.ErrorIs(t, err, ErrUnknownCandidate)
	_, err = e.Submit(context.Background(), sess, []string{"Carol"})
	require.NoError(t, err)
}

func TestSheet(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	rev := &recordingRevoker{}
	e := f.engine(rev, nil)
	ctx := context.Background()
	id := voter(t, f, "T", "101")

	_, err := e.Sheet(ctx, sessionFor(id, "Palm"))
	require.ErrorIs(t, err, ErrNoCandidates)

	seedBallot(t, f)
	sheet, err := e.Sheet(ctx, sessionFor(id, "Palm"))
	require.NoError(t, err)
	names := make([]string, 0, len(sheet.Candidates))
	for _, c := range sheet.Candidates {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)
	assert.Equal(t, "lamp", *sheet.Candidates[0].Symbol)
	assert.Nil(t, sheet.Tower)

	_, err = e.Sheet(ctx, sessionFor(id, "Elsewhere"))
	require.ErrorIs(t, err, ErrHouseholdNotFound)

	votedAt := t0
	voted := testutil.SeedHousehold(t, f.db, testutil.Household{Society: "Palm", Tower: testutil.Str("T"), Flat: testutil.Str("5"), Code: "v", VotedAt: &votedAt})
	_, err = e.Sheet(ctx, sessionFor(voted, "Palm"))
	require.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Equal(t, []string{"sess-Palm"}, rev.revoked)
}

func TestSubmitPublishFailureKeepsVote(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	pub := &recordingPublisher{err: assert.AnError}
	e := f.engine(nil, pub)
	id := voter(t, f, "T", "101")

	_, err := e.Submit(context.Background(), sessionFor(id, "Palm"), []string{"Bob"})
	require.NoError(t, err)
	assert.True(t, f.household(t, id).VotedInCycle)
	assert.Len(t, pub.events, 1)
}

func TestSubmitConcurrentSameHousehold(t *testing.T) {
	f := newFixture(t)
	f.society(t, "Palm")
	seedBallot(t, f)
	e := f.engine(nil, nil)
	id := voter(t, f, "T", "101")
	sess := sessionFor(id, "Palm")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Submit(context.Background(), sess, []string{"Alice"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyVoted)
	}
	assert.Equal(t, 1, ok)
	tallies := testutil.LiveTallies(t, f.db, "Palm")
	require.Len(t, tallies, 1)
	assert.Equal(t, 1, tallies[0].VoteCount)
	assert.Equal(t, 1, f.settings(t, "Palm").VotedCount)
}

func TestSubmitConcurrentCapacity(t *testing.T) {
	f := newFixture(t)
	testutil.SeedSettings(t, f.db, model.Settings{SocietyName: "Palm", HousingType: "apartment", MaxCandidatesSelection: 1, MaxVoters: 3})
	start, end := t0.Add(-time.Hour), t0.Add(time.Hour)
	testutil.SeedSchedule(t, f.db, "Palm", &start, &end)
	seedBallot(t, f)
	e := f.engine(nil, nil)

	const n = 8
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = voter(t, f, "T", string(rune('a'+i)))
	}
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Submit(context.Background(), sessionFor(ids[i], "Palm"), []string{"Bob"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrCapacityReached)
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 3, f.settings(t, "Palm").VotedCount)
	tallies := testutil.LiveTallies(t, f.db, "Palm")
	require.Len(t, tallies, 1)
	assert.Equal(t, 3, tallies[0].VoteCount)

	voted := 0
	for _, id := range ids {
		if f.household(t, id).VotedInCycle {
			voted++
		}
	}
	assert.Equal(t, 3, voted)
}
