package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/testutil"
)

func TestGetSettingsAndSchedule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewCommunityRepo(db)
	ctx := context.Background()

	_, err := repo.GetSettings(ctx, "Oak")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetSchedule(ctx, "Oak")
	assert.ErrorIs(t, err, ErrNotFound)

	testutil.SeedSettings(t, db, model.Settings{SocietyName: "Oak", HousingType: "Apartment", MaxCandidatesSelection: 2, IsTowerwise: true, MaxVoters: 5})
	start := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	testutil.SeedSchedule(t, db, "Oak", &start, &end)
	testutil.SeedSchedule(t, db, "Elm", nil, nil)

	s, err := repo.GetSettings(ctx, "Oak")
	require.NoError(t, err)
	assert.Equal(t, model.HousingApartment, s.Layout())
	assert.True(t, s.IsTowerwise)
	assert.Equal(t, 2, s.MaxCandidatesSelection)

	sched, err := repo.GetSchedule(ctx, "Oak")
	require.NoError(t, err)
	require.True(t, sched.Configured())
	assert.True(t, start.Equal(*sched.Start))
	assert.True(t, end.Equal(*sched.End))

	open, err := repo.GetSchedule(ctx, "Elm")
	require.NoError(t, err)
	assert.False(t, open.Configured())
}

func TestIncrementVotedCountStopsAtCapacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewCommunityRepo(db)
	ctx := context.Background()
	testutil.SeedSettings(t, db, model.Settings{SocietyName: "Oak", HousingType: "Apartment", MaxCandidatesSelection: 1, MaxVoters: 2})

	for i := 0; i < 2; i++ {
		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, repo.IncrementVotedCountTx(ctx, tx, "Oak"))
		require.NoError(t, tx.Commit())
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.IncrementVotedCountTx(ctx, tx, "Oak"), ErrCapacityReached)
	require.NoError(t, tx.Rollback())

	s, err := repo.GetSettings(ctx, "Oak")
	require.NoError(t, err)
	assert.Equal(t, 2, s.VotedCount)
	assert.True(t, s.CapacityReached())
}

func TestTallyIncrementUpserts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tallies := NewTallyRepo(db)
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tallies.IncrementTx(ctx, tx, "Oak", "A", "Amy"))
	require.NoError(t, tallies.IncrementTx(ctx, tx, "Oak", "A", "Amy"))
	require.NoError(t, tallies.IncrementTx(ctx, tx, "Oak", "", "Amy"))
	require.NoError(t, tallies.IncrementTx(ctx, tx, "Oak", "", "Amy"))
	require.NoError(t, tallies.IncrementTx(ctx, tx, "Elm", "A", "Amy"))
	require.NoError(t, tx.Commit())

	live := testutil.LiveTallies(t, db, "Oak")
	require.Len(t, live, 2)
	assert.Equal(t, "", live[0].Tower)
	assert.Equal(t, 2, live[0].VoteCount)
	assert.Equal(t, "A", live[1].Tower)
	assert.Equal(t, 2, live[1].VoteCount)
}

func TestSessionRepoWithoutRedis(t *testing.T) {
	repo := NewSessionRepo(nil, "")
	sess := model.Session{ID: "abc", HouseholdID: 1, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Revoke(context.Background(), sess))
	revoked, err := repo.IsRevoked(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, "session:revoked:abc", repo.key("abc"))
}
