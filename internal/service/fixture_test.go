package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/repository"
	"github.com/iliyamo/society-voting/internal/testutil"
)

var t0 = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

// fixture wires the engine to a fresh SQLite store and a fixed clock.
type fixture struct {
	db          *sqlx.DB
	communities *repository.CommunityRepo
	households  *repository.HouseholdRepo
	tallies     *repository.TallyRepo
	clock       time.Time
	gate        Gate
	log         *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log, _ := test.NewNullLogger()
	f := &fixture{
		db:          db,
		communities: repository.NewCommunityRepo(db),
		households:  repository.NewHouseholdRepo(db),
		tallies:     repository.NewTallyRepo(db),
		clock:       t0,
		log:         log,
	}
	f.gate = Gate{Now: func() time.Time { return f.clock }}
	return f
}

// society seeds an apartment society allowing two selections and ten
// voters, with a window of one hour either side of t0.
func (f *fixture) society(t *testing.T, name string) {
	t.Helper()
	testutil.SeedSettings(t, f.db, model.Settings{
		SocietyName:            name,
		HousingType:            "Apartment",
		MaxCandidatesSelection: 2,
		MaxVoters:              10,
	})
	start, end := t0.Add(-time.Hour), t0.Add(time.Hour)
	testutil.SeedSchedule(t, f.db, name, &start, &end)
}

func (f *fixture) household(t *testing.T, id uint64) *model.Household {
	t.Helper()
	h, err := f.households.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load household %d: %v", id, err)
	}
	return h
}

func (f *fixture) settings(t *testing.T, society string) *model.Settings {
	t.Helper()
	s, err := f.communities.GetSettings(context.Background(), society)
	if err != nil {
		t.Fatalf("load settings %s: %v", society, err)
	}
	return s
}
