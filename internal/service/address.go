package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/repository"
)

// GroundFloor is the floor label of flats whose number has at most two
// digits.
const GroundFloor = "GF"

// AddressQuery holds the raw address fragments of a verification request.
// Lane and House are aliases of Tower and Flat in lane-based societies.
type AddressQuery struct {
	Tower string
	Flat  string
	Lane  string
	House string
}

// ResolveFilter turns the fragments into the predicate locating exactly one
// household.  The first matching form wins:
//
//	tower + flat        exact match on both
//	lane + house        same match, lane and house standing in for tower and flat
//	flat alone          match on flat
//	nothing at all      households without any address
//
// Any other combination is rejected with ErrIncompleteAddress.
func ResolveFilter(q AddressQuery) (model.AddressFilter, error) {
	tower := strings.TrimSpace(q.Tower)
	flat := strings.TrimSpace(q.Flat)
	lane := strings.TrimSpace(q.Lane)
	house := strings.TrimSpace(q.House)

	switch {
	case tower != "" && flat != "":
		return model.AddressFilter{Kind: model.FilterTowerFlat, Address: model.Address{Primary: tower, Secondary: flat}}, nil
	case lane != "" && house != "":
		return model.AddressFilter{Kind: model.FilterTowerFlat, Address: model.Address{Primary: lane, Secondary: house}}, nil
	case flat != "" && tower == "" && lane == "" && house == "":
		return model.AddressFilter{Kind: model.FilterFlat, Address: model.Address{Secondary: flat}}, nil
	case tower == "" && flat == "" && lane == "" && house == "":
		return model.AddressFilter{Kind: model.FilterUnaddressed}, nil
	}
	return model.AddressFilter{}, ErrIncompleteAddress
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NumericKey returns the integer formed by the digits embedded in s, or 0
// when s has none.  Values too large for uint64 sort last.
func NumericKey(s string) uint64 {
	d := digitsOf(s)
	if d == "" {
		return 0
	}
	n, err := strconv.ParseUint(d, 10, 64)
	if err != nil {
		return math.MaxUint64
	}
	return n
}

// NumericSort returns a copy of values ordered by NumericKey.  Ties keep
// their original relative order.
func NumericSort(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool { return NumericKey(out[i]) < NumericKey(out[j]) })
	return out
}

// Floor derives the floor label of a flat: the embedded digits without the
// last two, so "304" is on floor "3" and "1201" on floor "12".  Flats with
// two digits or fewer are on the ground floor.
func Floor(flat string) string {
	d := digitsOf(flat)
	if len(d) <= 2 {
		return GroundFloor
	}
	return d[:len(d)-2]
}

// Community type labels reported to clients.
const (
	CommunityApartment  = "apartment"
	CommunityLanes      = "individual_lanes"
	CommunityFlatOnly   = "individual_no_lanes"
	flatOnlyDropdownKey = "flats"
)

// Layout is the address directory of a society, shaped for the address
// pickers of the client.  Data is one of:
//
//	apartment            map[tower]map[floor][]flat
//	individual_lanes     map[lane][]house
//	individual_no_lanes  {"flats": []flat}
type Layout struct {
	CommunityType string      `json:"community_type"`
	Data          interface{} `json:"community_data"`
}

// BuildLayout groups address rows according to the housing type.  Rows
// without a flat are skipped; households without a tower are grouped under
// the empty key.
func BuildLayout(ht model.HousingType, rows []repository.AddressRow) (*Layout, error) {
	switch ht {
	case model.HousingApartment:
		if len(rows) == 0 {
			return nil, ErrNoHouseholds
		}
		grouped := make(map[string]map[string][]string)
		for _, r := range rows {
			if !r.Flat.Valid || strings.TrimSpace(r.Flat.String) == "" {
				continue
			}
			tower := strings.TrimSpace(r.Tower.String)
			floors, ok := grouped[tower]
			if !ok {
				floors = make(map[string][]string)
				grouped[tower] = floors
			}
			floor := Floor(r.Flat.String)
			floors[floor] = append(floors[floor], r.Flat.String)
		}
		for _, floors := range grouped {
			for f, flats := range floors {
				floors[f] = NumericSort(flats)
			}
		}
		return &Layout{CommunityType: CommunityApartment, Data: grouped}, nil

	case model.HousingLanes:
		if len(rows) == 0 {
			return nil, ErrNoHouseholds
		}
		lanes := make(map[string][]string)
		for _, r := range rows {
			if !r.Flat.Valid || strings.TrimSpace(r.Flat.String) == "" {
				continue
			}
			lane := strings.TrimSpace(r.Tower.String)
			lanes[lane] = append(lanes[lane], r.Flat.String)
		}
		for l, houses := range lanes {
			lanes[l] = NumericSort(houses)
		}
		return &Layout{CommunityType: CommunityLanes, Data: lanes}, nil
	}

	seen := make(map[string]struct{})
	flats := make([]string, 0, len(rows))
	for _, r := range rows {
		if !r.Flat.Valid || strings.TrimSpace(r.Flat.String) == "" {
			continue
		}
		if _, dup := seen[r.Flat.String]; dup {
			continue
		}
		seen[r.Flat.String] = struct{}{}
		flats = append(flats, r.Flat.String)
	}
	return &Layout{CommunityType: CommunityFlatOnly, Data: map[string][]string{flatOnlyDropdownKey: NumericSort(flats)}}, nil
}

// Directory serves the address directory of a society.
type Directory struct {
	Communities *repository.CommunityRepo
	Households  *repository.HouseholdRepo
}

// NewDirectory constructs a Directory.
func NewDirectory(communities *repository.CommunityRepo, households *repository.HouseholdRepo) *Directory {
	return &Directory{Communities: communities, Households: households}
}

// Layout loads the settings and households of a society and returns its
// address directory.
func (d *Directory) Layout(ctx context.Context, society string) (*Layout, error) {
	society = strings.TrimSpace(society)
	if society == "" {
		return nil, ErrMissingSociety
	}
	settings, err := d.Communities.GetSettings(ctx, society)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSocietyNotFound
		}
		return nil, Internal(err)
	}
	rows, err := d.Households.ListAddresses(ctx, society)
	if err != nil {
		return nil, Internal(err)
	}
	return BuildLayout(settings.Layout(), rows)
}
