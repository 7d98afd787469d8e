// README: Matcher unit tests with in-memory fakes.
package dispatch

import (
	"context"
	"errors"
	"testing"

	"leafline/internal/config"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/order"
	"leafline/internal/types"
)

func TestRankCandidates_DistanceThenRating(t *testing.T) {
	cs := []Candidate{
		{Driver: &driver.Driver{ID: "far", Rating: 5.0}, DistanceKm: 8},
		{Driver: &driver.Driver{ID: "near_low", Rating: 3.2}, DistanceKm: 1},
		{Driver: &driver.Driver{ID: "mid_b", Rating: 4.5}, DistanceKm: 4},
		{Driver: &driver.Driver{ID: "mid_a", Rating: 4.9}, DistanceKm: 4},
	}
	RankCandidates(cs)

	want := []types.ID{"near_low", "mid_a", "mid_b", "far"}
	for i, id := range want {
		if cs[i].Driver.ID != id {
			t.Fatalf("rank[%d] = %s, want %s", i, cs[i].Driver.ID, id)
		}
	}
}

func TestRankCandidates_TieBreakByID(t *testing.T) {
	cs := []Candidate{
		{Driver: &driver.Driver{ID: "b", Rating: 4.0}, DistanceKm: 2},
		{Driver: &driver.Driver{ID: "a", Rating: 4.0}, DistanceKm: 2},
	}
	RankCandidates(cs)
	if cs[0].Driver.ID != "a" {
		t.Fatalf("expected deterministic id tie-break, got %s first", cs[0].Driver.ID)
	}
}

type fakeDirectory struct {
	drivers  map[types.ID]*driver.Driver
	nearby   []types.ID
	avail    map[types.ID]bool
	availErr error
}

func (f *fakeDirectory) Get(_ context.Context, id types.ID) (*driver.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	return d, nil
}

func (f *fakeDirectory) Nearby(_ context.Context, _ types.Point, _ float64, _ int) ([]types.ID, error) {
	return f.nearby, nil
}

func (f *fakeDirectory) SetAvailable(_ context.Context, id types.ID, available bool) error {
	if f.availErr != nil {
		return f.availErr
	}
	if f.avail == nil {
		f.avail = map[types.ID]bool{}
	}
	f.avail[id] = available
	return nil
}

type fakeBinder struct {
	assigned types.ID
	accepted types.ID
	err      error
}

func (f *fakeBinder) Assign(_ context.Context, orderID, driverID, _ types.ID) (*order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.assigned = driverID
	d := driverID
	return &order.Order{ID: orderID, Status: order.StatusAssigned, DriverID: &d}, nil
}

func (f *fakeBinder) Accept(_ context.Context, orderID, driverID types.ID) (*order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.accepted = driverID
	d := driverID
	return &order.Order{ID: orderID, Status: order.StatusAccepted, DriverID: &d}, nil
}

func testConfig() config.DispatchConfig {
	return config.DispatchConfig{SearchRadiusKm: 15, MaxCandidates: 10}
}

func TestFindCandidates_FiltersIneligible(t *testing.T) {
	loc := &driver.Location{Point: types.Point{Lat: 34.0, Lng: -118.2}, TsMs: 1}
	dir := &fakeDirectory{
		nearby: []types.ID{"ok", "offline", "busy", "unapproved", "ghost"},
		drivers: map[types.ID]*driver.Driver{
			"ok":         {ID: "ok", Approved: true, Online: true, Available: true, Location: loc},
			"offline":    {ID: "offline", Approved: true, Online: false, Available: true, Location: loc},
			"busy":       {ID: "busy", Approved: true, Online: true, Available: false, Location: loc},
			"unapproved": {ID: "unapproved", Approved: false, Online: true, Available: true, Location: loc},
		},
	}
	svc := NewService(&fakeBinder{}, dir, testConfig())

	cs, err := svc.FindCandidates(context.Background(), &order.Order{Dropoff: types.Point{Lat: 34.1, Lng: -118.3}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(cs) != 1 || cs[0].Driver.ID != "ok" {
		t.Fatalf("candidates = %+v, want only 'ok'", cs)
	}
}

func TestAssign_RequiresOnlineAvailable(t *testing.T) {
	dir := &fakeDirectory{drivers: map[types.ID]*driver.Driver{
		"busy": {ID: "busy", Approved: true, Online: true, Available: false},
	}}
	binder := &fakeBinder{}
	svc := NewService(binder, dir, testConfig())

	_, err := svc.Assign(context.Background(), "o1", "busy", "admin1")
	if !errors.Is(err, ErrDriverUnavailable) {
		t.Fatalf("err = %v, want ErrDriverUnavailable", err)
	}
	if binder.assigned != "" {
		t.Fatal("order bound despite unavailable driver")
	}
}

func TestAccept_MarksDriverUnavailable(t *testing.T) {
	dir := &fakeDirectory{drivers: map[types.ID]*driver.Driver{
		"d1": {ID: "d1", Approved: true, Online: true, Available: true},
	}}
	binder := &fakeBinder{}
	svc := NewService(binder, dir, testConfig())

	o, err := svc.Accept(context.Background(), "o1", "d1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.Status != order.StatusAccepted {
		t.Fatalf("status = %s", o.Status)
	}
	if avail, ok := dir.avail["d1"]; !ok || avail {
		t.Fatal("driver still available after accept")
	}
}

func TestAccept_AvailabilityFlipFailureKeepsBind(t *testing.T) {
	dir := &fakeDirectory{
		drivers:  map[types.ID]*driver.Driver{"d1": {ID: "d1", Approved: true, Online: true, Available: true}},
		availErr: errors.New("connection reset"),
	}
	binder := &fakeBinder{}
	svc := NewService(binder, dir, testConfig())

	o, err := svc.Accept(context.Background(), "o1", "d1")
	if err != nil {
		t.Fatalf("won accept reported as error: %v", err)
	}
	if o.DriverID == nil || *o.DriverID != "d1" {
		t.Fatalf("order not bound to winner: %+v", o)
	}
	if binder.accepted != "d1" {
		t.Fatalf("binder accepted = %s, want d1", binder.accepted)
	}
}

func TestAccept_RaceLossPropagates(t *testing.T) {
	dir := &fakeDirectory{drivers: map[types.ID]*driver.Driver{
		"d1": {ID: "d1", Approved: true, Online: true, Available: true},
	}}
	binder := &fakeBinder{err: order.ErrAlreadyAssigned}
	svc := NewService(binder, dir, testConfig())

	_, err := svc.Accept(context.Background(), "o1", "d1")
	if !errors.Is(err, order.ErrAlreadyAssigned) {
		t.Fatalf("err = %v, want ErrAlreadyAssigned", err)
	}
	if len(dir.avail) != 0 {
		t.Fatal("availability touched after losing the race")
	}
}
