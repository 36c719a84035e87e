package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// heuristicsParams collects the knobs a heuristics test can override.
type heuristicsParams struct {
	running      transit.RunningServices
	availability transit.StationAvailability
	reachability transit.Reachability
	changesLimit int
	maxDuration  time.Duration
	open         transit.TimeRange
}

func newTestHeuristics(t *testing.T, p heuristicsParams) *ServiceHeuristics {
	t.Helper()

	if p.running == nil {
		p.running = stubRunning{onDate: true, atTime: true}
	}
	if p.availability == nil {
		p.availability = stubAvailability{}
	}
	if p.reachability == nil {
		p.reachability = stubReachability{}
	}
	if p.maxDuration == 0 {
		p.maxDuration = 2 * time.Hour
	}
	if p.open == (transit.TimeRange{}) {
		p.open = transit.NewTimeRange(transit.NewClockTime(7, 0), transit.NewClockTime(10, 0))
	}

	constraints, err := NewJourneyConstraints(
		p.running, p.availability, p.reachability,
		transit.NewModeSet(transit.ModeTram), p.maxDuration, 2, 1,
		p.open, globalFixture.Logger)
	require.NoError(t, err)
	return NewServiceHeuristics(constraints, transit.NewClockTime(8, 0), p.changesLimit)
}

func testNode(labels ...graph.Label) *graph.Node {
	store := graph.NewStore(graph.NewIDAllocator(), globalFixture.Logger)
	return store.CreateNode(labels...)
}

func TestConstraintsRejectEmptyModes(t *testing.T) {
	_, err := NewJourneyConstraints(
		stubRunning{}, stubAvailability{}, stubReachability{},
		transit.NewModeSet(), time.Hour, 2, 1,
		transit.TimeRange{}, globalFixture.Logger)
	assert.Error(t, err)
}

func TestConstraintsPathLengthTakesLargestMode(t *testing.T) {
	constraints, err := NewJourneyConstraints(
		stubRunning{}, stubAvailability{}, stubReachability{},
		transit.NewModeSet(transit.ModeTram, transit.ModeTrain), time.Hour, 2, 1,
		transit.TimeRange{}, globalFixture.Logger)
	require.NoError(t, err)
	assert.Equal(t, 2000, constraints.MaxPathLength())
}

func TestCheckNumberChanges(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{changesLimit: 2})
	rec := NewRecorder(false, globalFixture.Logger)

	assert.True(t, h.CheckNumberChanges(2, HowIGotHere{}, rec).IsValid())

	got := h.CheckNumberChanges(3, HowIGotHere{}, rec)
	assert.False(t, got.IsValid())
	assert.Equal(t, ReasonTooManyChanges, got.Code)
}

func TestCheckConnectionLimits(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{changesLimit: 2})
	rec := NewRecorder(false, globalFixture.Logger)

	assert.True(t, h.CheckNumberWalkingConnections(2, HowIGotHere{}, rec).IsValid())
	assert.Equal(t, ReasonTooManyWalkingConnections,
		h.CheckNumberWalkingConnections(3, HowIGotHere{}, rec).Code)

	assert.True(t, h.CheckNumberNeighbourConnections(1, HowIGotHere{}, rec).IsValid())
	assert.Equal(t, ReasonTooManyNeighbourConnections,
		h.CheckNumberNeighbourConnections(2, HowIGotHere{}, rec).Code)
}

func TestJourneyDurationUnderLimit(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{maxDuration: 30 * time.Minute})
	rec := NewRecorder(false, globalFixture.Logger)

	assert.True(t, h.JourneyDurationUnderLimit(30*time.Minute, HowIGotHere{}, rec).IsValid())
	assert.Equal(t, ReasonTookTooLong,
		h.JourneyDurationUnderLimit(31*time.Minute, HowIGotHere{}, rec).Code)
}

func TestCheckTime(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{})
	maxWait := 25 * time.Minute

	minute := testNode(graph.LabelMinute)
	minute.SetTime(transit.NewClockTime(8, 30))
	minute.SetTrip("trip-1")

	cases := []struct {
		name    string
		current transit.ClockTime
		want    ReasonCode
	}{
		{"at departure", transit.NewClockTime(8, 30), ReasonTimeOK},
		{"start of wait window", transit.NewClockTime(8, 5), ReasonTimeOK},
		{"too early to wait", transit.NewClockTime(8, 4), ReasonDoesNotOperateOnTime},
		{"already departed", transit.NewClockTime(8, 31), ReasonAlreadyDeparted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewRecorder(false, globalFixture.Logger)
			got := h.CheckTime(minute, tc.current, maxWait, HowIGotHere{}, rec)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestCheckTimeDestinationClosed(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{
		open: transit.NewTimeRange(transit.NewClockTime(7, 0), transit.NewClockTime(10, 0)),
	})
	rec := NewRecorder(false, globalFixture.Logger)

	minute := testNode(graph.LabelMinute)
	minute.SetTime(transit.NewClockTime(10, 30))

	got := h.CheckTime(minute, transit.NewClockTime(8, 0), 25*time.Minute, HowIGotHere{}, rec)
	assert.Equal(t, ReasonDestinationUnavailable, got.Code)
}

func TestCheckTimeMissingProperty(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{})
	rec := NewRecorder(false, globalFixture.Logger)

	bare := testNode(graph.LabelMinute)
	got := h.CheckTime(bare, transit.NewClockTime(8, 0), 25*time.Minute, HowIGotHere{}, rec)
	assert.False(t, got.IsValid())
}

func TestCheckNotBeenOnTripBefore(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{})
	rec := NewRecorder(false, globalFixture.Logger)

	minute := testNode(graph.LabelMinute)
	minute.SetTime(transit.NewClockTime(8, 30))
	minute.SetTrip("trip-1")

	fresh := stubState{}
	assert.True(t, h.CheckNotBeenOnTripBefore(minute, fresh, HowIGotHere{}, rec).IsValid())

	ridden := stubState{alreadyDeparted: true}
	assert.Equal(t, ReasonSameTrip,
		h.CheckNotBeenOnTripBefore(minute, ridden, HowIGotHere{}, rec).Code)
}

func TestInterestedInHour(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{})
	maxWait := 25 * time.Minute

	cases := []struct {
		name    string
		hour    int
		current transit.ClockTime
		want    ReasonCode
	}{
		{"inside the hour", 8, transit.NewClockTime(8, 10), ReasonHourOK},
		{"waiting into the hour", 8, transit.NewClockTime(7, 50), ReasonHourOK},
		{"hour has passed", 8, transit.NewClockTime(9, 1), ReasonNotAtHour},
		{"too early for the hour", 9, transit.NewClockTime(8, 10), ReasonNotAtHour},
		{"midnight rollover", 0, transit.NewClockTime(23, 50), ReasonHourOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewRecorder(false, globalFixture.Logger)
			hourNode := testNode(graph.LabelHour)
			hourNode.SetHour(tc.hour)

			got := h.InterestedInHour(hourNode, tc.current, maxWait, HowIGotHere{}, rec)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestCheckServiceDateAndTime(t *testing.T) {
	service := testNode(graph.LabelService)
	service.SetService("svc-1")
	visit := transit.NewClockTime(8, 0)

	cases := []struct {
		name    string
		running stubRunning
		want    ReasonCode
	}{
		{"running", stubRunning{onDate: true, atTime: true}, ReasonServiceDateOK},
		{"not on date", stubRunning{onDate: false, atTime: true}, ReasonNotOnQueryDate},
		{"not at time", stubRunning{onDate: true, atTime: false}, ReasonServiceNotRunningAtTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHeuristics(t, heuristicsParams{running: tc.running})
			rec := NewRecorder(false, globalFixture.Logger)

			got := h.CheckServiceDateAndTime(service, visit, 25*time.Minute, HowIGotHere{}, rec)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestCheckStationOpen(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{
		availability: stubAvailability{"shut": {}},
	})

	open := testNode(graph.LabelRouteStation)
	open.SetStation("running")
	rec := NewRecorder(false, globalFixture.Logger)
	assert.True(t, h.CheckStationOpen(open, HowIGotHere{}, rec).IsValid())

	closed := testNode(graph.LabelRouteStation)
	closed.SetStation("shut")
	assert.Equal(t, ReasonStationClosed, h.CheckStationOpen(closed, HowIGotHere{}, rec).Code)
}

func TestCheckModes(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{})
	rec := NewRecorder(false, globalFixture.Logger)
	requested := graph.LabelsForModes(transit.NewModeSet(transit.ModeTram))

	tramStop := graph.NewLabelSet(graph.LabelRouteStation, graph.LabelTram)
	assert.Equal(t, ReasonTransportModeOK, h.CheckModes(tramStop, requested, HowIGotHere{}, rec).Code)

	busStop := graph.NewLabelSet(graph.LabelRouteStation, graph.LabelBus)
	assert.Equal(t, ReasonTransportModeWrong, h.CheckModes(busStop, requested, HowIGotHere{}, rec).Code)
}

func TestCheckModesMatchForFinalChange(t *testing.T) {
	h := newTestHeuristics(t, heuristicsParams{changesLimit: 2})
	rec := NewRecorder(false, globalFixture.Logger)
	destination := graph.LabelsForModes(transit.NewModeSet(transit.ModeTram))
	busStop := graph.NewLabelSet(graph.LabelRouteStation, graph.LabelBus)

	// not yet at the final change, any mode may still work out
	assert.True(t, h.CheckModesMatchForFinalChange(0, busStop, destination, HowIGotHere{}, rec).IsValid())

	// the next boarding is the last allowed one and the modes cannot meet
	got := h.CheckModesMatchForFinalChange(1, busStop, destination, HowIGotHere{}, rec)
	assert.Equal(t, ReasonNotReachable, got.Code)
}

func TestCanReachDestination(t *testing.T) {
	route := testNode(graph.LabelRouteStation, graph.LabelTram)
	route.SetRoute("red")
	route.SetStation("alpha")
	visit := transit.NewClockTime(8, 0)

	cases := []struct {
		name    string
		reach   stubReachability
		changes int
		want    ReasonCode
	}{
		{"same route", stubReachability{fewest: 0}, 0, ReasonReachable},
		{"budget exactly fits", stubReachability{fewest: 2}, 0, ReasonReachable},
		{"route needs too many changes", stubReachability{fewest: 3}, 0, ReasonNotReachable},
		{"budget already spent", stubReachability{fewest: 2}, 1, ReasonTooManyInterchanges},
		{"no service left", stubReachability{fewest: 0, unavailable: true}, 0, ReasonNotReachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHeuristics(t, heuristicsParams{changesLimit: 2, reachability: tc.reach})
			rec := NewRecorder(false, globalFixture.Logger)

			got := h.CanReachDestination(route, tc.changes, visit, HowIGotHere{}, rec)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestLowerCostIncludingInterchange(t *testing.T) {
	route := testNode(graph.LabelRouteStation, graph.LabelTram)
	route.SetRoute("red")
	rec := NewRecorder(false, globalFixture.Logger)

	direct := newTestHeuristics(t, heuristicsParams{reachability: stubReachability{fewest: 0}})
	assert.Equal(t, ReasonReachableSameRoute,
		direct.LowerCostIncludingInterchange(route, HowIGotHere{}, rec).Code)

	indirect := newTestHeuristics(t, heuristicsParams{reachability: stubReachability{fewest: 1}})
	assert.Equal(t, ReasonReachable,
		indirect.LowerCostIncludingInterchange(route, HowIGotHere{}, rec).Code)
}
