package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// evalEnv is a committed miniature graph plus one evaluator over it. The
// nodes cover every category the evaluation pipeline branches on.
type evalEnv struct {
	txn  graph.Transaction
	rec  *Recorder
	eval *Evaluator

	start        graph.NodeID
	destination  graph.NodeID
	station      graph.NodeID
	routeStation graph.NodeID
	service      graph.NodeID
	minute       graph.NodeID
}

type evalParams struct {
	running      transit.RunningServices
	reachability transit.Reachability
	changesLimit int
	maxDuration  time.Duration
	depthFirst   bool
	running2     Running
}

func newEvalEnv(t *testing.T, p evalParams) *evalEnv {
	t.Helper()

	if p.running == nil {
		p.running = stubRunning{onDate: true, atTime: true}
	}
	if p.reachability == nil {
		p.reachability = stubReachability{}
	}
	if p.changesLimit == 0 {
		p.changesLimit = 3
	}
	if p.maxDuration == 0 {
		p.maxDuration = 2 * time.Hour
	}
	if p.running2 == nil {
		p.running2 = RunningFunc(func() bool { return true })
	}

	store := graph.NewStore(graph.NewIDAllocator(), globalFixture.Logger)
	manager := graph.NewManager(store, 0, globalFixture.Logger)

	mtxn := manager.BeginMutable()
	start, err := mtxn.CreateNode(graph.LabelStation)
	require.NoError(t, err)
	start.SetStation("origin")

	destination, err := mtxn.CreateNode(graph.LabelStation)
	require.NoError(t, err)
	destination.SetStation("target")

	station, err := mtxn.CreateNode(graph.LabelStation)
	require.NoError(t, err)
	station.SetStation("midway")

	routeStation, err := mtxn.CreateNode(graph.LabelRouteStation, graph.LabelTram)
	require.NoError(t, err)
	routeStation.SetRouteStation(transit.NewRouteStationID("red", "midway"))
	routeStation.SetRoute("red")
	routeStation.SetStation("midway")
	routeStation.SetTransportMode(transit.ModeTram)

	service, err := mtxn.CreateNode(graph.LabelService)
	require.NoError(t, err)
	service.SetService("svc-1")
	service.SetRoute("red")

	minute, err := mtxn.CreateNode(graph.LabelMinute)
	require.NoError(t, err)
	minute.SetTime(transit.NewClockTime(8, 10))
	minute.SetTrip("trip-1")

	require.NoError(t, mtxn.Commit())

	txn := manager.Begin()
	t.Cleanup(txn.Close)

	queryTime := transit.NewClockTime(8, 0)
	open := transit.NewTimeRange(queryTime, queryTime.Plus(p.maxDuration))
	constraints, err := NewJourneyConstraints(
		p.running, stubAvailability{}, p.reachability,
		transit.NewModeSet(transit.ModeTram), p.maxDuration, 2, 1,
		open, globalFixture.Logger)
	require.NoError(t, err)

	rec := NewRecorder(false, globalFixture.Logger)
	env := &evalEnv{
		txn:          txn,
		rec:          rec,
		start:        start.ID(),
		destination:  destination.ID(),
		station:      station.ID(),
		routeStation: routeStation.ID(),
		service:      service.ID(),
		minute:       minute.ID(),
	}
	env.eval = NewEvaluator(EvaluatorConfig{
		Heuristics:       NewServiceHeuristics(constraints, queryTime, p.changesLimit),
		Txn:              txn,
		DestinationIDs:   []graph.NodeID{destination.ID()},
		StartNodeID:      start.ID(),
		RequestedModes:   transit.NewModeSet(transit.ModeTram),
		DestinationModes: transit.NewModeSet(transit.ModeTram),
		Recorder:         rec,
		PreviousVisits:   NewPreviousVisits(false, stubCounts{n: 8}, globalFixture.Logger),
		BestSoFar:        NewLowestCostSeen(globalFixture.Logger),
		Running:          p.running2,
		MaxWait:          25 * time.Minute,
		MaxInitialWait:   13 * time.Minute,
		DepthFirst:       p.depthFirst,
		Logger:           globalFixture.Logger,
	})
	return env
}

func TestEvaluateSearchStopped(t *testing.T) {
	env := newEvalEnv(t, evalParams{running2: RunningFunc(func() bool { return false })})

	got := env.eval.Evaluate(NewPath(env.station), stubState{clock: transit.NewClockTime(8, 0)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonSearchStopped))
}

func TestEvaluateArrivalDominance(t *testing.T) {
	env := newEvalEnv(t, evalParams{changesLimit: 5})
	path := NewPath(env.destination)
	clock := transit.NewClockTime(8, 30)

	// first arrival always wins
	assert.Equal(t, ActionIncludeAndPrune,
		env.eval.Evaluate(path, stubState{duration: 20 * time.Minute, changes: 2, clock: clock}))

	// slower but fewer changes is still worth keeping
	assert.Equal(t, ActionIncludeAndPrune,
		env.eval.Evaluate(path, stubState{duration: 25 * time.Minute, changes: 1, clock: clock}))

	// dominated on both keys
	assert.Equal(t, ActionExcludeAndPrune,
		env.eval.Evaluate(path, stubState{duration: 30 * time.Minute, changes: 3, clock: clock}))
	assert.Equal(t, 1, env.rec.CountFor(ReasonArrivedMoreChanges))

	// equal changes arriving later
	assert.Equal(t, ActionExcludeAndPrune,
		env.eval.Evaluate(path, stubState{duration: 26 * time.Minute, changes: 1, clock: clock}))
	assert.Equal(t, 1, env.rec.CountFor(ReasonArrivedLater))

	// strictly faster wins whatever the changes
	assert.Equal(t, ActionIncludeAndPrune,
		env.eval.Evaluate(path, stubState{duration: 15 * time.Minute, changes: 4, clock: clock}))

	assert.Equal(t, 3, env.rec.CountFor(ReasonArrived))
}

func TestEvaluateHigherCostAfterArrival(t *testing.T) {
	env := newEvalEnv(t, evalParams{})
	clock := transit.NewClockTime(8, 20)

	require.Equal(t, ActionIncludeAndPrune,
		env.eval.Evaluate(NewPath(env.destination), stubState{duration: 20 * time.Minute, changes: 0, clock: clock}))

	got := env.eval.Evaluate(NewPath(env.station), stubState{duration: 25 * time.Minute, changes: 0, clock: clock})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonHigherCost))
}

func TestEvaluateTooManyChanges(t *testing.T) {
	env := newEvalEnv(t, evalParams{changesLimit: 2})

	got := env.eval.Evaluate(NewPath(env.station),
		stubState{changes: 3, clock: transit.NewClockTime(8, 0)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonTooManyChanges))
}

func TestEvaluateDurationOverLimit(t *testing.T) {
	env := newEvalEnv(t, evalParams{maxDuration: 15 * time.Minute})

	got := env.eval.Evaluate(NewPath(env.station),
		stubState{duration: 19 * time.Minute, clock: transit.NewClockTime(8, 19)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonTookTooLong))
}

func TestEvaluateDuplicateBoarding(t *testing.T) {
	env := newEvalEnv(t, evalParams{})

	got := env.eval.Evaluate(NewPath(env.station),
		stubState{justBoarded: true, duplicateBoard: true, clock: transit.NewClockTime(8, 0)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonAlreadyBoarded))
}

func TestEvaluateReturnedToStart(t *testing.T) {
	env := newEvalEnv(t, evalParams{})

	path := NewPath(env.start).
		Extend(graph.RelationshipID(101), env.station).
		Extend(graph.RelationshipID(102), env.start)

	got := env.eval.Evaluate(path, stubState{clock: transit.NewClockTime(8, 0)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonReturnedToStart))
}

func TestEvaluateMemoizesServiceDateRejection(t *testing.T) {
	env := newEvalEnv(t, evalParams{running: stubRunning{onDate: false, atTime: true}})
	state := stubState{clock: transit.NewClockTime(8, 0)}

	assert.Equal(t, ActionExcludeAndPrune, env.eval.Evaluate(NewPath(env.service), state))
	assert.Equal(t, 1, env.rec.CountFor(ReasonNotOnQueryDate))

	// the second visit replays the cached rejection without re-checking
	assert.Equal(t, ActionExcludeAndPrune, env.eval.Evaluate(NewPath(env.service), state))
	assert.Equal(t, 1, env.rec.CountFor(ReasonNotOnQueryDate))
	assert.Equal(t, 1, env.rec.CountFor(ReasonCachedResult))
}

func TestEvaluateMinuteChecks(t *testing.T) {
	env := newEvalEnv(t, evalParams{depthFirst: true})
	path := NewPath(env.minute)

	// clock inside the wait window for the 08:10 departure
	ok := stubState{clock: transit.NewClockTime(8, 5), begun: true, onBoard: true, trip: "trip-1"}
	assert.Equal(t, ActionContinue, env.eval.Evaluate(path, ok))

	late := stubState{clock: transit.NewClockTime(8, 15), begun: true}
	assert.Equal(t, ActionExcludeAndPrune, env.eval.Evaluate(path, late))
	assert.Equal(t, 1, env.rec.CountFor(ReasonAlreadyDeparted))

	ridden := stubState{clock: transit.NewClockTime(8, 5), begun: true, alreadyDeparted: true}
	assert.Equal(t, ActionExcludeAndPrune, env.eval.Evaluate(path, ridden))
	assert.Equal(t, 1, env.rec.CountFor(ReasonSameTrip))
}

func TestEvaluateBreadthFirstDedupesMinutes(t *testing.T) {
	env := newEvalEnv(t, evalParams{depthFirst: false})
	path := NewPath(env.minute)
	state := stubState{clock: transit.NewClockTime(8, 5), begun: true}

	assert.Equal(t, ActionContinue, env.eval.Evaluate(path, state))

	got := env.eval.Evaluate(path, state)
	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonAlreadySeenTime))
}

func TestEvaluateRouteStationPipeline(t *testing.T) {
	env := newEvalEnv(t, evalParams{depthFirst: true, reachability: stubReachability{fewest: 1}})
	state := stubState{clock: transit.NewClockTime(8, 0)}

	assert.Equal(t, ActionContinue, env.eval.Evaluate(NewPath(env.routeStation), state))
	// both depth-first reachability checks record the route as reachable
	assert.Equal(t, 2, env.rec.CountFor(ReasonReachable))

	// the second visit at the same clock replays from the route station cache
	got := env.eval.Evaluate(NewPath(env.routeStation), state)
	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonCachedResult))
}

func TestEvaluateRouteStationUnreachable(t *testing.T) {
	env := newEvalEnv(t, evalParams{
		depthFirst:   true,
		changesLimit: 2,
		reachability: stubReachability{fewest: 5},
	})

	got := env.eval.Evaluate(NewPath(env.routeStation),
		stubState{clock: transit.NewClockTime(8, 0)})

	assert.Equal(t, ActionExcludeAndPrune, got)
	assert.Equal(t, 1, env.rec.CountFor(ReasonNotReachable))
}
