package netbuild

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

type netbuildTestFixture struct {
	Logger *zap.Logger
}

var globalFixture *netbuildTestFixture

func TestMain(m *testing.M) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	globalFixture = &netbuildTestFixture{Logger: logger}

	exitCode := m.Run()

	_ = globalFixture.Logger.Sync()
	os.Exit(exitCode)
}

func buildNetwork(t *testing.T, network *Network) (*graph.Manager, *graph.Store) {
	t.Helper()

	store := graph.NewStore(graph.NewIDAllocator(), globalFixture.Logger)
	manager := graph.NewManager(store, 0, globalFixture.Logger)
	require.NoError(t, NewBuilder(manager, globalFixture.Logger).Build(network))
	return manager, store
}

func tramLine() *Network {
	return &Network{
		Trips: []Trip{{
			ID:      "trip-1",
			Service: "svc-1",
			Route:   "red",
			Mode:    transit.ModeTram,
			Stops: []Stop{
				{Station: "alpha", Arrive: transit.NewClockTime(7, 58), Depart: transit.NewClockTime(8, 0)},
				{Station: "beta", Arrive: transit.NewClockTime(8, 10), Depart: transit.NewClockTime(8, 11)},
				{Station: "gamma", Arrive: transit.NewClockTime(8, 20), Depart: transit.NewClockTime(8, 20)},
			},
		}},
	}
}

func TestBuildExpandsTimetable(t *testing.T) {
	manager, store := buildNetwork(t, tramLine())

	assert.Equal(t, 3, store.CountNodesWith(graph.LabelStation))
	assert.Equal(t, 3, store.CountNodesWith(graph.LabelRouteStation))
	// one service node per route station the service departs from
	assert.Equal(t, 2, store.CountNodesWith(graph.LabelService))
	assert.Equal(t, 2, store.CountNodesWith(graph.LabelHour))
	assert.Equal(t, 2, store.CountNodesWith(graph.LabelMinute))

	txn := manager.Begin()
	defer txn.Close()

	wantEdges := map[graph.RelationshipType]int{
		graph.Board:     2,
		graph.Depart:    2,
		graph.OnRoute:   2,
		graph.ToService: 2,
		graph.ToHour:    2,
		graph.ToMinute:  2,
		graph.GoesTo:    2,
	}
	for relType, want := range wantEdges {
		got, err := txn.CountOf(relType)
		require.NoError(t, err)
		assert.Equal(t, want, got, relType.String())
	}
}

func TestBuildRideCostsAndTrips(t *testing.T) {
	manager, _ := buildNetwork(t, tramLine())

	txn := manager.Begin()
	defer txn.Close()

	minutes := txn.FindNodes(graph.LabelMinute)
	require.Len(t, minutes, 2)

	for _, minute := range minutes {
		trip, err := minute.Trip()
		require.NoError(t, err)
		assert.Equal(t, transit.TripID("trip-1"), trip)

		rides, err := txn.RelationshipsFor(minute.ID(), graph.Outgoing, graph.GoesTo)
		require.NoError(t, err)
		require.Len(t, rides, 1)

		cost, err := rides[0].Cost()
		require.NoError(t, err)

		departure, err := minute.Time()
		require.NoError(t, err)
		switch departure {
		case transit.NewClockTime(8, 0):
			assert.Equal(t, 10*time.Minute, cost)
		case transit.NewClockTime(8, 11):
			assert.Equal(t, 9*time.Minute, cost)
		default:
			t.Fatalf("unexpected departure %s", departure)
		}
	}
}

func TestBuildInterchangeEdges(t *testing.T) {
	network := tramLine()
	network.Interchanges = []transit.StationID{"beta"}
	manager, _ := buildNetwork(t, network)

	txn := manager.Begin()
	defer txn.Close()

	boards, err := txn.CountOf(graph.InterchangeBoard)
	require.NoError(t, err)
	assert.Equal(t, 1, boards)

	departs, err := txn.CountOf(graph.InterchangeDepart)
	require.NoError(t, err)
	assert.Equal(t, 1, departs)

	stations := txn.FindNodesWith(graph.LabelStation, graph.KeyStationID, "beta")
	require.Len(t, stations, 1)
	assert.True(t, stations[0].HasLabel(graph.LabelInterchange))
}

func TestBuildWalks(t *testing.T) {
	network := &Network{
		Walks: []Walk{
			{From: "alpha", To: "beta", Cost: 4 * time.Minute},
			{From: "beta", To: "gamma", Cost: 6 * time.Minute, Neighbour: true},
		},
	}
	manager, store := buildNetwork(t, network)

	assert.Equal(t, 3, store.CountNodesWith(graph.LabelStation))

	txn := manager.Begin()
	defer txn.Close()

	// both directions of each connection
	walks, err := txn.CountOf(graph.WalksToStation)
	require.NoError(t, err)
	assert.Equal(t, 2, walks)

	neighbours, err := txn.CountOf(graph.Neighbour)
	require.NoError(t, err)
	assert.Equal(t, 2, neighbours)

	stations := txn.FindNodesWith(graph.LabelStation, graph.KeyStationID, "beta")
	require.Len(t, stations, 1)
	rels, err := txn.RelationshipsFor(stations[0].ID(), graph.Outgoing, graph.Neighbour)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	cost, err := rels[0].Cost()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, cost)
}

func TestBuildLocationWalks(t *testing.T) {
	network := &Network{
		LocationWalks: []LocationWalk{
			{Origin: transit.LatLong{Lat: 53.3871, Lon: -2.3473}, To: "alpha", Cost: 9 * time.Minute},
			{Origin: transit.LatLong{Lat: 53.3871, Lon: -2.3473}, To: "alpha", Cost: 9 * time.Minute},
		},
	}
	manager, store := buildNetwork(t, network)

	assert.Equal(t, 2, store.CountNodesWith(graph.LabelQueryOrigin))

	txn := manager.Begin()
	defer txn.Close()

	origins := txn.FindNodes(graph.LabelQueryOrigin)
	require.Len(t, origins, 2)

	// identical coordinates still get distinct walk ids
	first, err := origins[0].WalkID()
	require.NoError(t, err)
	second, err := origins[1].WalkID()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	walks, err := txn.RelationshipsFor(origins[0].ID(), graph.Outgoing, graph.WalksToStation)
	require.NoError(t, err)
	require.Len(t, walks, 1)
	cost, err := walks[0].Cost()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, cost)
}

func TestBuildSharedNodesAcrossTrips(t *testing.T) {
	network := tramLine()
	second := network.Trips[0]
	second.ID = "trip-2"
	second.Stops = []Stop{
		{Station: "alpha", Arrive: transit.NewClockTime(8, 58), Depart: transit.NewClockTime(9, 0)},
		{Station: "beta", Arrive: transit.NewClockTime(9, 10), Depart: transit.NewClockTime(9, 11)},
		{Station: "gamma", Arrive: transit.NewClockTime(9, 20), Depart: transit.NewClockTime(9, 20)},
	}
	network.Trips = append(network.Trips, second)

	_, store := buildNetwork(t, network)

	// stations, route stations and services are shared, hours and minutes
	// are per departure
	assert.Equal(t, 3, store.CountNodesWith(graph.LabelStation))
	assert.Equal(t, 3, store.CountNodesWith(graph.LabelRouteStation))
	assert.Equal(t, 2, store.CountNodesWith(graph.LabelService))
	assert.Equal(t, 4, store.CountNodesWith(graph.LabelHour))
	assert.Equal(t, 4, store.CountNodesWith(graph.LabelMinute))
}

func TestBuildRejectsDegenerateTrips(t *testing.T) {
	store := graph.NewStore(graph.NewIDAllocator(), globalFixture.Logger)
	manager := graph.NewManager(store, 0, globalFixture.Logger)
	builder := NewBuilder(manager, globalFixture.Logger)

	short := &Network{Trips: []Trip{{
		ID: "trip-1", Service: "svc-1", Route: "red", Mode: transit.ModeTram,
		Stops: []Stop{{Station: "alpha"}},
	}}}
	assert.Error(t, builder.Build(short))

	unknownMode := &Network{Trips: []Trip{{
		ID: "trip-1", Service: "svc-1", Route: "red",
		Stops: []Stop{{Station: "alpha"}, {Station: "beta"}},
	}}}
	assert.Error(t, builder.Build(unknownMode))

	// failed builds leave nothing behind
	assert.Equal(t, 0, store.CountNodesWith(graph.LabelStation))
}
