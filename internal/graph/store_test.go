// internal/graph/store_test.go
package graph

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// -- Test Fixture Setup --
// graphTestFixture holds shared resources for the graph package tests.
type graphTestFixture struct {
	Logger *zap.Logger
}

var globalFixture *graphTestFixture

// TestMain sets up and tears down the global test fixture.
func TestMain(m *testing.M) {
	logger, _ := zap.NewDevelopment()
	globalFixture = &graphTestFixture{
		Logger: logger,
	}

	exitCode := m.Run()

	_ = globalFixture.Logger.Sync()
	os.Exit(exitCode)
}

// getTestStore returns an empty store wired to the shared test logger.
func getTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewIDAllocator(), globalFixture.Logger)
}

func TestCreateNodeAssignsUniqueIDsAndIndexesLabels(t *testing.T) {
	store := getTestStore(t)

	station := store.CreateNode(LabelStation)
	platform := store.CreateNode(LabelPlatform)

	assert.NotEqual(t, station.ID(), platform.ID())
	assert.True(t, station.HasLabel(LabelStation))
	assert.False(t, station.HasLabel(LabelPlatform))

	found := store.FindNodes(LabelStation)
	require.Len(t, found, 1)
	assert.Equal(t, station.ID(), found[0].ID())
}

func TestCreateRelationshipRejectsDuplicatePerTypeAndPair(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelStation)
	b := store.CreateNode(LabelRouteStation)

	_, err := store.CreateRelationship(Board, a.ID(), b.ID())
	require.NoError(t, err)

	// same type, same ordered pair: rejected
	_, err = store.CreateRelationship(Board, a.ID(), b.ID())
	var dup *DuplicateRelationshipError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, Board, dup.Type)

	// different type on the same pair is fine
	_, err = store.CreateRelationship(Depart, a.ID(), b.ID())
	require.NoError(t, err)

	// same type, reversed pair is fine
	_, err = store.CreateRelationship(Board, b.ID(), a.ID())
	require.NoError(t, err)
}

func TestCreateRelationshipRequiresBothEndpoints(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelStation)

	_, err := store.CreateRelationship(Board, a.ID(), NodeID(9999))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.CreateRelationship(Board, NodeID(9999), a.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRelationshipReleasesThePair(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelStation)
	b := store.CreateNode(LabelStation)

	rel, err := store.CreateRelationship(Neighbour, a.ID(), b.ID())
	require.NoError(t, err)
	require.NoError(t, store.DeleteRelationship(rel.ID()))

	assert.False(t, store.HasRelationship(rel.ID()))
	assert.Equal(t, 0, store.CountOf(Neighbour))

	// the slot is free again after the delete
	_, err = store.CreateRelationship(Neighbour, a.ID(), b.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, store.CountOf(Neighbour))
}

func TestDeleteNodeRefusesWhileRelationshipsRemain(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelStation)
	b := store.CreateNode(LabelStation)
	rel, err := store.CreateRelationship(Neighbour, a.ID(), b.ID())
	require.NoError(t, err)

	err = store.DeleteNode(a.ID())
	var busy *NodeHasRelationshipsError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, a.ID(), busy.Node)

	// incoming relationships block the delete too
	err = store.DeleteNode(b.ID())
	assert.ErrorAs(t, err, &busy)

	require.NoError(t, store.DeleteRelationship(rel.ID()))
	require.NoError(t, store.DeleteNode(a.ID()))
	assert.False(t, store.HasNode(a.ID()))
	assert.Len(t, store.FindNodes(LabelStation), 1)
}

func TestRelationshipsForFiltersByDirectionAndType(t *testing.T) {
	store := getTestStore(t)
	hub := store.CreateNode(LabelStation)
	east := store.CreateNode(LabelStation)
	west := store.CreateNode(LabelStation)

	out1, err := store.CreateRelationship(Neighbour, hub.ID(), east.ID())
	require.NoError(t, err)
	_, err = store.CreateRelationship(WalksToStation, hub.ID(), west.ID())
	require.NoError(t, err)
	in1, err := store.CreateRelationship(Neighbour, west.ID(), hub.ID())
	require.NoError(t, err)

	outbound, err := store.RelationshipsFor(hub.ID(), Outgoing)
	require.NoError(t, err)
	assert.Len(t, outbound, 2)

	onlyNeighbours, err := store.RelationshipsFor(hub.ID(), Outgoing, Neighbour)
	require.NoError(t, err)
	require.Len(t, onlyNeighbours, 1)
	assert.Equal(t, out1.ID(), onlyNeighbours[0].ID())

	inbound, err := store.RelationshipsFor(hub.ID(), Incoming)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, in1.ID(), inbound[0].ID())

	both, err := store.RelationshipsFor(hub.ID(), Both)
	require.NoError(t, err)
	assert.Len(t, both, 3)

	_, err = store.RelationshipsFor(NodeID(4242), Outgoing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountOfTracksCreatesAndDeletes(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelRouteStation)
	b := store.CreateNode(LabelService)
	c := store.CreateNode(LabelService)

	r1, err := store.CreateRelationship(ToService, a.ID(), b.ID())
	require.NoError(t, err)
	_, err = store.CreateRelationship(ToService, a.ID(), c.ID())
	require.NoError(t, err)

	assert.Equal(t, 2, store.CountOf(ToService))
	assert.Equal(t, 0, store.CountOf(GoesTo))

	require.NoError(t, store.DeleteRelationship(r1.ID()))
	assert.Equal(t, 1, store.CountOf(ToService))
}

func TestAddLabelUpdatesTheIndex(t *testing.T) {
	store := getTestStore(t)
	station := store.CreateNode(LabelStation)

	assert.Empty(t, store.FindNodes(LabelInterchange))

	require.NoError(t, store.AddLabel(station.ID(), LabelInterchange))
	found := store.FindNodes(LabelInterchange)
	require.Len(t, found, 1)
	assert.Equal(t, station.ID(), found[0].ID())

	// the original label index entry survives
	assert.Len(t, store.FindNodes(LabelStation), 1)

	err := store.AddLabel(NodeID(777), LabelInterchange)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindNodesWithMatchesOnStringProperty(t *testing.T) {
	store := getTestStore(t)

	alpha := store.CreateNode(LabelStation)
	alpha.SetStation(transit.StationID("9400ZZMAALT"))
	beta := store.CreateNode(LabelStation)
	beta.SetStation(transit.StationID("9400ZZMAPIC"))

	found := store.FindNodesWith(LabelStation, KeyStationID, "9400ZZMAPIC")
	require.Len(t, found, 1)
	assert.Equal(t, beta.ID(), found[0].ID())

	assert.Empty(t, store.FindNodesWith(LabelStation, KeyStationID, "missing"))
}

func TestNodeLookupMissingReturnsNotFound(t *testing.T) {
	store := getTestStore(t)

	_, err := store.Node(NodeID(1))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Relationship(RelationshipID(1))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPropertyAccessorsRoundTripDomainTypes(t *testing.T) {
	store := getTestStore(t)
	node := store.CreateNode(LabelMinute)

	departure := transit.NewClockTime(8, 11)
	node.SetTime(departure)
	node.SetTrip(transit.TripID("trip-77"))

	got, err := node.Time()
	require.NoError(t, err)
	assert.Equal(t, departure, got)

	trip, err := node.Trip()
	require.NoError(t, err)
	assert.Equal(t, transit.TripID("trip-77"), trip)

	// crossing midnight keeps the marker
	lateNight := transit.NextDayClockTime(0, 15)
	node.SetTime(lateNight)
	got, err = node.Time()
	require.NoError(t, err)
	assert.True(t, got.IsNextDay())
	assert.Equal(t, 15, got.Minutes())
}

func TestMissingRequiredPropertyCarriesDump(t *testing.T) {
	store := getTestStore(t)
	node := store.CreateNode(LabelHour)
	node.SetHour(9)

	_, err := node.Time()
	var missing *PropertyMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, KeyTime, missing.Key)
	assert.Contains(t, missing.Dump, KeyHour)
}

func TestTripIDListStaysSortedAndDeduplicated(t *testing.T) {
	store := getTestStore(t)
	a := store.CreateNode(LabelRouteStation)
	b := store.CreateNode(LabelRouteStation)
	rel, err := store.CreateRelationship(GoesTo, a.ID(), b.ID())
	require.NoError(t, err)

	rel.AddTripID(transit.TripID("zulu"))
	rel.AddTripID(transit.TripID("alpha"))
	rel.AddTripID(transit.TripID("mike"))
	rel.AddTripID(transit.TripID("alpha")) // duplicate, no-op

	ids := rel.TripIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, []transit.TripID{"alpha", "mike", "zulu"}, ids)

	assert.True(t, rel.HasTripID(transit.TripID("mike")))
	assert.False(t, rel.HasTripID(transit.TripID("november")))
}
