package netbuild

import (
	"time"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Stop is one timetabled call of a trip at a station.
type Stop struct {
	Station transit.StationID
	Arrive  transit.ClockTime
	Depart  transit.ClockTime
}

// Trip is one scheduled run of a vehicle along a route.
type Trip struct {
	ID      transit.TripID
	Service transit.ServiceID
	Route   transit.RouteID
	Mode    transit.Mode
	Stops   []Stop
}

// Walk is an on-foot connection between two stations.
type Walk struct {
	From transit.StationID
	To   transit.StationID
	Cost time.Duration
	// Neighbour links two adjacent stations; otherwise the walk is an
	// access leg to or from the network.
	Neighbour bool
}

// LocationWalk is an on-foot leg from an arbitrary starting point to a
// station, used when a journey begins away from the network.
type LocationWalk struct {
	Origin transit.LatLong
	To     transit.StationID
	Cost   time.Duration
}

// Network is the timetable input the builder materialises into a graph.
type Network struct {
	Trips         []Trip
	Walks         []Walk
	LocationWalks []LocationWalk
	Interchanges  []transit.StationID
	Closed        []transit.StationID
	NotRunning    []transit.ServiceID
}

func (n *Network) interchangeSet() map[transit.StationID]struct{} {
	set := make(map[transit.StationID]struct{}, len(n.Interchanges))
	for _, id := range n.Interchanges {
		set[id] = struct{}{}
	}
	return set
}
