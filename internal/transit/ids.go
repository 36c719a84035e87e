package transit

import "fmt"

// Typed identifiers for the domain entities referenced from the graph.
// They are deliberately plain strings: the graph stores them as properties
// and only ever needs equality and ordering.

type StationID string

type PlatformID string

type RouteID string

type ServiceID string

type TripID string

type AreaID string

// RouteStationID identifies the pairing of a route with one of its stations.
type RouteStationID string

// NewRouteStationID builds the composite id used on route-station nodes.
func NewRouteStationID(route RouteID, station StationID) RouteStationID {
	return RouteStationID(fmt.Sprintf("%s:%s", route, station))
}

func (id StationID) IsValid() bool      { return id != "" }
func (id RouteID) IsValid() bool        { return id != "" }
func (id ServiceID) IsValid() bool      { return id != "" }
func (id TripID) IsValid() bool         { return id != "" }
func (id RouteStationID) IsValid() bool { return id != "" }
