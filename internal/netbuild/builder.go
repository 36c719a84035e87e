package netbuild

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Builder materialises a timetable into the time-expanded search graph:
// station, route-station, service, hour and minute nodes, joined by
// boarding, departing, timetable and walking relationships. The whole build
// runs in one mutable transaction, so a failed build leaves the store
// untouched.
type Builder struct {
	manager *graph.Manager
	log     *zap.Logger
}

func NewBuilder(manager *graph.Manager, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{manager: manager, log: logger.Named("netbuild")}
}

type serviceKey struct {
	service      transit.ServiceID
	routeStation transit.RouteStationID
}

type hourKey struct {
	service graph.NodeID
	hour    int
}

type minuteKey struct {
	hour graph.NodeID
	time transit.ClockTime
	trip transit.TripID
}

type edgeKey struct {
	relType graph.RelationshipType
	start   graph.NodeID
	end     graph.NodeID
}

// build keeps the per-run entity registries so repeated timetable rows reuse
// the nodes they share.
type build struct {
	txn graph.MutableTransaction

	interchanges map[transit.StationID]struct{}

	stations      map[transit.StationID]graph.NodeID
	routeStations map[transit.RouteStationID]graph.NodeID
	services      map[serviceKey]graph.NodeID
	hours         map[hourKey]graph.NodeID
	minutes       map[minuteKey]graph.NodeID
	edges         map[edgeKey]graph.RelationshipID
}

// Build creates the graph for the network and commits it.
func (b *Builder) Build(network *Network) error {
	txn := b.manager.BeginMutable()
	defer txn.Close()

	run := &build{
		txn:           txn,
		interchanges:  network.interchangeSet(),
		stations:      make(map[transit.StationID]graph.NodeID),
		routeStations: make(map[transit.RouteStationID]graph.NodeID),
		services:      make(map[serviceKey]graph.NodeID),
		hours:         make(map[hourKey]graph.NodeID),
		minutes:       make(map[minuteKey]graph.NodeID),
		edges:         make(map[edgeKey]graph.RelationshipID),
	}

	for i := range network.Trips {
		if err := run.addTrip(&network.Trips[i]); err != nil {
			return fmt.Errorf("trip %s: %w", network.Trips[i].ID, err)
		}
	}
	for i := range network.Walks {
		if err := run.addWalk(&network.Walks[i]); err != nil {
			return fmt.Errorf("walk %s to %s: %w", network.Walks[i].From, network.Walks[i].To, err)
		}
	}
	for i := range network.LocationWalks {
		if err := run.addLocationWalk(&network.LocationWalks[i]); err != nil {
			return fmt.Errorf("location walk to %s: %w", network.LocationWalks[i].To, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("committing network build: %w", err)
	}
	b.log.Info("network built",
		zap.Int("trips", len(network.Trips)),
		zap.Int("walks", len(network.Walks)),
		zap.Int("stations", len(run.stations)),
		zap.Int("route_stations", len(run.routeStations)))
	return nil
}

func (r *build) addTrip(trip *Trip) error {
	if len(trip.Stops) < 2 {
		return fmt.Errorf("needs at least two stops, has %d", len(trip.Stops))
	}
	modeLabel, ok := graph.LabelForMode(trip.Mode)
	if !ok {
		return fmt.Errorf("unsupported mode %s", trip.Mode)
	}

	for i := 0; i < len(trip.Stops)-1; i++ {
		from, to := trip.Stops[i], trip.Stops[i+1]

		fromStation, err := r.station(from.Station, trip.Mode)
		if err != nil {
			return err
		}
		toStation, err := r.station(to.Station, trip.Mode)
		if err != nil {
			return err
		}
		rsFrom, err := r.routeStation(trip.Route, from.Station, trip.Mode, modeLabel)
		if err != nil {
			return err
		}
		rsTo, err := r.routeStation(trip.Route, to.Station, trip.Mode, modeLabel)
		if err != nil {
			return err
		}

		if err := r.boardingEdges(fromStation, rsFrom, from.Station, trip.Mode); err != nil {
			return err
		}
		if err := r.departingEdges(rsTo, toStation, to.Station, trip.Mode); err != nil {
			return err
		}
		if _, err := r.edge(graph.OnRoute, rsFrom, rsTo); err != nil {
			return err
		}

		serviceNode, err := r.service(trip.Service, trip.Route, from.Station)
		if err != nil {
			return err
		}
		toService, err := r.edge(graph.ToService, rsFrom, serviceNode)
		if err != nil {
			return err
		}
		svcEdge, err := r.txn.RelationshipForUpdate(toService)
		if err != nil {
			return err
		}
		svcEdge.AddTripID(trip.ID)

		hourNode, err := r.hour(serviceNode, from.Depart.Hour())
		if err != nil {
			return err
		}
		minuteNode, err := r.minute(hourNode, from.Depart, trip.ID)
		if err != nil {
			return err
		}

		ride, err := r.edge(graph.GoesTo, minuteNode, rsTo)
		if err != nil {
			return err
		}
		rideEdge, err := r.txn.RelationshipForUpdate(ride)
		if err != nil {
			return err
		}
		rideEdge.SetCost(to.Arrive.DurationSince(from.Depart))
		rideEdge.SetTrip(trip.ID)
	}
	return nil
}

func (r *build) addWalk(walk *Walk) error {
	from, err := r.station(walk.From, transit.ModeWalk)
	if err != nil {
		return err
	}
	to, err := r.station(walk.To, transit.ModeWalk)
	if err != nil {
		return err
	}

	relType := graph.WalksToStation
	if walk.Neighbour {
		relType = graph.Neighbour
	}
	// walkable in both directions
	for _, pair := range [][2]graph.NodeID{{from, to}, {to, from}} {
		id, err := r.edge(relType, pair[0], pair[1])
		if err != nil {
			return err
		}
		rel, err := r.txn.RelationshipForUpdate(id)
		if err != nil {
			return err
		}
		rel.SetCost(walk.Cost)
	}
	return nil
}

// addLocationWalk creates a fresh query-origin node and links it to the
// station. Origin nodes are never shared: each carries its own walk id.
func (r *build) addLocationWalk(walk *LocationWalk) error {
	to, err := r.station(walk.To, transit.ModeWalk)
	if err != nil {
		return err
	}

	origin, err := r.txn.CreateNode(graph.LabelQueryOrigin)
	if err != nil {
		return err
	}
	origin.SetWalkID(walk.Origin, uuid.New())
	origin.SetLatLong(walk.Origin)

	rel, err := r.txn.CreateRelationship(graph.WalksToStation, origin.ID(), to)
	if err != nil {
		return err
	}
	rel.SetCost(walk.Cost)
	return nil
}

func (r *build) station(id transit.StationID, mode transit.Mode) (graph.NodeID, error) {
	if nodeID, ok := r.stations[id]; ok {
		node, err := r.txn.NodeForUpdate(nodeID)
		if err != nil {
			return graph.InvalidNodeID, err
		}
		node.AddTransportMode(mode)
		return nodeID, nil
	}

	labels := []graph.Label{graph.LabelStation}
	if _, ok := r.interchanges[id]; ok {
		labels = append(labels, graph.LabelInterchange)
	}
	node, err := r.txn.CreateNode(labels...)
	if err != nil {
		return graph.InvalidNodeID, err
	}
	node.SetStation(id)
	node.AddTransportMode(mode)
	r.stations[id] = node.ID()
	return node.ID(), nil
}

func (r *build) routeStation(route transit.RouteID, station transit.StationID, mode transit.Mode, modeLabel graph.Label) (graph.NodeID, error) {
	id := transit.NewRouteStationID(route, station)
	if nodeID, ok := r.routeStations[id]; ok {
		return nodeID, nil
	}

	node, err := r.txn.CreateNode(graph.LabelRouteStation, modeLabel)
	if err != nil {
		return graph.InvalidNodeID, err
	}
	node.SetRouteStation(id)
	node.SetRoute(route)
	node.SetStation(station)
	node.SetTransportMode(mode)
	r.routeStations[id] = node.ID()
	return node.ID(), nil
}

func (r *build) service(service transit.ServiceID, route transit.RouteID, station transit.StationID) (graph.NodeID, error) {
	key := serviceKey{service: service, routeStation: transit.NewRouteStationID(route, station)}
	if nodeID, ok := r.services[key]; ok {
		return nodeID, nil
	}

	node, err := r.txn.CreateNode(graph.LabelService)
	if err != nil {
		return graph.InvalidNodeID, err
	}
	node.SetService(service)
	node.SetRoute(route)
	r.services[key] = node.ID()
	return node.ID(), nil
}

func (r *build) hour(service graph.NodeID, hour int) (graph.NodeID, error) {
	key := hourKey{service: service, hour: hour}
	if nodeID, ok := r.hours[key]; ok {
		return nodeID, nil
	}

	node, err := r.txn.CreateNode(graph.LabelHour)
	if err != nil {
		return graph.InvalidNodeID, err
	}
	node.SetHour(hour)
	r.hours[key] = node.ID()

	if _, err := r.edge(graph.ToHour, service, node.ID()); err != nil {
		return graph.InvalidNodeID, err
	}
	return node.ID(), nil
}

func (r *build) minute(hour graph.NodeID, departure transit.ClockTime, trip transit.TripID) (graph.NodeID, error) {
	key := minuteKey{hour: hour, time: departure, trip: trip}
	if nodeID, ok := r.minutes[key]; ok {
		return nodeID, nil
	}

	node, err := r.txn.CreateNode(graph.LabelMinute)
	if err != nil {
		return graph.InvalidNodeID, err
	}
	node.SetTime(departure)
	node.SetTrip(trip)
	r.minutes[key] = node.ID()

	if _, err := r.edge(graph.ToMinute, hour, node.ID()); err != nil {
		return graph.InvalidNodeID, err
	}
	return node.ID(), nil
}

func (r *build) boardingEdges(station, routeStation graph.NodeID, stationID transit.StationID, mode transit.Mode) error {
	relType := graph.Board
	if _, ok := r.interchanges[stationID]; ok {
		relType = graph.InterchangeBoard
	}
	id, err := r.edge(relType, station, routeStation)
	if err != nil {
		return err
	}
	rel, err := r.txn.RelationshipForUpdate(id)
	if err != nil {
		return err
	}
	rel.SetTransportMode(mode)
	return nil
}

func (r *build) departingEdges(routeStation, station graph.NodeID, stationID transit.StationID, mode transit.Mode) error {
	relType := graph.Depart
	if _, ok := r.interchanges[stationID]; ok {
		relType = graph.InterchangeDepart
	}
	id, err := r.edge(relType, routeStation, station)
	if err != nil {
		return err
	}
	rel, err := r.txn.RelationshipForUpdate(id)
	if err != nil {
		return err
	}
	rel.SetTransportMode(mode)
	return nil
}

// edge creates the relationship once and replays its id afterwards.
func (r *build) edge(relType graph.RelationshipType, start, end graph.NodeID) (graph.RelationshipID, error) {
	key := edgeKey{relType: relType, start: start, end: end}
	if id, ok := r.edges[key]; ok {
		return id, nil
	}
	rel, err := r.txn.CreateRelationship(relType, start, end)
	if err != nil {
		return 0, err
	}
	r.edges[key] = rel.ID()
	return rel.ID(), nil
}
