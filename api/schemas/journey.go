package schemas

import (
	"time"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// -- Journey Query Models --
// These types cross the package boundary between the CLI, the route
// calculator, and any embedding service.

// JourneyRequest describes one journey-planning query.
type JourneyRequest struct {
	Origin      transit.StationID `json:"origin"`
	Destination transit.StationID `json:"destination"`
	DepartAfter transit.ClockTime `json:"depart_after"`
	// MaxChanges is the change budget; zero means a direct journey only.
	MaxChanges int `json:"max_changes"`
	// MaxDuration caps the door-to-door journey time.
	MaxDuration time.Duration    `json:"max_duration"`
	Modes       transit.ModeSet  `json:"modes"`
	MaxResults  int              `json:"max_results,omitempty"`
}

// JourneyResults is the full answer to one request, including diagnostics.
type JourneyResults struct {
	Request  JourneyRequest `json:"request"`
	Journeys []Journey      `json:"journeys"`
	// NodesVisited and ChecksRun summarise the search effort.
	NodesVisited int `json:"nodes_visited"`
	ChecksRun    int `json:"checks_run"`
}

// Journey is one admissible door-to-door itinerary.
type Journey struct {
	DepartTime transit.ClockTime `json:"depart_time"`
	ArriveTime transit.ClockTime `json:"arrive_time"`
	Duration   time.Duration     `json:"duration"`
	Changes    int               `json:"changes"`
	Stages     []JourneyStage    `json:"stages"`
}

// JourneyStage is a single leg of a journey: one ride on one trip, or one
// walk between stations.
type JourneyStage struct {
	Mode        transit.Mode      `json:"mode"`
	FirstStop   transit.StationID `json:"first_stop"`
	LastStop    transit.StationID `json:"last_stop"`
	DepartTime  transit.ClockTime `json:"depart_time"`
	ArriveTime  transit.ClockTime `json:"arrive_time"`
	Duration    time.Duration     `json:"duration"`
	Route       transit.RouteID   `json:"route,omitempty"`
	Trip        transit.TripID    `json:"trip,omitempty"`
	StopsCalled int               `json:"stops_called,omitempty"`
}

// -- Graph Export Models --
// DTO forms of the graph entities, used by snapshot files and tooling that
// should not depend on the store internals.

// NodeExport is the serialisable form of a graph node.
type NodeExport struct {
	ID         int64          `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RelationshipExport is the serialisable form of a graph relationship.
type RelationshipExport struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	Start      int64          `json:"start"`
	End        int64          `json:"end"`
	Properties map[string]any `json:"properties,omitempty"`
}
