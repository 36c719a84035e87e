package search

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Per-mode path length ceilings: an upper bound on how many graph elements
// a single journey can traverse before it is clearly degenerate.
const (
	tramMaxPathLength   = 400
	busMaxPathLength    = 1000
	trainMaxPathLength  = 2000
	ferryMaxPathLength  = 200
	subwayMaxPathLength = 400
)

// JourneyConstraints holds the per-query limits and the domain collaborators
// that answer calendar and reachability questions. Built once per query.
type JourneyConstraints struct {
	running      transit.RunningServices
	availability transit.StationAvailability
	reachability transit.Reachability

	maxPathLength         int
	maxJourneyDuration    time.Duration
	maxWalkingConnections int
	maxNeighbourConnections int

	destinationsOpen transit.TimeRange
}

// NewJourneyConstraints derives the limits for one query. The path length
// ceiling is the largest ceiling among the requested transport modes.
func NewJourneyConstraints(
	running transit.RunningServices,
	availability transit.StationAvailability,
	reachability transit.Reachability,
	modes transit.ModeSet,
	maxJourneyDuration time.Duration,
	maxWalkingConnections int,
	maxNeighbourConnections int,
	destinationsOpen transit.TimeRange,
	logger *zap.Logger,
) (*JourneyConstraints, error) {
	maxPath := 0
	for _, m := range modes.Modes() {
		limit, err := pathLengthFor(m)
		if err != nil {
			return nil, err
		}
		if limit > maxPath {
			maxPath = limit
		}
	}
	if maxPath == 0 {
		return nil, fmt.Errorf("no transport modes requested")
	}
	if logger != nil {
		logger.Debug("journey constraints",
			zap.Int("max_path_length", maxPath),
			zap.Duration("max_duration", maxJourneyDuration),
			zap.Int("max_walking_connections", maxWalkingConnections))
	}
	return &JourneyConstraints{
		running:                 running,
		availability:            availability,
		reachability:            reachability,
		maxPathLength:           maxPath,
		maxJourneyDuration:      maxJourneyDuration,
		maxWalkingConnections:   maxWalkingConnections,
		maxNeighbourConnections: maxNeighbourConnections,
		destinationsOpen:        destinationsOpen,
	}, nil
}

func pathLengthFor(m transit.Mode) (int, error) {
	switch m {
	case transit.ModeTram:
		return tramMaxPathLength, nil
	case transit.ModeBus:
		return busMaxPathLength, nil
	case transit.ModeTrain:
		return trainMaxPathLength, nil
	case transit.ModeFerry:
		return ferryMaxPathLength, nil
	case transit.ModeSubway:
		return subwayMaxPathLength, nil
	case transit.ModeWalk:
		return tramMaxPathLength, nil
	default:
		return 0, fmt.Errorf("unexpected transport mode %s", m)
	}
}

func (c *JourneyConstraints) MaxPathLength() int { return c.maxPathLength }

func (c *JourneyConstraints) MaxJourneyDuration() time.Duration { return c.maxJourneyDuration }

func (c *JourneyConstraints) MaxWalkingConnections() int { return c.maxWalkingConnections }

func (c *JourneyConstraints) MaxNeighbourConnections() int { return c.maxNeighbourConnections }

func (c *JourneyConstraints) IsClosed(station transit.StationID) bool {
	return c.availability.IsClosed(station)
}

func (c *JourneyConstraints) IsRunningOnDate(service transit.ServiceID, visit transit.ClockTime) bool {
	return c.running.RunsOnDate(service, visit)
}

func (c *JourneyConstraints) IsRunningAtTime(service transit.ServiceID, visit transit.ClockTime, maxWait time.Duration) bool {
	return c.running.RunsAtTime(service, visit, maxWait)
}

func (c *JourneyConstraints) RouteUnavailableAt(route transit.RouteID, at transit.ClockTime) bool {
	return c.reachability.UnavailableAt(route, at)
}

func (c *JourneyConstraints) FewestChanges(route transit.RouteID) int {
	return c.reachability.FewestChanges(route)
}

// DestinationsAvailable reports whether any destination is still open at the
// given time.
func (c *JourneyConstraints) DestinationsAvailable(t transit.ClockTime) bool {
	if c.destinationsOpen.Contains(t) {
		return true
	}
	return !t.IsAfter(c.destinationsOpen.End)
}
