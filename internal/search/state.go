package search

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// ReadState is the side of the journey state the evaluator and heuristics
// consume. The mutating side belongs to the path driver.
type ReadState interface {
	JourneyClock() transit.ClockTime
	TotalDuration() time.Duration
	NumberChanges() int
	WalkingConnections() int
	NeighbourConnections() int
	HasBegun() bool
	OnBoard() bool
	JustBoarded() bool
	DuplicateBoardingSeen() bool
	CurrentTrip() transit.TripID
	AlreadyDeparted(trip transit.TripID) bool
}

// JourneyState is the traveller-side accumulated state threaded through one
// search branch. Branching the traversal forks the state; collections are
// copied on fork so sibling branches never interfere.
type JourneyState struct {
	queryTime    transit.ClockTime
	journeyClock transit.ClockTime

	totalDuration time.Duration
	// cost consumed by previous vehicle legs and walks, so the current
	// leg's share can be measured from the boarding time
	journeyOffset time.Duration
	boardingTime  transit.ClockTime

	hasBegun          bool
	departureRecorded bool
	currentMode       transit.Mode
	currentTrip transit.TripID
	tripsDone   map[transit.TripID]struct{}

	numberChanges        int
	walkingConnections   int
	neighbourConnections int

	justBoarded      bool
	boardingsSeenAt  map[graph.NodeID]struct{}
	duplicateBoarded bool
}

var _ ReadState = (*JourneyState)(nil)

// NewJourneyState starts a journey at the query time, before any boarding.
func NewJourneyState(queryTime transit.ClockTime) *JourneyState {
	return &JourneyState{
		queryTime:       queryTime,
		journeyClock:    queryTime,
		currentMode:     transit.ModeUnknown,
		tripsDone:       make(map[transit.TripID]struct{}),
		boardingsSeenAt: make(map[graph.NodeID]struct{}),
	}
}

// Fork copies the state for a new traversal branch.
func (s *JourneyState) Fork() *JourneyState {
	next := *s
	next.tripsDone = make(map[transit.TripID]struct{}, len(s.tripsDone))
	for trip := range s.tripsDone {
		next.tripsDone[trip] = struct{}{}
	}
	next.boardingsSeenAt = make(map[graph.NodeID]struct{}, len(s.boardingsSeenAt))
	for id := range s.boardingsSeenAt {
		next.boardingsSeenAt[id] = struct{}{}
	}
	return &next
}

func (s *JourneyState) JourneyClock() transit.ClockTime { return s.journeyClock }

func (s *JourneyState) TotalDuration() time.Duration { return s.totalDuration }

func (s *JourneyState) NumberChanges() int { return s.numberChanges }

func (s *JourneyState) WalkingConnections() int { return s.walkingConnections }

func (s *JourneyState) NeighbourConnections() int { return s.neighbourConnections }

func (s *JourneyState) HasBegun() bool { return s.hasBegun }

func (s *JourneyState) OnBoard() bool { return s.currentMode != transit.ModeUnknown }

func (s *JourneyState) JustBoarded() bool { return s.justBoarded }

func (s *JourneyState) DuplicateBoardingSeen() bool { return s.duplicateBoarded }

func (s *JourneyState) CurrentTrip() transit.TripID { return s.currentTrip }

func (s *JourneyState) OnTrip() bool { return s.currentTrip.IsValid() }

func (s *JourneyState) AlreadyDeparted(trip transit.TripID) bool {
	_, done := s.tripsDone[trip]
	return done
}

// AddCost advances the accumulated duration and, while off-vehicle, the
// journey clock. On-vehicle time is instead derived from the boarding time
// when the leg ends, so waiting at a stop is not double counted.
func (s *JourneyState) AddCost(cost time.Duration) {
	s.totalDuration += cost
	if s.OnBoard() && s.departureRecorded {
		s.journeyClock = s.boardingTime.Plus(s.totalDuration - s.journeyOffset)
	} else {
		s.journeyClock = s.journeyClock.Plus(cost)
	}
}

// Board puts the traveller on a vehicle at the given boarding point. The
// first boarding starts the journey; every later one counts as a change.
func (s *JourneyState) Board(mode transit.Mode, at graph.NodeID) error {
	if s.OnBoard() {
		return fmt.Errorf("already on board a %s", s.currentMode)
	}
	if _, seen := s.boardingsSeenAt[at]; seen {
		s.duplicateBoarded = true
	} else {
		s.boardingsSeenAt[at] = struct{}{}
	}
	if s.hasBegun {
		s.numberChanges++
	}
	s.hasBegun = true
	s.currentMode = mode
	s.justBoarded = true
	return nil
}

// RecordVehicleTime pins the journey clock to a scheduled departure. Only
// valid while on board.
func (s *JourneyState) RecordVehicleTime(departure transit.ClockTime) error {
	if !s.OnBoard() {
		return fmt.Errorf("not on board, cannot record departure %s", departure)
	}
	s.journeyClock = departure
	s.boardingTime = departure
	s.journeyOffset = s.totalDuration
	s.departureRecorded = true
	return nil
}

// BeginTrip marks the scheduled trip now being ridden.
func (s *JourneyState) BeginTrip(trip transit.TripID) error {
	if s.currentTrip.IsValid() && s.currentTrip != trip {
		return fmt.Errorf("already on trip %s, cannot begin %s", s.currentTrip, trip)
	}
	s.currentTrip = trip
	return nil
}

// Leave takes the traveller off the vehicle, completing the current trip.
func (s *JourneyState) Leave(mode transit.Mode) error {
	if !s.currentTrip.IsValid() {
		return fmt.Errorf("not on a trip, cannot leave")
	}
	if s.currentMode != mode {
		return fmt.Errorf("not on a %s, was on %s", mode, s.currentMode)
	}
	if s.departureRecorded {
		s.journeyClock = s.boardingTime.Plus(s.totalDuration - s.journeyOffset)
	}
	s.journeyOffset = s.totalDuration
	s.tripsDone[s.currentTrip] = struct{}{}
	s.currentTrip = ""
	s.currentMode = transit.ModeUnknown
	s.departureRecorded = false
	s.justBoarded = false
	return nil
}

// BeginWalk counts an on-foot connection to or from a station.
func (s *JourneyState) BeginWalk() {
	s.walkingConnections++
	s.justBoarded = false
}

// ToNeighbour counts a walk between adjacent stations.
func (s *JourneyState) ToNeighbour() {
	s.neighbourConnections++
	s.justBoarded = false
}

// ClearJustBoarded drops the just-boarded marker once the traversal moves
// past the boarding point.
func (s *JourneyState) ClearJustBoarded() { s.justBoarded = false }
