package search

import (
	"time"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// ServiceHeuristics is the per-query bundle of admissibility checks. Every
// check returns a Reason, never an error: rejections prune the path, they do
// not abort the search.
type ServiceHeuristics struct {
	constraints  *JourneyConstraints
	queryTime    transit.ClockTime
	changesLimit int
	// the change index at which the next boarding is the last allowed one
	penultimateChange int
}

func NewServiceHeuristics(constraints *JourneyConstraints, queryTime transit.ClockTime, changesLimit int) *ServiceHeuristics {
	penultimate := changesLimit
	if changesLimit > 1 {
		penultimate = changesLimit - 1
	}
	return &ServiceHeuristics{
		constraints:       constraints,
		queryTime:         queryTime,
		changesLimit:      changesLimit,
		penultimateChange: penultimate,
	}
}

func (h *ServiceHeuristics) MaxPathLength() int { return h.constraints.MaxPathLength() }

func (h *ServiceHeuristics) CheckNumberChanges(changes int, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()
	if changes > h.changesLimit {
		return rec.Record(newReasonf(ReasonTooManyChanges, at, "%d changes", changes))
	}
	return rec.Record(newReason(ReasonNumChangesOK, at))
}

func (h *ServiceHeuristics) CheckNumberWalkingConnections(connections int, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()
	if connections > h.constraints.MaxWalkingConnections() {
		return rec.Record(newReasonf(ReasonTooManyWalkingConnections, at, "%d walks", connections))
	}
	return rec.Record(newReason(ReasonWalkingConnectionsOK, at))
}

func (h *ServiceHeuristics) CheckNumberNeighbourConnections(connections int, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()
	if connections > h.constraints.MaxNeighbourConnections() {
		return rec.Record(newReasonf(ReasonTooManyNeighbourConnections, at, "%d neighbours", connections))
	}
	return rec.Record(newReason(ReasonNeighbourConnectionsOK, at))
}

func (h *ServiceHeuristics) JourneyDurationUnderLimit(total time.Duration, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()
	if total > h.constraints.MaxJourneyDuration() {
		return rec.Record(newReasonf(ReasonTookTooLong, at, "%s elapsed by %s", total, h.queryTime.Plus(total)))
	}
	return rec.Record(newReason(ReasonDurationOK, at))
}

// CheckNotBeenOnTripBefore rejects re-entering a trip the traveller has
// already ridden and left.
func (h *ServiceHeuristics) CheckNotBeenOnTripBefore(minuteNode *graph.Node, state ReadState, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	trip, err := minuteNode.Trip()
	if err != nil {
		return rec.Record(newReasonf(ReasonDoesNotOperateOnTime, at, "minute node missing trip: %v", err))
	}
	if state.AlreadyDeparted(trip) {
		return rec.Record(newReasonf(ReasonSameTrip, at, "trip %s", trip))
	}
	return rec.Record(newReason(ReasonContinue, at))
}

// CheckTime validates a minute node against the journey clock and the wait
// window.
func (h *ServiceHeuristics) CheckTime(minuteNode *graph.Node, current transit.ClockTime, maxWait time.Duration, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	nodeTime, err := minuteNode.Time()
	if err != nil {
		return rec.Record(newReasonf(ReasonDoesNotOperateOnTime, at, "minute node missing time: %v", err))
	}

	if current.IsAfter(nodeTime) {
		return rec.Record(newReasonf(ReasonAlreadyDeparted, at, "departed %s, now %s", nodeTime, current))
	}
	if !h.constraints.DestinationsAvailable(nodeTime) {
		return rec.Record(newReasonf(ReasonDestinationUnavailable, at, "at %s", nodeTime))
	}

	// can we wait at the stop until the departure?
	window := transit.NewTimeRange(nodeTime.Minus(maxWait), nodeTime)
	if window.Contains(current) {
		return rec.Record(newReason(ReasonTimeOK, at))
	}
	return rec.Record(newReasonf(ReasonDoesNotOperateOnTime, at, "%s outside wait window for %s", current, nodeTime))
}

// InterestedInHour is the coarse time-of-day gate applied before descending
// from an hour node to its minute nodes. Today's hour and the same hour
// tomorrow both count, so searches near midnight keep working.
func (h *ServiceHeuristics) InterestedInHour(hourNode *graph.Node, current transit.ClockTime, maxWait time.Duration, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	hour, err := hourNode.Hour()
	if err != nil {
		return rec.Record(newReasonf(ReasonNotAtHour, at, "hour node missing hour: %v", err))
	}

	travelWindow := transit.NewTimeRange(current, current.Plus(maxWait))

	if travelWindow.AnyOverlap(transit.HourRange(hour)) {
		return rec.Record(newReason(ReasonHourOK, at))
	}
	if travelWindow.AnyOverlap(transit.NextDayHourRange(hour)) {
		return rec.Record(newReason(ReasonHourOK, at))
	}
	return rec.Record(newReasonf(ReasonNotAtHour, at, "hour %d vs %s", hour, current))
}

// CheckServiceDateAndTime gates a service node against the query date
// calendar and then against departures within the wait window.
func (h *ServiceHeuristics) CheckServiceDateAndTime(serviceNode *graph.Node, visit transit.ClockTime, maxWait time.Duration, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	service, err := serviceNode.Service()
	if err != nil {
		return rec.Record(newReasonf(ReasonNotOnQueryDate, at, "service node missing id: %v", err))
	}

	if !h.constraints.IsRunningOnDate(service, visit) {
		return rec.Record(newReasonf(ReasonNotOnQueryDate, at, "service %s", service))
	}
	if !h.constraints.IsRunningAtTime(service, visit, maxWait) {
		return rec.Record(newReasonf(ReasonServiceNotRunningAtTime, at, "service %s at %s", service, visit))
	}
	return rec.Record(newReason(ReasonServiceDateOK, at))
}

// CheckModes rejects route stations serving none of the requested modes.
func (h *ServiceHeuristics) CheckModes(nodeLabels, requestedLabels graph.LabelSet, at HowIGotHere, rec *Recorder) Reason {
	if !nodeLabels.Intersects(requestedLabels) {
		return rec.Record(newReason(ReasonTransportModeWrong, at))
	}
	return rec.Record(newReason(ReasonTransportModeOK, at))
}

// CheckModesMatchForFinalChange insists that, when the next boarding is the
// last allowed change, the route station serves a mode the destination can
// receive.
func (h *ServiceHeuristics) CheckModesMatchForFinalChange(changes int, nodeLabels, destinationLabels graph.LabelSet, at HowIGotHere, rec *Recorder) Reason {
	if changes == h.penultimateChange {
		if !nodeLabels.Intersects(destinationLabels) {
			return rec.Record(newReason(ReasonNotReachable, at))
		}
	}
	return rec.Record(newReason(ReasonNumChangesOK, at))
}

func (h *ServiceHeuristics) CheckStationOpen(routeStationNode *graph.Node, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	station, err := routeStationNode.Station()
	if err != nil {
		return rec.Record(newReasonf(ReasonStationClosed, at, "route station missing station id: %v", err))
	}
	if h.constraints.IsClosed(station) {
		return rec.Record(newReasonf(ReasonStationClosed, at, "station %s", station))
	}
	return rec.Record(newReason(ReasonStationOpen, at))
}

// CanReachDestination prunes route stations whose route cannot reach any
// destination route within the remaining change budget. Depth-first only:
// too expensive per node for breadth-first.
func (h *ServiceHeuristics) CanReachDestination(routeStationNode *graph.Node, changes int, visit transit.ClockTime, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	route, err := routeStationNode.Route()
	if err != nil {
		return rec.Record(newReasonf(ReasonNotReachable, at, "route station missing route id: %v", err))
	}
	if h.constraints.RouteUnavailableAt(route, visit) {
		return rec.Record(newReasonf(ReasonNotReachable, at, "route %s not running", route))
	}

	fewest := h.constraints.FewestChanges(route)
	if fewest > h.changesLimit {
		return rec.Record(newReasonf(ReasonNotReachable, at, "needs %d changes", fewest))
	}
	if fewest+changes > h.changesLimit {
		return rec.Record(newReasonf(ReasonTooManyInterchanges, at, "needs %d more changes after %d", fewest, changes))
	}
	return rec.Record(newReason(ReasonReachable, at))
}

// LowerCostIncludingInterchange distinguishes staying on a route that runs
// through to the destination from routes that still need an interchange.
func (h *ServiceHeuristics) LowerCostIncludingInterchange(routeStationNode *graph.Node, at HowIGotHere, rec *Recorder) Reason {
	rec.IncrementChecked()

	route, err := routeStationNode.Route()
	if err != nil {
		return rec.Record(newReasonf(ReasonNotReachable, at, "route station missing route id: %v", err))
	}
	if h.constraints.FewestChanges(route) == 0 {
		return rec.Record(newReason(ReasonReachableSameRoute, at))
	}
	return rec.Record(newReason(ReasonReachable, at))
}
