package transit

import "time"

// The search core does not own scheduling semantics. These interfaces are the
// boundary to the domain model that does: implementations answer calendar and
// availability questions for the single query date a search is bound to.

// RunningServices answers whether a service operates for the query date.
type RunningServices interface {
	// RunsOnDate reports whether the service operates on the query date at
	// the given visiting time (next-day times roll to the following date).
	RunsOnDate(id ServiceID, visit ClockTime) bool
	// RunsAtTime reports whether the service has any departure within
	// maxWait of the visiting time.
	RunsAtTime(id ServiceID, visit ClockTime, maxWait time.Duration) bool
}

// StationAvailability answers whether a station can be used on the query date.
type StationAvailability interface {
	IsClosed(id StationID) bool
}

// Reachability estimates, per route, how many interchanges are needed to get
// from that route to any destination route. Used only by the depth-first
// pruning checks, which tolerate an optimistic estimate.
type Reachability interface {
	// FewestChanges returns the minimum number of route interchanges from
	// the given route to a destination route. Zero means same route.
	FewestChanges(route RouteID) int
	// UnavailableAt reports whether the route has no service left at the
	// given time on the query date.
	UnavailableAt(route RouteID, at ClockTime) bool
}
