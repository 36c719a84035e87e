package netbuild

import (
	"sort"
	"time"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Calendar answers service running questions for the single query date a
// search is bound to, derived from the timetable used to build the graph.
type Calendar struct {
	departures map[transit.ServiceID][]int
	notRunning map[transit.ServiceID]struct{}
}

var _ transit.RunningServices = (*Calendar)(nil)

// NewCalendar indexes every departure per service. Services listed in
// Network.NotRunning are treated as not operating on the query date.
func NewCalendar(network *Network) *Calendar {
	cal := &Calendar{
		departures: make(map[transit.ServiceID][]int),
		notRunning: make(map[transit.ServiceID]struct{}, len(network.NotRunning)),
	}
	for _, id := range network.NotRunning {
		cal.notRunning[id] = struct{}{}
	}
	for _, trip := range network.Trips {
		for _, stop := range trip.Stops[:max(len(trip.Stops)-1, 0)] {
			cal.departures[trip.Service] = append(cal.departures[trip.Service], absoluteMinutes(stop.Depart))
		}
	}
	for _, times := range cal.departures {
		sort.Ints(times)
	}
	return cal
}

func (c *Calendar) RunsOnDate(id transit.ServiceID, visit transit.ClockTime) bool {
	if _, off := c.notRunning[id]; off {
		return false
	}
	_, ok := c.departures[id]
	return ok
}

func (c *Calendar) RunsAtTime(id transit.ServiceID, visit transit.ClockTime, maxWait time.Duration) bool {
	times, ok := c.departures[id]
	if !ok {
		return false
	}
	from := absoluteMinutes(visit)
	until := from + int(maxWait.Minutes())
	idx := sort.SearchInts(times, from)
	return idx < len(times) && times[idx] <= until
}

// Closures is the set of stations shut on the query date.
type Closures map[transit.StationID]struct{}

var _ transit.StationAvailability = Closures{}

func NewClosures(network *Network) Closures {
	set := make(Closures, len(network.Closed))
	for _, id := range network.Closed {
		set[id] = struct{}{}
	}
	return set
}

func (c Closures) IsClosed(id transit.StationID) bool {
	_, closed := c[id]
	return closed
}

// Reachability answers per-route interchange distance questions for one
// destination station, from the route topology of the network.
type Reachability struct {
	// fewest interchanges from each route to any route calling at the
	// destination; routes absent from the map cannot reach it
	changes map[transit.RouteID]int
	// latest timetabled activity on each route; past it nothing on the
	// route can still be ridden
	lastActive map[transit.RouteID]int
}

var _ transit.Reachability = (*Reachability)(nil)

// NewReachability walks the route interchange topology backwards from the
// destination. Two routes are one interchange apart when they call at a
// shared station.
func NewReachability(network *Network, destination transit.StationID) *Reachability {
	routesAt := make(map[transit.StationID][]transit.RouteID)
	stationsOn := make(map[transit.RouteID]map[transit.StationID]struct{})
	lastActive := make(map[transit.RouteID]int)

	for _, trip := range network.Trips {
		stations := stationsOn[trip.Route]
		if stations == nil {
			stations = make(map[transit.StationID]struct{})
			stationsOn[trip.Route] = stations
		}
		for _, stop := range trip.Stops {
			if _, seen := stations[stop.Station]; !seen {
				stations[stop.Station] = struct{}{}
				routesAt[stop.Station] = append(routesAt[stop.Station], trip.Route)
			}
			for _, at := range []int{absoluteMinutes(stop.Arrive), absoluteMinutes(stop.Depart)} {
				if at > lastActive[trip.Route] {
					lastActive[trip.Route] = at
				}
			}
		}
	}

	changes := make(map[transit.RouteID]int)
	frontier := routesAt[destination]
	for _, route := range frontier {
		changes[route] = 0
	}
	for len(frontier) > 0 {
		var next []transit.RouteID
		for _, route := range frontier {
			for station := range stationsOn[route] {
				for _, other := range routesAt[station] {
					if _, seen := changes[other]; seen {
						continue
					}
					changes[other] = changes[route] + 1
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	return &Reachability{changes: changes, lastActive: lastActive}
}

func (r *Reachability) FewestChanges(route transit.RouteID) int {
	if n, ok := r.changes[route]; ok {
		return n
	}
	// unreachable: larger than any change budget
	return 1 << 16
}

func (r *Reachability) UnavailableAt(route transit.RouteID, at transit.ClockTime) bool {
	last, ok := r.lastActive[route]
	if !ok {
		return true
	}
	return absoluteMinutes(at) > last
}

func absoluteMinutes(t transit.ClockTime) int {
	minutes := t.Minutes()
	if t.IsNextDay() {
		minutes += 24 * 60
	}
	return minutes
}
