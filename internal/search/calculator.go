package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/api/schemas"
	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/metrics"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// CalculatorConfig carries the query-independent search knobs.
type CalculatorConfig struct {
	MaxWait                 time.Duration
	MaxInitialWait          time.Duration
	MaxJourneyDuration      time.Duration
	MaxWalkingConnections   int
	MaxNeighbourConnections int
	DepthFirst              bool
	Diagnostics             bool
	CacheDisabled           bool
}

// RouteCalculator answers journey requests over one graph. Safe for
// concurrent use; all mutable search state is built per query.
type RouteCalculator struct {
	manager *graph.Manager
	counts  NodeCounts

	running      transit.RunningServices
	availability transit.StationAvailability
	reachability transit.Reachability

	cfg CalculatorConfig
	log *zap.Logger
}

func NewRouteCalculator(
	manager *graph.Manager,
	counts NodeCounts,
	running transit.RunningServices,
	availability transit.StationAvailability,
	reachability transit.Reachability,
	cfg CalculatorConfig,
	logger *zap.Logger,
) *RouteCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteCalculator{
		manager:      manager,
		counts:       counts,
		running:      running,
		availability: availability,
		reachability: reachability,
		cfg:          cfg,
		log:          logger.Named("route_calculator"),
	}
}

// Calculate runs one journey query. A request that matches no admissible
// path returns an empty result set, not an error; errors are reserved for
// malformed requests and unreadable graphs.
func (c *RouteCalculator) Calculate(ctx context.Context, req schemas.JourneyRequest) (schemas.JourneyResults, error) {
	started := time.Now()
	results := schemas.JourneyResults{Request: req}

	txn := c.manager.Begin()
	defer txn.Close()

	origin, err := stationNode(txn, req.Origin)
	if err != nil {
		return results, fmt.Errorf("origin: %w", err)
	}
	destination, err := stationNode(txn, req.Destination)
	if err != nil {
		return results, fmt.Errorf("destination: %w", err)
	}

	maxDuration := req.MaxDuration
	if maxDuration <= 0 {
		maxDuration = c.cfg.MaxJourneyDuration
	}
	destinationsOpen := transit.NewTimeRange(req.DepartAfter, req.DepartAfter.Plus(maxDuration))

	constraints, err := NewJourneyConstraints(
		c.running, c.availability, c.reachability,
		req.Modes, maxDuration,
		c.cfg.MaxWalkingConnections, c.cfg.MaxNeighbourConnections,
		destinationsOpen, c.log)
	if err != nil {
		return results, err
	}

	destinationModes := destination.TransportModes()
	if destinationModes.IsEmpty() {
		destinationModes = req.Modes
	}

	recorder := NewRecorder(c.cfg.Diagnostics, c.log)
	previous := NewPreviousVisits(c.cfg.CacheDisabled, c.counts, c.log)
	evaluator := NewEvaluator(EvaluatorConfig{
		Heuristics:       NewServiceHeuristics(constraints, req.DepartAfter, req.MaxChanges),
		Txn:              txn,
		DestinationIDs:   []graph.NodeID{destination.ID()},
		StartNodeID:      origin.ID(),
		RequestedModes:   req.Modes,
		DestinationModes: destinationModes,
		Recorder:         recorder,
		PreviousVisits:   previous,
		BestSoFar:        NewLowestCostSeen(c.log),
		Running:          RunningFunc(func() bool { return ctx.Err() == nil }),
		MaxWait:          c.cfg.MaxWait,
		MaxInitialWait:   c.cfg.MaxInitialWait,
		DepthFirst:       c.cfg.DepthFirst,
		Logger:           c.log,
	})
	driver := NewDriver(txn, evaluator, c.cfg.DepthFirst, req.MaxResults, c.log)

	accepted := driver.Traverse(origin.ID(), req.DepartAfter)

	for _, a := range accepted {
		stages, err := c.stagesFor(txn, a.Path, req.DepartAfter)
		if err != nil {
			c.log.Warn("accepted path could not be mapped to stages", zap.Error(err))
			continue
		}
		journey := schemas.Journey{
			DepartTime: req.DepartAfter,
			ArriveTime: a.Arrival,
			Duration:   a.Duration,
			Changes:    a.Changes,
			Stages:     stages,
		}
		if len(stages) > 0 {
			journey.DepartTime = stages[0].DepartTime
		}
		results.Journeys = append(results.Journeys, journey)
	}
	sort.SliceStable(results.Journeys, func(i, j int) bool {
		a, b := results.Journeys[i], results.Journeys[j]
		if a.ArriveTime != b.ArriveTime {
			return a.ArriveTime.IsBefore(b.ArriveTime)
		}
		return a.Changes < b.Changes
	})

	results.NodesVisited = recorder.Visits()
	results.ChecksRun = recorder.TotalChecked()
	c.reportQuery(recorder, previous, len(results.Journeys), time.Since(started))
	return results, nil
}

func (c *RouteCalculator) reportQuery(recorder *Recorder, previous *PreviousVisits, journeys int, elapsed time.Duration) {
	recorder.ReportStats()
	previous.ReportStats()

	metrics.QueriesTotal.Inc()
	metrics.QueryDuration.Observe(elapsed.Seconds())
	metrics.JourneysFound.Observe(float64(journeys))
	metrics.EvaluationsTotal.Add(float64(recorder.Visits()))
	metrics.HeuristicChecksTotal.Add(float64(recorder.TotalChecked()))
	for _, code := range AllReasonCodes() {
		if n := recorder.CountFor(code); n > 0 {
			metrics.ReasonsTotal.WithLabelValues(code.String()).Add(float64(n))
		}
	}
}

// stationNode resolves a station id to its graph node.
func stationNode(txn graph.Transaction, id transit.StationID) (*graph.Node, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("empty station id")
	}
	nodes := txn.FindNodesWith(graph.LabelStation, graph.KeyStationID, string(id))
	if len(nodes) == 0 {
		return nil, fmt.Errorf("station %s: %w", id, graph.ErrNotFound)
	}
	return nodes[0], nil
}

// stagesFor replays an accepted path into presentation stages. The journey
// clock follows the same rules as the traversal: walk and connection costs
// advance it directly, minute nodes pin it to the scheduled departure, and
// on-vehicle hops advance it by the hop cost.
func (c *RouteCalculator) stagesFor(txn graph.Transaction, path *Path, queryTime transit.ClockTime) ([]schemas.JourneyStage, error) {
	var stages []schemas.JourneyStage
	var current *schemas.JourneyStage
	departSet := false

	clock := queryTime
	nodes := path.NodeIDs()
	rels := path.RelationshipIDs()

	for i, relID := range rels {
		rel, err := txn.Relationship(relID)
		if err != nil {
			return nil, err
		}
		node, err := txn.Node(nodes[i+1])
		if err != nil {
			return nil, err
		}

		var cost time.Duration
		if rel.Has(graph.KeyCost) {
			if cost, err = rel.Cost(); err != nil {
				return nil, err
			}
		}

		relType := rel.Type()
		switch {
		case relType.IsBoarding():
			mode, err := node.TransportMode()
			if err != nil {
				return nil, err
			}
			route, err := node.Route()
			if err != nil {
				return nil, err
			}
			current = &schemas.JourneyStage{
				Mode:      mode,
				FirstStop: stationOf(txn, rel.StartID()),
				Route:     route,
			}
			departSet = false

		case relType.IsDeparting():
			if current == nil {
				return nil, fmt.Errorf("departing without a boarding at path step %d", i)
			}
			current.LastStop = stationOf(txn, rel.EndID())
			current.ArriveTime = clock
			current.Duration = current.ArriveTime.DurationSince(current.DepartTime)
			stages = append(stages, *current)
			current = nil

		case relType.IsWalk() || relType == graph.Neighbour:
			walk := schemas.JourneyStage{
				Mode:       transit.ModeWalk,
				FirstStop:  stationOf(txn, rel.StartID()),
				LastStop:   stationOf(txn, rel.EndID()),
				DepartTime: clock,
				Duration:   cost,
			}
			clock = clock.Plus(cost)
			walk.ArriveTime = clock
			stages = append(stages, walk)
			continue

		case relType == graph.GoesTo:
			clock = clock.Plus(cost)
			if current != nil {
				current.StopsCalled++
			}
			continue

		default:
			clock = clock.Plus(cost)
		}

		if node.HasLabel(graph.LabelMinute) {
			departure, err := node.Time()
			if err != nil {
				return nil, err
			}
			clock = departure
			if current != nil && !departSet {
				current.DepartTime = departure
				departSet = true
				if trip, err := node.Trip(); err == nil {
					current.Trip = trip
				}
			}
		}
	}
	if current != nil {
		return nil, fmt.Errorf("path ends while still on board")
	}
	return stages, nil
}

// stationOf best-effort resolves the station owning a node. Platform and
// route-station nodes carry their parent station id; synthetic walk nodes
// have none and map to an empty id.
func stationOf(txn graph.Transaction, id graph.NodeID) transit.StationID {
	node, err := txn.Node(id)
	if err != nil {
		return ""
	}
	station, err := node.Station()
	if err != nil {
		return ""
	}
	return station
}
