package search

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Running is the externally owned cancellation flag, checked on every
// evaluation so a stopped search terminates promptly.
type Running interface {
	IsRunning() bool
}

// RunningFunc adapts a closure to the Running interface.
type RunningFunc func() bool

func (f RunningFunc) IsRunning() bool { return f() }

// Evaluator decides, per candidate path position, whether the driver should
// extend the path, accept it as an arrival, or abandon it. One evaluator
// serves one query; all its caches are per-query state.
type Evaluator struct {
	heuristics *ServiceHeuristics

	txn            graph.Transaction
	destinationIDs map[graph.NodeID]struct{}
	startNodeID    graph.NodeID

	requestedLabels   graph.LabelSet
	destinationLabels graph.LabelSet

	recorder  *Recorder
	previous  *PreviousVisits
	bestSoFar *LowestCostSeen
	running   Running

	maxWait        time.Duration
	maxInitialWait time.Duration
	depthFirst     bool

	// breadth-first dedupe of minute nodes already expanded
	seenTimeMu   sync.Mutex
	seenTimeNode map[graph.NodeID]struct{}

	// serialises arrival processing against the shared best-result state
	arrivalMu sync.Mutex

	log *zap.Logger
}

// EvaluatorConfig carries the per-query wiring for an Evaluator.
type EvaluatorConfig struct {
	Heuristics       *ServiceHeuristics
	Txn              graph.Transaction
	DestinationIDs   []graph.NodeID
	StartNodeID      graph.NodeID
	RequestedModes   transit.ModeSet
	DestinationModes transit.ModeSet
	Recorder         *Recorder
	PreviousVisits   *PreviousVisits
	BestSoFar        *LowestCostSeen
	Running          Running
	MaxWait          time.Duration
	MaxInitialWait   time.Duration
	DepthFirst       bool
	Logger           *zap.Logger
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	destinations := make(map[graph.NodeID]struct{}, len(cfg.DestinationIDs))
	for _, id := range cfg.DestinationIDs {
		destinations[id] = struct{}{}
	}
	return &Evaluator{
		heuristics:        cfg.Heuristics,
		txn:               cfg.Txn,
		destinationIDs:    destinations,
		startNodeID:       cfg.StartNodeID,
		requestedLabels:   graph.LabelsForModes(cfg.RequestedModes),
		destinationLabels: graph.LabelsForModes(cfg.DestinationModes),
		recorder:          cfg.Recorder,
		previous:          cfg.PreviousVisits,
		bestSoFar:         cfg.BestSoFar,
		running:           cfg.Running,
		maxWait:           cfg.MaxWait,
		maxInitialWait:    cfg.MaxInitialWait,
		depthFirst:        cfg.DepthFirst,
		seenTimeNode:      make(map[graph.NodeID]struct{}),
		log:               logger.Named("evaluator"),
	}
}

// MatchesDestination reports whether the node is one of the query's
// destination nodes.
func (e *Evaluator) MatchesDestination(id graph.NodeID) bool {
	_, ok := e.destinationIDs[id]
	return ok
}

// Evaluate runs the admissibility pipeline for the path's current end node
// and returns the action the driver must take.
func (e *Evaluator) Evaluate(path *Path, state ReadState) Action {
	endNodeID := path.EndNodeID()
	node, err := e.txn.Node(endNodeID)
	if err != nil {
		e.log.Error("path end node not readable", zap.Int64("node", int64(endNodeID)), zap.Error(err))
		return ActionExcludeAndPrune
	}
	labels := node.Labels()

	at := HowIGotHere{
		EndNode:      endNodeID,
		PreviousNode: path.PreviousNodeID(),
		Changes:      state.NumberChanges(),
		PathLength:   path.Length(),
	}
	e.recorder.RecordVisit(at)

	if !e.running.IsRunning() {
		return e.recorder.Record(newReason(ReasonSearchStopped, at)).Action()
	}

	// replaying a memoized outcome avoids re-exploring the same subtree
	// for the same journey clock
	previous := e.previous.PreviousResult(endNodeID, state, labels, at)
	if previous.Code != ReasonCacheMiss {
		e.recorder.Record(newReason(ReasonCachedResult, at))
		return ActionExcludeAndPrune
	}
	e.recorder.Record(previous)

	reason := e.doEvaluate(path, state, node, labels, at)

	e.previous.CacheIfUseful(reason, endNodeID, state, labels)

	return reason.Action()
}

func (e *Evaluator) doEvaluate(path *Path, state ReadState, node *graph.Node, labels graph.LabelSet, at HowIGotHere) Reason {
	nodeID := node.ID()
	totalDuration := state.TotalDuration()

	if e.MatchesDestination(nodeID) {
		return e.processArrival(state, at, totalDuration)
	}
	if e.bestSoFar.EverArrived() && totalDuration > e.bestSoFar.LowestDuration() {
		return e.recorder.Record(newReasonf(ReasonHigherCost, at, "%s over best %s", totalDuration, e.bestSoFar.LowestDuration()))
	}

	if state.JustBoarded() && state.DuplicateBoardingSeen() {
		return e.recorder.Record(newReason(ReasonAlreadyBoarded, at))
	}

	if path.Length() > e.heuristics.MaxPathLength() {
		if e.depthFirst {
			e.log.Warn("hit max path length", zap.Int("length", path.Length()))
		}
		return e.recorder.Record(newReason(ReasonPathTooLong, at))
	}

	if r := e.heuristics.CheckNumberChanges(state.NumberChanges(), at, e.recorder); !r.IsValid() {
		return r
	}
	if r := e.heuristics.CheckNumberWalkingConnections(state.WalkingConnections(), at, e.recorder); !r.IsValid() {
		return r
	}
	if r := e.heuristics.CheckNumberNeighbourConnections(state.NeighbourConnections(), at, e.recorder); !r.IsValid() {
		return r
	}
	if r := e.heuristics.JourneyDurationUnderLimit(totalDuration, at, e.recorder); !r.IsValid() {
		return r
	}

	if path.Length() > 1 && nodeID == e.startNodeID {
		return e.recorder.Record(newReason(ReasonReturnedToStart, at))
	}

	visitingTime := state.JourneyClock()
	waitAllowance := e.maxInitialWait
	if state.HasBegun() {
		waitAllowance = e.maxWait
	}

	if labels.Has(graph.LabelMinute) {
		if !e.depthFirst {
			if e.alreadySeenTime(nodeID) {
				return e.recorder.Record(newReason(ReasonAlreadySeenTime, at))
			}
		}
		if r := e.heuristics.CheckNotBeenOnTripBefore(node, state, at, e.recorder); !r.IsValid() {
			return r
		}
		if r := e.heuristics.CheckTime(node, visitingTime, waitAllowance, at, e.recorder); !r.IsValid() {
			return r
		}
	}

	// ordered by how many nodes of each category the graph holds

	if labels.Has(graph.LabelHour) {
		if r := e.heuristics.InterestedInHour(node, visitingTime, waitAllowance, at, e.recorder); !r.IsValid() {
			return r
		}
	}

	if labels.Has(graph.LabelService) {
		if r := e.heuristics.CheckServiceDateAndTime(node, visitingTime, waitAllowance, at, e.recorder); !r.IsValid() {
			return r
		}
	}

	if labels.Has(graph.LabelRouteStation) {
		if r := e.heuristics.CheckModes(labels, e.requestedLabels, at, e.recorder); !r.IsValid() {
			return r
		}
		if r := e.heuristics.CheckStationOpen(node, at, e.recorder); !r.IsValid() {
			// the station may still be reached via a walk, which bypasses
			// the route station
			return r
		}
		if r := e.heuristics.CheckModesMatchForFinalChange(state.NumberChanges(), labels, e.destinationLabels, at, e.recorder); !r.IsValid() {
			return r
		}
		if e.depthFirst {
			// too slow for breadth-first on larger graphs
			if r := e.heuristics.CanReachDestination(node, state.NumberChanges(), visitingTime, at, e.recorder); !r.IsValid() {
				return r
			}
			if r := e.heuristics.LowerCostIncludingInterchange(node, at, e.recorder); !r.IsValid() {
				return r
			}
		}
	}

	return e.recorder.Record(newReason(ReasonContinue, at))
}

func (e *Evaluator) alreadySeenTime(id graph.NodeID) bool {
	e.seenTimeMu.Lock()
	defer e.seenTimeMu.Unlock()
	if _, seen := e.seenTimeNode[id]; seen {
		return true
	}
	e.seenTimeNode[id] = struct{}{}
	return false
}

// processArrival compares an arrival against the best seen so far. A
// strictly better duration or strictly fewer changes is accepted; equal
// changes arriving later, or dominated arrivals, are kept only as
// diagnostics.
func (e *Evaluator) processArrival(state ReadState, at HowIGotHere, totalDuration time.Duration) Reason {
	e.arrivalMu.Lock()
	defer e.arrivalMu.Unlock()

	changes := state.NumberChanges()

	if e.bestSoFar.IsLower(state) {
		e.bestSoFar.SetLowestCost(state)
		return e.recorder.Record(newReasonf(ReasonArrived, at, "%s with %d changes", totalDuration, changes))
	}

	lowestChanges := e.bestSoFar.LowestNumChanges()
	switch {
	case changes == lowestChanges:
		return e.recorder.Record(newReasonf(ReasonArrivedLater, at, "%s with %d changes", totalDuration, changes))
	case changes < lowestChanges:
		e.bestSoFar.SetLowestCost(state)
		return e.recorder.Record(newReasonf(ReasonArrived, at, "%s with %d changes", totalDuration, changes))
	default:
		return e.recorder.Record(newReasonf(ReasonArrivedMoreChanges, at, "%d changes", changes))
	}
}
