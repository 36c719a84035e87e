package search

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Path is an immutable walk through the graph: the node sequence plus the
// relationships that connect them. Extending returns a copy, so sibling
// branches share no state.
type Path struct {
	nodes []graph.NodeID
	rels  []graph.RelationshipID
}

func NewPath(start graph.NodeID) *Path {
	return &Path{nodes: []graph.NodeID{start}}
}

// Extend returns a new path with the relationship and its end node
// appended.
func (p *Path) Extend(rel graph.RelationshipID, node graph.NodeID) *Path {
	nodes := make([]graph.NodeID, len(p.nodes)+1)
	copy(nodes, p.nodes)
	nodes[len(p.nodes)] = node

	rels := make([]graph.RelationshipID, len(p.rels)+1)
	copy(rels, p.rels)
	rels[len(p.rels)] = rel

	return &Path{nodes: nodes, rels: rels}
}

// Length is the number of relationships traversed.
func (p *Path) Length() int { return len(p.rels) }

func (p *Path) EndNodeID() graph.NodeID { return p.nodes[len(p.nodes)-1] }

// PreviousNodeID returns the node before the end, or InvalidNodeID at the
// start of a path.
func (p *Path) PreviousNodeID() graph.NodeID {
	if len(p.nodes) < 2 {
		return graph.InvalidNodeID
	}
	return p.nodes[len(p.nodes)-2]
}

// LastRelationshipID returns the relationship that produced the end node,
// or false at the start of a path.
func (p *Path) LastRelationshipID() (graph.RelationshipID, bool) {
	if len(p.rels) == 0 {
		return 0, false
	}
	return p.rels[len(p.rels)-1], true
}

func (p *Path) NodeIDs() []graph.NodeID {
	out := make([]graph.NodeID, len(p.nodes))
	copy(out, p.nodes)
	return out
}

func (p *Path) RelationshipIDs() []graph.RelationshipID {
	out := make([]graph.RelationshipID, len(p.rels))
	copy(out, p.rels)
	return out
}

// AcceptedJourney is one admissible path to a destination together with the
// journey state as of arrival.
type AcceptedJourney struct {
	Path     *Path
	Duration time.Duration
	Changes  int
	Arrival  transit.ClockTime
}

// Driver performs the graph walk, calling the evaluator at every step and
// obeying its returned action. Depth first by default; breadth first swaps
// the frontier to FIFO order.
type Driver struct {
	txn        graph.Transaction
	evaluator  *Evaluator
	depthFirst bool
	maxResults int
	log        *zap.Logger
}

func NewDriver(txn graph.Transaction, evaluator *Evaluator, depthFirst bool, maxResults int, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		txn:        txn,
		evaluator:  evaluator,
		depthFirst: depthFirst,
		maxResults: maxResults,
		log:        logger.Named("path_driver"),
	}
}

type frontierEntry struct {
	path *Path
	// journey state as of leaving the previous node, before the cost of
	// the path's last relationship
	state *JourneyState
}

// Traverse walks outward from the start node until the frontier is
// exhausted or enough journeys are found. Each visited node is evaluated
// with the relationship cost already charged; the node's own entry effects,
// such as boarding, are applied afterwards and seen by its children.
func (d *Driver) Traverse(start graph.NodeID, queryTime transit.ClockTime) []AcceptedJourney {
	var found []AcceptedJourney

	frontier := []frontierEntry{{path: NewPath(start), state: NewJourneyState(queryTime)}}

	for len(frontier) > 0 {
		var entry frontierEntry
		if d.depthFirst {
			entry = frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
		} else {
			entry = frontier[0]
			frontier = frontier[1:]
		}

		current := entry.path.EndNodeID()

		state, err := d.chargeArrival(entry.path, entry.state)
		if err != nil {
			d.log.Error("charging path step failed", zap.Int64("node", int64(current)), zap.Error(err))
			continue
		}

		action := d.evaluator.Evaluate(entry.path, state)
		if action == ActionExcludeAndPrune {
			continue
		}

		if err := d.applyEntryEffects(entry.path, state); err != nil {
			// an inadmissible transition, such as a minute node belonging
			// to a different trip than the one being ridden
			d.log.Debug("branch abandoned", zap.Int64("node", int64(current)), zap.Error(err))
			continue
		}

		if d.evaluator.MatchesDestination(current) {
			found = append(found, AcceptedJourney{
				Path:     entry.path,
				Duration: state.TotalDuration(),
				Changes:  state.NumberChanges(),
				Arrival:  state.JourneyClock(),
			})
			if d.maxResults > 0 && len(found) >= d.maxResults {
				d.log.Debug("result limit reached", zap.Int("found", len(found)))
				return found
			}
		}
		if action == ActionIncludeAndPrune {
			continue
		}

		rels, err := d.txn.RelationshipsFor(current, graph.Outgoing, graph.TypesForPlanning()...)
		if err != nil {
			d.log.Error("expanding node failed", zap.Int64("node", int64(current)), zap.Error(err))
			continue
		}
		for _, rel := range rels {
			frontier = append(frontier, frontierEntry{
				path:  entry.path.Extend(rel.ID(), rel.EndID()),
				state: state,
			})
		}
	}
	return found
}

// chargeArrival forks the parent state and adds the cost of the
// relationship that produced the path's end node.
func (d *Driver) chargeArrival(path *Path, state *JourneyState) (*JourneyState, error) {
	forked := state.Fork()

	relID, ok := path.LastRelationshipID()
	if !ok {
		return forked, nil
	}
	rel, err := d.txn.Relationship(relID)
	if err != nil {
		return nil, err
	}
	if rel.Has(graph.KeyCost) {
		cost, err := rel.Cost()
		if err != nil {
			return nil, err
		}
		forked.AddCost(cost)
	}
	return forked, nil
}

// applyEntryEffects mutates the state with the effects of entering the
// path's end node: boarding or leaving a vehicle, walking, and pinning the
// clock to a scheduled departure at minute nodes.
func (d *Driver) applyEntryEffects(path *Path, state *JourneyState) error {
	relID, ok := path.LastRelationshipID()
	if !ok {
		return nil
	}
	rel, err := d.txn.Relationship(relID)
	if err != nil {
		return err
	}
	node, err := d.txn.Node(path.EndNodeID())
	if err != nil {
		return err
	}

	relType := rel.Type()
	switch {
	case relType.IsBoarding():
		mode, err := d.vehicleMode(rel, rel.EndID())
		if err != nil {
			return err
		}
		if err := state.Board(mode, rel.StartID()); err != nil {
			return err
		}
	case relType.IsDeparting():
		mode, err := d.vehicleMode(rel, rel.StartID())
		if err != nil {
			return err
		}
		if err := state.Leave(mode); err != nil {
			return err
		}
	case relType.IsWalk():
		state.BeginWalk()
	case relType == graph.Neighbour:
		state.ToNeighbour()
	default:
		state.ClearJustBoarded()
	}

	if node.HasLabel(graph.LabelMinute) {
		trip, err := node.Trip()
		if err != nil {
			return err
		}
		if err := state.BeginTrip(trip); err != nil {
			return err
		}
		departure, err := node.Time()
		if err != nil {
			return err
		}
		if err := state.RecordVehicleTime(departure); err != nil {
			return err
		}
	}
	return nil
}

// vehicleMode reads the transport mode from the relationship, falling back
// to the route-station node at the vehicle end of the edge.
func (d *Driver) vehicleMode(rel *graph.Relationship, routeStation graph.NodeID) (transit.Mode, error) {
	if rel.Has(graph.KeyTransportMode) {
		return rel.TransportMode()
	}
	node, err := d.txn.Node(routeStation)
	if err != nil {
		return transit.ModeUnknown, err
	}
	return node.TransportMode()
}
