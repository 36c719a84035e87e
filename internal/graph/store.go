package graph

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Graph is the operation surface shared by the durable store and the
// per-transaction overlay. Transactions program against this interface so the
// read path is identical whichever backing is underneath.
type Graph interface {
	CreateNode(labels ...Label) *Node
	CreateRelationship(t RelationshipType, start, end NodeID) (*Relationship, error)
	DeleteNode(id NodeID) error
	DeleteRelationship(id RelationshipID) error
	AddLabel(id NodeID, l Label) error

	Node(id NodeID) (*Node, error)
	Relationship(id RelationshipID) (*Relationship, error)
	HasNode(id NodeID) bool
	HasRelationship(id RelationshipID) bool
	FindNodes(l Label) []*Node
	FindNodesWith(l Label, key PropertyKey, value string) []*Node
	RelationshipsFor(id NodeID, dir Direction, types ...RelationshipType) ([]*Relationship, error)
	CountOf(t RelationshipType) int
}

type nodePair struct {
	start NodeID
	end   NodeID
}

type adjacency struct {
	outbound map[RelationshipID]struct{}
	inbound  map[RelationshipID]struct{}
}

func newAdjacency() *adjacency {
	return &adjacency{
		outbound: make(map[RelationshipID]struct{}),
		inbound:  make(map[RelationshipID]struct{}),
	}
}

func (a *adjacency) isEmpty() bool {
	return len(a.outbound) == 0 && len(a.inbound) == 0
}

// Store owns all nodes and relationships plus the label and adjacency
// indices. All cross-references between elements are id lookups through the
// store, never direct pointers, so the cyclic node/relationship structure has
// no ownership cycles.
//
// Structural mutation takes the write lock; scans and adjacency reads may run
// concurrently with each other under the read lock.
type Store struct {
	mu sync.RWMutex

	ids *IDAllocator

	nodes         map[NodeID]*Node
	relationships map[RelationshipID]*Relationship

	labelIndex map[Label]map[NodeID]struct{}
	adjacent   map[NodeID]*adjacency

	// duplicate-edge guard: which types already exist per ordered pair
	existing map[nodePair]map[RelationshipType]struct{}

	typeCounts map[RelationshipType]int

	log *zap.Logger
}

var _ Graph = (*Store)(nil)

// NewStore creates an empty store sharing the given id allocator.
func NewStore(ids *IDAllocator, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		ids:           ids,
		nodes:         make(map[NodeID]*Node),
		relationships: make(map[RelationshipID]*Relationship),
		labelIndex:    make(map[Label]map[NodeID]struct{}),
		adjacent:      make(map[NodeID]*adjacency),
		existing:      make(map[nodePair]map[RelationshipType]struct{}),
		typeCounts:    make(map[RelationshipType]int),
		log:           logger.Named("graph_store"),
	}
	for _, l := range AllLabels() {
		s.labelIndex[l] = make(map[NodeID]struct{})
	}
	return s
}

// IDs exposes the allocator, for transaction overlays and snapshots.
func (s *Store) IDs() *IDAllocator { return s.ids }

func (s *Store) CreateNode(labels ...Label) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := newNode(s.ids.NextNodeID(), NewLabelSet(labels...))
	s.insertNodeLocked(node)
	return node
}

func (s *Store) insertNodeLocked(node *Node) {
	s.nodes[node.id] = node
	s.adjacent[node.id] = newAdjacency()
	for _, l := range node.labels.Labels() {
		s.labelIndex[l][node.id] = struct{}{}
	}
}

func (s *Store) CreateRelationship(t RelationshipType, start, end NodeID) (*Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[start]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := s.nodes[end]; !ok {
		return nil, ErrNotFound
	}
	if err := s.claimPairLocked(t, start, end); err != nil {
		return nil, err
	}

	rel := newRelationship(s.ids.NextRelationshipID(), t, start, end)
	s.insertRelationshipLocked(rel)
	return rel, nil
}

// claimPairLocked enforces "at most one relationship of a type per ordered
// node pair".
func (s *Store) claimPairLocked(t RelationshipType, start, end NodeID) error {
	pair := nodePair{start: start, end: end}
	types, ok := s.existing[pair]
	if !ok {
		types = make(map[RelationshipType]struct{})
		s.existing[pair] = types
	}
	if _, dup := types[t]; dup {
		err := &DuplicateRelationshipError{Type: t, Start: start, End: end}
		s.log.Error("duplicate relationship rejected", zap.Error(err))
		return err
	}
	types[t] = struct{}{}
	return nil
}

func (s *Store) insertRelationshipLocked(rel *Relationship) {
	s.relationships[rel.id] = rel
	s.adjacencyLocked(rel.start).outbound[rel.id] = struct{}{}
	s.adjacencyLocked(rel.end).inbound[rel.id] = struct{}{}
	s.typeCounts[rel.relType]++
}

func (s *Store) adjacencyLocked(id NodeID) *adjacency {
	adj, ok := s.adjacent[id]
	if !ok {
		adj = newAdjacency()
		s.adjacent[id] = adj
	}
	return adj
}

func (s *Store) DeleteNode(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if adj, ok := s.adjacent[id]; ok && !adj.isEmpty() {
		err := &NodeHasRelationshipsError{Node: id}
		s.log.Error("delete rejected", zap.Error(err))
		return err
	}
	for _, l := range node.labels.Labels() {
		delete(s.labelIndex[l], id)
	}
	delete(s.adjacent, id)
	delete(s.nodes, id)
	return nil
}

func (s *Store) DeleteRelationship(id RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[id]
	if !ok {
		return ErrNotFound
	}
	if adj, ok := s.adjacent[rel.start]; ok {
		delete(adj.outbound, id)
	}
	if adj, ok := s.adjacent[rel.end]; ok {
		delete(adj.inbound, id)
	}
	// release the pair so the edge can be legitimately recreated later
	if types, ok := s.existing[nodePair{start: rel.start, end: rel.end}]; ok {
		delete(types, rel.relType)
	}
	s.typeCounts[rel.relType]--
	delete(s.relationships, id)
	return nil
}

func (s *Store) AddLabel(id NodeID, l Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	node.addLabel(l)
	s.labelIndex[l][id] = struct{}{}
	return nil
}

func (s *Store) Node(id NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return node, nil
}

func (s *Store) Relationship(id RelationshipID) (*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rel, nil
}

func (s *Store) HasNode(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

func (s *Store) HasRelationship(id RelationshipID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relationships[id]
	return ok
}

// FindNodes scans the label index, returning matches in id order so repeated
// scans are deterministic.
func (s *Store) FindNodes(l Label) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.labelIndex[l]
	out := make([]*Node, 0, len(ids))
	for id := range ids {
		out = append(out, s.nodes[id])
	}
	sortNodesByID(out)
	return out
}

func sortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
}

func sortRelationshipsByID(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool { return rels[i].id < rels[j].id })
}

// FindNodesWith is a label scan plus an equality filter on one string
// property.
func (s *Store) FindNodesWith(l Label, key PropertyKey, value string) []*Node {
	var out []*Node
	for _, node := range s.FindNodes(l) {
		if v, ok := node.bag.Get(key); ok && v == value {
			out = append(out, node)
		}
	}
	return out
}

// RelationshipsFor returns a node's relationships in the given direction,
// optionally restricted to a set of types. A node with no adjacency entry
// yields an empty result, not an error.
func (s *Store) RelationshipsFor(id NodeID, dir Direction, types ...RelationshipType) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj, ok := s.adjacent[id]
	if !ok {
		if _, exists := s.nodes[id]; !exists {
			return nil, ErrNotFound
		}
		return nil, nil
	}

	var out []*Relationship
	appendMatching := func(set map[RelationshipID]struct{}) {
		for relID := range set {
			rel := s.relationships[relID]
			if len(types) > 0 && !typeMatches(rel.relType, types) {
				continue
			}
			out = append(out, rel)
		}
	}
	switch dir {
	case Outgoing:
		appendMatching(adj.outbound)
	case Incoming:
		appendMatching(adj.inbound)
	case Both:
		appendMatching(adj.outbound)
		appendMatching(adj.inbound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func typeMatches(t RelationshipType, types []RelationshipType) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

// CountOf is O(1) via the maintained per-type counters.
func (s *Store) CountOf(t RelationshipType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typeCounts[t]
}

// CountNodesWith reports how many nodes carry the label, used to size the
// search-side memoization caches.
func (s *Store) CountNodesWith(l Label) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labelIndex[l])
}

// adopt inserts an externally built node, keeping its existing id. Used when
// overlays copy parent nodes and when snapshots are loaded.
func (s *Store) adopt(node *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertNodeLocked(node)
}

// adoptRelationship inserts an externally built relationship under the usual
// duplicate-pair guard.
func (s *Store) adoptRelationship(rel *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimPairLocked(rel.relType, rel.start, rel.end); err != nil {
		return err
	}
	s.insertRelationshipLocked(rel)
	return nil
}

// applyChanges publishes a committed overlay: deletions first, then the
// overlay's nodes and relationships. Called with the overlay already
// quiesced.
func (s *Store) applyChanges(local *Store, deletedRels map[RelationshipID]struct{}, deletedNodes map[NodeID]struct{}) error {
	for relID := range deletedRels {
		if err := s.DeleteRelationship(relID); err != nil {
			return err
		}
	}
	for nodeID := range deletedNodes {
		if err := s.DeleteNode(nodeID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	local.mu.RLock()
	defer local.mu.RUnlock()

	for _, node := range local.nodes {
		if existing, ok := s.nodes[node.id]; ok {
			// node was copied into the overlay; replace content and labels
			for _, l := range existing.labels.Labels() {
				delete(s.labelIndex[l], node.id)
			}
			s.nodes[node.id] = node
			for _, l := range node.labels.Labels() {
				s.labelIndex[l][node.id] = struct{}{}
			}
			continue
		}
		s.insertNodeLocked(node)
	}
	for _, rel := range local.relationships {
		if _, ok := s.relationships[rel.id]; ok {
			s.relationships[rel.id] = rel
			continue
		}
		// claim the pair unless the slot already belongs to this edge
		pair := nodePair{start: rel.start, end: rel.end}
		if types, ok := s.existing[pair]; ok {
			if _, taken := types[rel.relType]; taken {
				return &DuplicateRelationshipError{Type: rel.relType, Start: rel.start, End: rel.end}
			}
		}
		if s.existing[pair] == nil {
			s.existing[pair] = make(map[RelationshipType]struct{})
		}
		s.existing[pair][rel.relType] = struct{}{}
		s.insertRelationshipLocked(rel)
	}
	return nil
}
