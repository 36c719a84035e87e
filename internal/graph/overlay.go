package graph

import (
	"sync"

	"go.uber.org/zap"
)

// overlay is the private delta a mutable transaction writes into. Reads fall
// through to the parent store until an element is touched by a mutation, at
// which point the element (and, for nodes, its adjacent relationships) is
// copied into the local store. From then on the local copy wins.
//
// The overlay shares the parent's id allocator, so ids minted inside an
// uncommitted transaction never collide with ids in the parent.
type overlay struct {
	mu sync.Mutex

	parent *Store
	local  *Store

	// nodes whose full adjacency lives in local; their parent entries are
	// shadowed entirely
	copied map[NodeID]struct{}

	// parent elements deleted in this transaction
	deletedNodes map[NodeID]struct{}
	deletedRels  map[RelationshipID]struct{}

	// per-type relationship count delta against the parent
	newByType     map[RelationshipType]int
	removedByType map[RelationshipType]int

	log *zap.Logger
}

var _ Graph = (*overlay)(nil)

func newOverlay(parent *Store, logger *zap.Logger) *overlay {
	return &overlay{
		parent:        parent,
		local:         NewStore(parent.IDs(), logger),
		copied:        make(map[NodeID]struct{}),
		deletedNodes:  make(map[NodeID]struct{}),
		deletedRels:   make(map[RelationshipID]struct{}),
		newByType:     make(map[RelationshipType]int),
		removedByType: make(map[RelationshipType]int),
		log:           logger.Named("graph_overlay"),
	}
}

// ensureLocalNode copies a parent node into the local store, together with
// every adjacent relationship and the far endpoint of each, so that local
// traversal from the node is complete. Already-local nodes are returned as
// is.
func (o *overlay) ensureLocalNode(id NodeID) (*Node, error) {
	if _, gone := o.deletedNodes[id]; gone {
		return nil, ErrNotFound
	}
	if o.local.HasNode(id) {
		if _, full := o.copied[id]; !full {
			if err := o.copyAdjacency(id); err != nil {
				return nil, err
			}
			o.copied[id] = struct{}{}
		}
		return o.local.Node(id)
	}

	parentNode, err := o.parent.Node(id)
	if err != nil {
		return nil, err
	}
	localNode := parentNode.clone()
	o.local.adopt(localNode)
	if err := o.copyAdjacency(id); err != nil {
		return nil, err
	}
	o.copied[id] = struct{}{}
	return localNode, nil
}

func (o *overlay) copyAdjacency(id NodeID) error {
	parentRels, err := o.parent.RelationshipsFor(id, Both)
	if err != nil {
		return err
	}
	for _, rel := range parentRels {
		if _, gone := o.deletedRels[rel.id]; gone {
			continue
		}
		if o.local.HasRelationship(rel.id) {
			continue
		}
		// the far endpoint comes along shallowly: node content only, its
		// own wider adjacency stays in the parent
		far := rel.start
		if far == id {
			far = rel.end
		}
		if !o.local.HasNode(far) {
			farNode, err := o.parent.Node(far)
			if err != nil {
				return err
			}
			o.local.adopt(farNode.clone())
		}
		if err := o.local.adoptRelationship(rel.clone()); err != nil {
			return err
		}
	}
	return nil
}

func (o *overlay) ensureLocalRelationship(id RelationshipID) (*Relationship, error) {
	if _, gone := o.deletedRels[id]; gone {
		return nil, ErrNotFound
	}
	if o.local.HasRelationship(id) {
		return o.local.Relationship(id)
	}
	rel, err := o.parent.Relationship(id)
	if err != nil {
		return nil, err
	}
	if _, err := o.ensureLocalNode(rel.start); err != nil {
		return nil, err
	}
	return o.local.Relationship(id)
}

func (o *overlay) CreateNode(labels ...Label) *Node {
	o.mu.Lock()
	defer o.mu.Unlock()

	node := o.local.CreateNode(labels...)
	o.copied[node.id] = struct{}{}
	return node
}

func (o *overlay) CreateRelationship(t RelationshipType, start, end NodeID) (*Relationship, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.ensureLocalNode(start); err != nil {
		return nil, err
	}
	if _, err := o.ensureLocalNode(end); err != nil {
		return nil, err
	}
	rel, err := o.local.CreateRelationship(t, start, end)
	if err != nil {
		return nil, err
	}
	o.newByType[t]++
	return rel, nil
}

func (o *overlay) DeleteNode(id NodeID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	node, err := o.ensureLocalNode(id)
	if err != nil {
		return err
	}
	if err := o.local.DeleteNode(node.id); err != nil {
		return err
	}
	delete(o.copied, id)
	if o.parent.HasNode(id) {
		o.deletedNodes[id] = struct{}{}
	}
	return nil
}

func (o *overlay) DeleteRelationship(id RelationshipID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rel, err := o.ensureLocalRelationship(id)
	if err != nil {
		return err
	}
	if err := o.local.DeleteRelationship(id); err != nil {
		return err
	}
	if o.parent.HasRelationship(id) {
		o.deletedRels[id] = struct{}{}
		o.removedByType[rel.relType]++
	} else {
		o.newByType[rel.relType]--
	}
	return nil
}

func (o *overlay) AddLabel(id NodeID, l Label) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	node, err := o.ensureLocalNode(id)
	if err != nil {
		return err
	}
	return o.local.AddLabel(node.id, l)
}

// nodeForUpdate hands out the mutable local copy, copying on first touch.
func (o *overlay) nodeForUpdate(id NodeID) (*Node, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ensureLocalNode(id)
}

func (o *overlay) relationshipForUpdate(id RelationshipID) (*Relationship, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ensureLocalRelationship(id)
}

func (o *overlay) Node(id NodeID) (*Node, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, gone := o.deletedNodes[id]; gone {
		return nil, ErrNotFound
	}
	if o.local.HasNode(id) {
		return o.local.Node(id)
	}
	return o.parent.Node(id)
}

func (o *overlay) Relationship(id RelationshipID) (*Relationship, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, gone := o.deletedRels[id]; gone {
		return nil, ErrNotFound
	}
	if o.local.HasRelationship(id) {
		return o.local.Relationship(id)
	}
	return o.parent.Relationship(id)
}

func (o *overlay) HasNode(id NodeID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, gone := o.deletedNodes[id]; gone {
		return false
	}
	return o.local.HasNode(id) || o.parent.HasNode(id)
}

func (o *overlay) HasRelationship(id RelationshipID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, gone := o.deletedRels[id]; gone {
		return false
	}
	return o.local.HasRelationship(id) || o.parent.HasRelationship(id)
}

// FindNodes merges local and parent results, local copies shadowing their
// parent originals.
func (o *overlay) FindNodes(l Label) []*Node {
	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[NodeID]struct{})
	var out []*Node
	for _, node := range o.local.FindNodes(l) {
		seen[node.id] = struct{}{}
		out = append(out, node)
	}
	for _, node := range o.parent.FindNodes(l) {
		if _, gone := o.deletedNodes[node.id]; gone {
			continue
		}
		if _, dup := seen[node.id]; dup {
			continue
		}
		// a shallow local copy may have dropped out of this label's local
		// index if AddLabel diverged; local always wins when present
		if o.local.HasNode(node.id) {
			continue
		}
		out = append(out, node)
	}
	sortNodesByID(out)
	return out
}

func (o *overlay) FindNodesWith(l Label, key PropertyKey, value string) []*Node {
	var out []*Node
	for _, node := range o.FindNodes(l) {
		if v, ok := node.bag.Get(key); ok && v == value {
			out = append(out, node)
		}
	}
	return out
}

func (o *overlay) RelationshipsFor(id NodeID, dir Direction, types ...RelationshipType) ([]*Relationship, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, gone := o.deletedNodes[id]; gone {
		return nil, ErrNotFound
	}
	if _, full := o.copied[id]; full {
		return o.local.RelationshipsFor(id, dir, types...)
	}
	if o.local.HasNode(id) && !o.parent.HasNode(id) {
		return o.local.RelationshipsFor(id, dir, types...)
	}
	rels, err := o.parent.RelationshipsFor(id, dir, types...)
	if err != nil {
		return nil, err
	}
	var out []*Relationship
	for _, rel := range rels {
		if _, gone := o.deletedRels[rel.id]; gone {
			continue
		}
		if o.local.HasRelationship(rel.id) {
			local, err := o.local.Relationship(rel.id)
			if err != nil {
				return nil, err
			}
			rel = local
		}
		out = append(out, rel)
	}
	return out, nil
}

func (o *overlay) CountOf(t RelationshipType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.parent.CountOf(t) + o.newByType[t] - o.removedByType[t]
}

// hasChanges reports whether anything was written into the overlay.
func (o *overlay) hasChanges() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.local.nodes) > 0 || len(o.deletedNodes) > 0 || len(o.deletedRels) > 0
}

// commit publishes the delta into the parent. The overlay must not be used
// afterwards.
func (o *overlay) commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	parentRelDeletes := make(map[RelationshipID]struct{}, len(o.deletedRels))
	for id := range o.deletedRels {
		parentRelDeletes[id] = struct{}{}
	}
	parentNodeDeletes := make(map[NodeID]struct{}, len(o.deletedNodes))
	for id := range o.deletedNodes {
		parentNodeDeletes[id] = struct{}{}
	}
	return o.parent.applyChanges(o.local, parentRelDeletes, parentNodeDeletes)
}
