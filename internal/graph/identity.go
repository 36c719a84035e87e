package graph

import "sync/atomic"

// NodeID identifies a node for the lifetime of a store. Identity is the id
// alone; two nodes are the same node iff their ids are equal.
type NodeID int64

// RelationshipID identifies a relationship for the lifetime of a store.
type RelationshipID int64

const (
	// InvalidNodeID is returned where no node applies.
	InvalidNodeID NodeID = -1
	// InvalidRelationshipID is returned where no relationship applies.
	InvalidRelationshipID RelationshipID = -1
)

// IDAllocator hands out monotonically increasing node and relationship ids.
// A single allocator is shared between the durable store and any transaction
// overlays so ids stay unique across both. Safe for concurrent use.
type IDAllocator struct {
	nextNode atomic.Int64
	nextRel  atomic.Int64
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

func (a *IDAllocator) NextNodeID() NodeID {
	return NodeID(a.nextNode.Add(1))
}

func (a *IDAllocator) NextRelationshipID() RelationshipID {
	return RelationshipID(a.nextRel.Add(1))
}

// Resume raises the high-water marks after loading a snapshot so freshly
// allocated ids never collide with loaded ones. Lower marks are ignored.
func (a *IDAllocator) Resume(highestNode NodeID, highestRel RelationshipID) {
	for {
		current := a.nextNode.Load()
		if int64(highestNode) <= current || a.nextNode.CompareAndSwap(current, int64(highestNode)) {
			break
		}
	}
	for {
		current := a.nextRel.Load()
		if int64(highestRel) <= current || a.nextRel.CompareAndSwap(current, int64(highestRel)) {
			break
		}
	}
}

// HighWaterMarks reports the last allocated ids, for snapshotting.
func (a *IDAllocator) HighWaterMarks() (NodeID, RelationshipID) {
	return NodeID(a.nextNode.Load()), RelationshipID(a.nextRel.Load())
}
