package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for store and transaction misuse. Structural errors abort
// the build that triggered them; they are never produced by the search layer.
var (
	ErrNotFound             = errors.New("graph: not found")
	ErrImmutableTransaction = errors.New("graph: transaction is immutable")
	ErrTransactionClosed    = errors.New("graph: transaction already closed")
	ErrTransactionTimeout   = errors.New("graph: transaction timed out")
)

// DuplicateRelationshipError reports an attempt to create a second
// relationship of the same type between the same ordered node pair.
type DuplicateRelationshipError struct {
	Type  RelationshipType
	Start NodeID
	End   NodeID
}

func (e *DuplicateRelationshipError) Error() string {
	return fmt.Sprintf("graph: already have relationship of type %s between %d and %d", e.Type, e.Start, e.End)
}

// NodeHasRelationshipsError reports an attempt to delete a node whose
// adjacency sets are not empty.
type NodeHasRelationshipsError struct {
	Node NodeID
}

func (e *NodeHasRelationshipsError) Error() string {
	return fmt.Sprintf("graph: node %d still has relationships", e.Node)
}

// PropertyMissingError reports a read of a required property that was never
// set. It carries the entity's full property dump for diagnostics.
type PropertyMissingError struct {
	Key  PropertyKey
	Dump map[PropertyKey]any
}

func (e *PropertyMissingError) Error() string {
	return fmt.Sprintf("graph: missing property %q, have %v", e.Key, e.Dump)
}
