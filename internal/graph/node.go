package graph

import "fmt"

// Node is an identity plus a label set and a property bag. Equality is by id
// only; the store hands out the single canonical instance per id.
type Node struct {
	Props

	id     NodeID
	labels LabelSet
}

func newNode(id NodeID, labels LabelSet) *Node {
	return &Node{Props: newProps(NewPropertyBag()), id: id, labels: labels}
}

func (n *Node) ID() NodeID { return n.id }

func (n *Node) Labels() LabelSet { return n.labels }

func (n *Node) HasLabel(l Label) bool { return n.labels.Has(l) }

func (n *Node) addLabel(l Label) { n.labels = n.labels.Add(l) }

// clone produces a detached copy for use inside a transaction overlay.
func (n *Node) clone() *Node {
	return &Node{Props: newProps(n.bag.Clone()), id: n.id, labels: n.labels}
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{id=%d labels=%s}", n.id, n.labels)
}

// Relationship is a directed typed edge between two nodes, with its own
// property bag. As with nodes, equality is by id.
type Relationship struct {
	Props

	id      RelationshipID
	relType RelationshipType
	start   NodeID
	end     NodeID
}

func newRelationship(id RelationshipID, relType RelationshipType, start, end NodeID) *Relationship {
	return &Relationship{
		Props:   newProps(NewPropertyBag()),
		id:      id,
		relType: relType,
		start:   start,
		end:     end,
	}
}

func (r *Relationship) ID() RelationshipID { return r.id }

func (r *Relationship) Type() RelationshipType { return r.relType }

func (r *Relationship) IsType(t RelationshipType) bool { return r.relType == t }

func (r *Relationship) StartID() NodeID { return r.start }

func (r *Relationship) EndID() NodeID { return r.end }

func (r *Relationship) clone() *Relationship {
	return &Relationship{
		Props:   newProps(r.bag.Clone()),
		id:      r.id,
		relType: r.relType,
		start:   r.start,
		end:     r.end,
	}
}

func (r *Relationship) String() string {
	return fmt.Sprintf("Relationship{id=%d type=%s %d->%d}", r.id, r.relType, r.start, r.end)
}
