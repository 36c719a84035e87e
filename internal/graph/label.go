package graph

import (
	"strings"

	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Label is a categorical tag on a node, used for indexed scans. A node can
// carry several labels (a route-station node also carries the label of its
// transport mode, for example).
type Label uint8

const (
	LabelStation Label = iota
	LabelRouteStation
	LabelPlatform
	LabelService
	LabelHour
	LabelMinute
	LabelGrouped
	LabelQueryOrigin
	LabelInterchange
	LabelTram
	LabelBus
	LabelTrain
	LabelFerry
	LabelSubway
	LabelWalk

	numLabels
)

var labelNames = [numLabels]string{
	"station", "route_station", "platform", "service", "hour", "minute",
	"grouped", "query_origin", "interchange",
	"tram", "bus", "train", "ferry", "subway", "walk",
}

func (l Label) String() string {
	if int(l) < len(labelNames) {
		return labelNames[l]
	}
	return "invalid"
}

// ParseLabel is the inverse of Label.String, used by snapshot loading.
func ParseLabel(s string) (Label, bool) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), true
		}
	}
	return 0, false
}

// AllLabels lists every defined label, for index initialisation.
func AllLabels() []Label {
	out := make([]Label, numLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// LabelForMode maps a transport mode to its node label.
func LabelForMode(m transit.Mode) (Label, bool) {
	switch m {
	case transit.ModeTram:
		return LabelTram, true
	case transit.ModeBus:
		return LabelBus, true
	case transit.ModeTrain:
		return LabelTrain, true
	case transit.ModeFerry:
		return LabelFerry, true
	case transit.ModeSubway:
		return LabelSubway, true
	case transit.ModeWalk:
		return LabelWalk, true
	}
	return 0, false
}

// LabelSet is a bitmask over labels.
type LabelSet uint32

func NewLabelSet(labels ...Label) LabelSet {
	var s LabelSet
	for _, l := range labels {
		s = s.Add(l)
	}
	return s
}

// LabelsForModes builds the label set matching a set of transport modes.
func LabelsForModes(modes transit.ModeSet) LabelSet {
	var s LabelSet
	for _, m := range modes.Modes() {
		if l, ok := LabelForMode(m); ok {
			s = s.Add(l)
		}
	}
	return s
}

func (s LabelSet) Add(l Label) LabelSet      { return s | (1 << l) }
func (s LabelSet) Has(l Label) bool          { return s&(1<<l) != 0 }
func (s LabelSet) Intersects(o LabelSet) bool { return s&o != 0 }
func (s LabelSet) IsEmpty() bool             { return s == 0 }

// Labels expands the set in declaration order.
func (s LabelSet) Labels() []Label {
	var out []Label
	for l := Label(0); l < numLabels; l++ {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s LabelSet) String() string {
	labels := s.Labels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}

// RelationshipType is the fixed kind of a directed edge.
type RelationshipType uint8

const (
	EnterPlatform RelationshipType = iota
	LeavePlatform
	Board
	Depart
	InterchangeBoard
	InterchangeDepart
	ToService
	ToHour
	ToMinute
	GoesTo
	OnRoute
	WalksToStation
	WalksFromStation
	Neighbour
	GroupedToParent
	GroupedToChild
	DiversionDepart

	numRelationshipTypes
)

var relationshipTypeNames = [numRelationshipTypes]string{
	"ENTER_PLATFORM", "LEAVE_PLATFORM", "BOARD", "DEPART",
	"INTERCHANGE_BOARD", "INTERCHANGE_DEPART",
	"TO_SERVICE", "TO_HOUR", "TO_MINUTE", "GOES_TO", "ON_ROUTE",
	"WALKS_TO_STATION", "WALKS_FROM_STATION", "NEIGHBOUR",
	"GROUPED_TO_PARENT", "GROUPED_TO_CHILD", "DIVERSION_DEPART",
}

func (t RelationshipType) String() string {
	if int(t) < len(relationshipTypeNames) {
		return relationshipTypeNames[t]
	}
	return "INVALID"
}

// ParseRelationshipType is the inverse of String, used by snapshot loading.
func ParseRelationshipType(s string) (RelationshipType, bool) {
	for i, name := range relationshipTypeNames {
		if name == s {
			return RelationshipType(i), true
		}
	}
	return 0, false
}

// AllRelationshipTypes lists every defined type, for counter initialisation.
func AllRelationshipTypes() []RelationshipType {
	out := make([]RelationshipType, numRelationshipTypes)
	for i := range out {
		out[i] = RelationshipType(i)
	}
	return out
}

// TypesForPlanning lists the relationship types the journey search expands.
// Route topology edges are excluded: they carry no timetable and would let a
// traversal skip along a route without boarding anything.
func TypesForPlanning() []RelationshipType {
	out := make([]RelationshipType, 0, numRelationshipTypes-1)
	for _, t := range AllRelationshipTypes() {
		if t == OnRoute {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsBoarding reports whether traversing this edge puts the traveller on a
// vehicle.
func (t RelationshipType) IsBoarding() bool {
	return t == Board || t == InterchangeBoard
}

// IsDeparting reports whether traversing this edge takes the traveller off a
// vehicle.
func (t RelationshipType) IsDeparting() bool {
	return t == Depart || t == InterchangeDepart || t == DiversionDepart
}

// IsWalk reports whether this edge is an on-foot connection.
func (t RelationshipType) IsWalk() bool {
	return t == WalksToStation || t == WalksFromStation
}

// Direction selects which adjacency set of a node to read.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	}
	return "invalid"
}
