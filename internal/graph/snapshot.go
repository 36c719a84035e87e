package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/api/schemas"
)

const snapshotVersion = 1

type snapshotEnvelope struct {
	Version       int                          `json:"version"`
	NextNodeID    int64                        `json:"next_node_id"`
	NextRelID     int64                        `json:"next_relationship_id"`
	Nodes         []schemas.NodeExport         `json:"nodes"`
	Relationships []schemas.RelationshipExport `json:"relationships"`
}

// WriteSnapshot serialises the full store, including the id high-water
// marks, so a reloaded store keeps allocating non-colliding ids.
func WriteSnapshot(w io.Writer, s *Store) error {
	env := snapshotEnvelope{Version: snapshotVersion}

	nodeMark, relMark := s.IDs().HighWaterMarks()
	env.NextNodeID = int64(nodeMark)
	env.NextRelID = int64(relMark)

	for _, node := range s.allNodes() {
		env.Nodes = append(env.Nodes, schemas.NodeExport{
			ID:         int64(node.id),
			Labels:     labelNamesOf(node.labels),
			Properties: rawProps(node.bag),
		})
	}
	for _, rel := range s.allRelationships() {
		env.Relationships = append(env.Relationships, schemas.RelationshipExport{
			ID:         int64(rel.id),
			Type:       rel.relType.String(),
			Start:      int64(rel.start),
			End:        int64(rel.end),
			Properties: rawProps(rel.bag),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ReadSnapshot rebuilds a store from a serialised snapshot. Property values
// are re-normalised from JSON's widened types back to the storage types the
// typed accessors expect.
func ReadSnapshot(r io.Reader, logger *zap.Logger) (*Store, error) {
	var env snapshotEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", env.Version)
	}

	ids := NewIDAllocator()
	store := NewStore(ids, logger)

	for _, sn := range env.Nodes {
		labels := make([]Label, 0, len(sn.Labels))
		for _, name := range sn.Labels {
			l, ok := ParseLabel(name)
			if !ok {
				return nil, fmt.Errorf("snapshot node %d: unknown label %q", sn.ID, name)
			}
			labels = append(labels, l)
		}
		node := newNode(NodeID(sn.ID), NewLabelSet(labels...))
		if err := restoreProps(node.bag, sn.Properties); err != nil {
			return nil, fmt.Errorf("snapshot node %d: %w", sn.ID, err)
		}
		store.adopt(node)
	}

	for _, sr := range env.Relationships {
		relType, ok := ParseRelationshipType(sr.Type)
		if !ok {
			return nil, fmt.Errorf("snapshot relationship %d: unknown type %q", sr.ID, sr.Type)
		}
		if !store.HasNode(NodeID(sr.Start)) || !store.HasNode(NodeID(sr.End)) {
			return nil, fmt.Errorf("snapshot relationship %d: dangling endpoint", sr.ID)
		}
		rel := newRelationship(RelationshipID(sr.ID), relType, NodeID(sr.Start), NodeID(sr.End))
		if err := restoreProps(rel.bag, sr.Properties); err != nil {
			return nil, fmt.Errorf("snapshot relationship %d: %w", sr.ID, err)
		}
		if err := store.adoptRelationship(rel); err != nil {
			return nil, fmt.Errorf("snapshot relationship %d: %w", sr.ID, err)
		}
	}

	ids.Resume(NodeID(env.NextNodeID), RelationshipID(env.NextRelID))
	return store, nil
}

func (s *Store) allNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node)
	}
	sortNodesByID(out)
	return out
}

func (s *Store) allRelationships() []*Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Relationship, 0, len(s.relationships))
	for _, rel := range s.relationships {
		out = append(out, rel)
	}
	sortRelationshipsByID(out)
	return out
}

func labelNamesOf(set LabelSet) []string {
	labels := set.Labels()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}

func rawProps(bag *PropertyBag) map[string]any {
	all := bag.All()
	if len(all) == 0 {
		return nil
	}
	out := make(map[string]any, len(all))
	for k, v := range all {
		out[string(k)] = v
	}
	return out
}

// restoreProps writes decoded JSON values back into a bag, narrowing
// float64s and []any to the concrete types the accessors store.
func restoreProps(bag *PropertyBag, raw map[string]any) error {
	for name, value := range raw {
		key := PropertyKey(name)
		narrowed, err := narrowValue(key, value)
		if err != nil {
			return err
		}
		bag.Set(key, narrowed)
	}
	return nil
}

func narrowValue(key PropertyKey, value any) (any, error) {
	switch key {
	case KeyTime, KeyHour, KeyCost, KeyStopSeqNum, KeyStartTime, KeyEndTime:
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("property %s: expected number, got %T", key, value)
		}
		return int(f), nil
	case KeyMinEasting, KeyMinNorthing, KeyMaxEasting, KeyMaxNorthing:
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("property %s: expected number, got %T", key, value)
		}
		return int64(f), nil
	case KeyTransportMode:
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("property %s: expected number, got %T", key, value)
		}
		return uint8(f), nil
	case KeyTransportModes:
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("property %s: expected number, got %T", key, value)
		}
		return uint16(f), nil
	case KeyTripIDList:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("property %s: expected list, got %T", key, value)
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("property %s: expected string item, got %T", key, item)
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return value, nil
	}
}
