package transit

import "strings"

// Mode is a single transport mode. Stored in the graph as a compact number so
// property bags stay small and mode sets can be held as a bitmask.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeTram
	ModeBus
	ModeTrain
	ModeFerry
	ModeSubway
	ModeWalk
)

var modeNames = map[Mode]string{
	ModeUnknown: "unknown",
	ModeTram:    "tram",
	ModeBus:     "bus",
	ModeTrain:   "train",
	ModeFerry:   "ferry",
	ModeSubway:  "subway",
	ModeWalk:    "walk",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "invalid"
}

// Number returns the compact representation stored in graph properties.
func (m Mode) Number() uint8 { return uint8(m) }

// ModeFromNumber is the inverse of Mode.Number.
func ModeFromNumber(n uint8) Mode { return Mode(n) }

// ParseMode maps a config/user string to a Mode. Unrecognised input yields
// ModeUnknown.
func ParseMode(s string) Mode {
	for mode, name := range modeNames {
		if strings.EqualFold(s, name) {
			return mode
		}
	}
	return ModeUnknown
}

// ModeSet is a bitmask of transport modes.
type ModeSet uint16

func NewModeSet(modes ...Mode) ModeSet {
	var s ModeSet
	for _, m := range modes {
		s = s.Add(m)
	}
	return s
}

func (s ModeSet) Add(m Mode) ModeSet      { return s | (1 << m) }
func (s ModeSet) Union(o ModeSet) ModeSet { return s | o }
func (s ModeSet) Contains(m Mode) bool    { return s&(1<<m) != 0 }
func (s ModeSet) Intersects(o ModeSet) bool { return s&o != 0 }
func (s ModeSet) IsEmpty() bool           { return s == 0 }

// Modes expands the bitmask back into the individual modes, in numeric order.
func (s ModeSet) Modes() []Mode {
	var out []Mode
	for m := ModeTram; m <= ModeWalk; m++ {
		if s.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s ModeSet) String() string {
	modes := s.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}
