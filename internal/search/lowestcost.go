package search

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// LowestCostSeen tracks the best arrivals for one query. Two keys are kept
// deliberately separate: the strictly lowest total duration, and the fewest
// number of changes. An arrival that improves either key is accepted, so a
// slower journey with fewer changes survives alongside the fastest one.
// Per-query state, never shared across searches.
type LowestCostSeen struct {
	mu sync.Mutex

	arrived        bool
	lowestDuration time.Duration
	lowestChanges  int

	log *zap.Logger
}

func NewLowestCostSeen(logger *zap.Logger) *LowestCostSeen {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LowestCostSeen{log: logger.Named("lowest_cost")}
}

// EverArrived reports whether any arrival has been recorded yet.
func (l *LowestCostSeen) EverArrived() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.arrived
}

func (l *LowestCostSeen) LowestDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lowestDuration
}

func (l *LowestCostSeen) LowestNumChanges() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lowestChanges
}

// IsLower reports whether the state beats the stored best duration
// outright. The fewest-changes key is compared separately by the arrival
// processing.
func (l *LowestCostSeen) IsLower(state ReadState) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.arrived {
		return true
	}
	return state.TotalDuration() < l.lowestDuration
}

// SetLowestCost records a new best arrival. Each key improves
// independently.
func (l *LowestCostSeen) SetLowestCost(state ReadState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	duration := state.TotalDuration()
	changes := state.NumberChanges()
	if !l.arrived {
		l.arrived = true
		l.lowestDuration = duration
		l.lowestChanges = changes
	} else {
		if duration < l.lowestDuration {
			l.lowestDuration = duration
		}
		if changes < l.lowestChanges {
			l.lowestChanges = changes
		}
	}
	l.log.Debug("new best arrival",
		zap.Duration("duration", duration),
		zap.Int("changes", changes))
}
