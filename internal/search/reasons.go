package search

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
)

// Action tells the path driver what to do with the candidate path.
type Action uint8

const (
	// ActionContinue extends the path further.
	ActionContinue Action = iota
	// ActionIncludeAndPrune accepts the path as a result and stops
	// extending it.
	ActionIncludeAndPrune
	// ActionExcludeAndPrune abandons the path entirely.
	ActionExcludeAndPrune
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionIncludeAndPrune:
		return "include_and_prune"
	case ActionExcludeAndPrune:
		return "exclude_and_prune"
	}
	return "invalid"
}

// ReasonCode is the closed set of admissibility outcomes. Rejections are
// never errors; they prune the path and feed the diagnostics trail.
type ReasonCode uint8

const (
	// accepting codes
	ReasonContinue ReasonCode = iota
	ReasonArrived
	ReasonNumChangesOK
	ReasonTimeOK
	ReasonHourOK
	ReasonServiceDateOK
	ReasonStationOpen
	ReasonTransportModeOK
	ReasonReachable
	ReasonReachableSameRoute
	ReasonDurationOK
	ReasonWalkingConnectionsOK
	ReasonNeighbourConnectionsOK
	ReasonCacheMiss

	// rejecting codes
	ReasonSearchStopped
	ReasonCachedResult
	ReasonHigherCost
	ReasonAlreadyBoarded
	ReasonPathTooLong
	ReasonTooManyChanges
	ReasonTooManyWalkingConnections
	ReasonTooManyNeighbourConnections
	ReasonTookTooLong
	ReasonReturnedToStart
	ReasonAlreadySeenTime
	ReasonSameTrip
	ReasonAlreadyDeparted
	ReasonDoesNotOperateOnTime
	ReasonDestinationUnavailable
	ReasonNotAtHour
	ReasonNotOnQueryDate
	ReasonServiceNotRunningAtTime
	ReasonStationClosed
	ReasonTransportModeWrong
	ReasonNotReachable
	ReasonTooManyInterchanges
	ReasonAlreadySeenRouteStation
	ReasonArrivedLater
	ReasonArrivedMoreChanges

	numReasonCodes
)

var reasonCodeNames = [numReasonCodes]string{
	"Continue", "Arrived", "NumChangesOK", "TimeOK", "HourOK",
	"ServiceDateOK", "StationOpen", "TransportModeOK", "Reachable",
	"ReachableSameRoute", "DurationOK", "WalkingConnectionsOK",
	"NeighbourConnectionsOK", "CacheMiss",
	"SearchStopped", "CachedResult", "HigherCost", "AlreadyBoarded",
	"PathTooLong", "TooManyChanges", "TooManyWalkingConnections",
	"TooManyNeighbourConnections", "TookTooLong", "ReturnedToStart",
	"AlreadySeenTime", "SameTrip", "AlreadyDeparted",
	"DoesNotOperateOnTime", "DestinationUnavailable", "NotAtHour",
	"NotOnQueryDate", "ServiceNotRunningAtTime", "StationClosed",
	"TransportModeWrong", "NotReachable", "TooManyInterchanges",
	"AlreadySeenRouteStation", "ArrivedLater", "ArrivedMoreChanges",
}

// AllReasonCodes lists every defined code, for stats export.
func AllReasonCodes() []ReasonCode {
	out := make([]ReasonCode, numReasonCodes)
	for i := range out {
		out[i] = ReasonCode(i)
	}
	return out
}

func (c ReasonCode) String() string {
	if int(c) < len(reasonCodeNames) {
		return reasonCodeNames[c]
	}
	return "Invalid"
}

// IsValid reports whether the code lets the path continue or be accepted.
func (c ReasonCode) IsValid() bool {
	return c <= ReasonCacheMiss
}

// Action maps a reason code to the driver instruction it implies.
func (c ReasonCode) Action() Action {
	switch {
	case c == ReasonArrived:
		return ActionIncludeAndPrune
	case c.IsValid():
		return ActionContinue
	default:
		return ActionExcludeAndPrune
	}
}

// HowIGotHere pins a heuristic outcome to the path position that produced
// it, for the diagnostics trail.
type HowIGotHere struct {
	EndNode      graph.NodeID
	PreviousNode graph.NodeID
	Changes      int
	PathLength   int
}

// Reason is a single tagged admissibility outcome.
type Reason struct {
	Code ReasonCode
	At   HowIGotHere
	Text string
}

func newReason(code ReasonCode, at HowIGotHere) Reason {
	return Reason{Code: code, At: at}
}

func newReasonf(code ReasonCode, at HowIGotHere, format string, args ...any) Reason {
	return Reason{Code: code, At: at, Text: fmt.Sprintf(format, args...)}
}

func (r Reason) IsValid() bool { return r.Code.IsValid() }

func (r Reason) Action() Action { return r.Code.Action() }

func (r Reason) String() string {
	if r.Text == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s (%s)", r.Code, r.Text)
}

// Recorder accumulates the reason trail for one query. It is per-query state
// and must not be shared between searches.
type Recorder struct {
	mu sync.Mutex

	log         *zap.Logger
	diagnostics bool

	totalChecked int
	visits       int
	countByCode  [numReasonCodes]int
	trail        []Reason
}

// NewRecorder creates a recorder; with diagnostics enabled the full reason
// trail is retained, otherwise only the per-code counters.
func NewRecorder(diagnostics bool, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		log:         logger.Named("search_reasons"),
		diagnostics: diagnostics,
	}
}

func (r *Recorder) DiagnosticsEnabled() bool { return r.diagnostics }

func (r *Recorder) RecordVisit(at HowIGotHere) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits++
}

// Record notes an outcome and hands the reason back so callers can return
// it in one expression.
func (r *Recorder) Record(reason Reason) Reason {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.countByCode[reason.Code]++
	if r.diagnostics {
		r.trail = append(r.trail, reason)
	}
	return reason
}

func (r *Recorder) IncrementChecked() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalChecked++
}

func (r *Recorder) TotalChecked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalChecked
}

func (r *Recorder) Visits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visits
}

func (r *Recorder) CountFor(code ReasonCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countByCode[code]
}

// Trail returns the retained reasons; empty unless diagnostics were on.
func (r *Recorder) Trail() []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reason, len(r.trail))
	copy(out, r.trail)
	return out
}

// ReportStats logs a summary of the query's reason counts.
func (r *Recorder) ReportStats() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := []zap.Field{
		zap.Int("visits", r.visits),
		zap.Int("total_checked", r.totalChecked),
	}
	for code := ReasonCode(0); code < numReasonCodes; code++ {
		if r.countByCode[code] > 0 {
			fields = append(fields, zap.Int(code.String(), r.countByCode[code]))
		}
	}
	r.log.Info("search reason summary", fields...)
}
