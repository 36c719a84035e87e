package search

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/metrics"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

const visitCacheTTL = 5 * time.Minute

// nodeClockKey keys caches where the same node can be reached at different
// journey clock times.
type nodeClockKey struct {
	node  graph.NodeID
	clock transit.ClockTime
}

// NodeCounts sizes the per-category caches from the graph's label index.
type NodeCounts interface {
	CountNodesWith(l graph.Label) int
}

// PreviousVisits memoizes evaluation outcomes per node category. Minute
// nodes carry a unique scheduled time, so the node id alone keys them; hour
// and route-station nodes can be reached at different journey clock values,
// so the clock joins the key. Service rejections are cached only for the
// not-running-on-date case, which cannot change within one query day.
//
// Per-query state: stale entries from another query would corrupt pruning.
type PreviousVisits struct {
	disabled bool

	minute       *expirable.LRU[graph.NodeID, ReasonCode]
	hour         *expirable.LRU[nodeClockKey, ReasonCode]
	routeStation *expirable.LRU[nodeClockKey, ReasonCode]
	service      *expirable.LRU[graph.NodeID, ReasonCode]

	log *zap.Logger
}

// NewPreviousVisits builds the caches sized to the graph's node counts.
func NewPreviousVisits(disabled bool, counts NodeCounts, logger *zap.Logger) *PreviousVisits {
	if logger == nil {
		logger = zap.NewNop()
	}
	pv := &PreviousVisits{
		disabled: disabled,
		log:      logger.Named("previous_visits"),
	}
	if disabled {
		return pv
	}
	pv.minute = expirable.NewLRU[graph.NodeID, ReasonCode](
		cacheSize(counts.CountNodesWith(graph.LabelMinute)), nil, visitCacheTTL)
	pv.hour = expirable.NewLRU[nodeClockKey, ReasonCode](
		cacheSize(counts.CountNodesWith(graph.LabelHour)), nil, visitCacheTTL)
	pv.routeStation = expirable.NewLRU[nodeClockKey, ReasonCode](
		cacheSize(counts.CountNodesWith(graph.LabelRouteStation)), nil, visitCacheTTL)
	pv.service = expirable.NewLRU[graph.NodeID, ReasonCode](
		cacheSize(counts.CountNodesWith(graph.LabelService)), nil, visitCacheTTL)
	return pv
}

func cacheSize(nodeCount int) int {
	if nodeCount < 1 {
		return 1
	}
	return nodeCount
}

// CacheIfUseful stores an outcome when a later revisit is guaranteed to
// reproduce it.
func (pv *PreviousVisits) CacheIfUseful(reason Reason, node graph.NodeID, state ReadState, labels graph.LabelSet) {
	if pv.disabled {
		return
	}

	if labels.Has(graph.LabelMinute) || labels.Has(graph.LabelHour) {
		// time nodes fix the journey clock, so the outcome is stable
		switch reason.Code {
		case ReasonDoesNotOperateOnTime:
			pv.minute.Add(node, reason.Code)
		case ReasonNotAtHour:
			pv.hour.Add(nodeClockKey{node: node, clock: state.JourneyClock()}, reason.Code)
		}
		return
	}

	if labels.Has(graph.LabelRouteStation) {
		pv.routeStation.Add(nodeClockKey{node: node, clock: state.JourneyClock()}, reason.Code)
		return
	}

	if labels.Has(graph.LabelService) {
		if reason.Code == ReasonNotOnQueryDate && !state.JourneyClock().IsNextDay() {
			pv.service.Add(node, reason.Code)
		}
	}
}

// PreviousResult replays a cached outcome when present. A miss is reported
// with ReasonCacheMiss.
func (pv *PreviousVisits) PreviousResult(node graph.NodeID, state ReadState, labels graph.LabelSet, at HowIGotHere) Reason {
	if pv.disabled {
		return newReason(ReasonCacheMiss, at)
	}

	if labels.Has(graph.LabelMinute) {
		if code, ok := pv.minute.Get(node); ok {
			metrics.VisitCacheHits.WithLabelValues("minute").Inc()
			return newReason(code, at)
		}
		metrics.VisitCacheMisses.WithLabelValues("minute").Inc()
	}
	if labels.Has(graph.LabelHour) {
		if code, ok := pv.hour.Get(nodeClockKey{node: node, clock: state.JourneyClock()}); ok {
			metrics.VisitCacheHits.WithLabelValues("hour").Inc()
			return newReason(code, at)
		}
		metrics.VisitCacheMisses.WithLabelValues("hour").Inc()
	}
	if labels.Has(graph.LabelRouteStation) {
		if _, ok := pv.routeStation.Get(nodeClockKey{node: node, clock: state.JourneyClock()}); ok {
			metrics.VisitCacheHits.WithLabelValues("route_station").Inc()
			return newReason(ReasonAlreadySeenRouteStation, at)
		}
		metrics.VisitCacheMisses.WithLabelValues("route_station").Inc()
	}
	if labels.Has(graph.LabelService) {
		if code, ok := pv.service.Get(node); ok {
			metrics.VisitCacheHits.WithLabelValues("service").Inc()
			return newReason(code, at)
		}
		metrics.VisitCacheMisses.WithLabelValues("service").Inc()
	}
	return newReason(ReasonCacheMiss, at)
}

// ReportStats logs cache occupancy at the end of a query.
func (pv *PreviousVisits) ReportStats() {
	if pv.disabled {
		pv.log.Info("visit caching disabled")
		return
	}
	pv.log.Info("visit cache occupancy",
		zap.Int("minute", pv.minute.Len()),
		zap.Int("hour", pv.hour.Len()),
		zap.Int("route_station", pv.routeStation.Len()),
		zap.Int("service", pv.service.Len()))
}
