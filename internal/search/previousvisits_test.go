package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

func newVisits(t *testing.T, disabled bool) *PreviousVisits {
	t.Helper()
	return NewPreviousVisits(disabled, stubCounts{n: 16}, globalFixture.Logger)
}

func TestPreviousVisitsDisabled(t *testing.T) {
	pv := newVisits(t, true)
	node := graph.NodeID(1)
	labels := graph.NewLabelSet(graph.LabelMinute)
	state := stubState{clock: transit.NewClockTime(8, 0)}

	pv.CacheIfUseful(newReason(ReasonDoesNotOperateOnTime, HowIGotHere{}), node, state, labels)

	got := pv.PreviousResult(node, state, labels, HowIGotHere{})
	assert.Equal(t, ReasonCacheMiss, got.Code)
}

func TestPreviousVisitsMinuteRejection(t *testing.T) {
	pv := newVisits(t, false)
	node := graph.NodeID(1)
	labels := graph.NewLabelSet(graph.LabelMinute)
	state := stubState{clock: transit.NewClockTime(8, 0)}

	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(node, state, labels, HowIGotHere{}).Code)

	pv.CacheIfUseful(newReason(ReasonDoesNotOperateOnTime, HowIGotHere{}), node, state, labels)

	// minute nodes fix the clock, so the hit ignores the visiting time
	later := stubState{clock: transit.NewClockTime(9, 30)}
	assert.Equal(t, ReasonDoesNotOperateOnTime, pv.PreviousResult(node, later, labels, HowIGotHere{}).Code)
}

func TestPreviousVisitsMinuteIgnoresOtherRejections(t *testing.T) {
	pv := newVisits(t, false)
	node := graph.NodeID(1)
	labels := graph.NewLabelSet(graph.LabelMinute)
	state := stubState{clock: transit.NewClockTime(8, 0)}

	pv.CacheIfUseful(newReason(ReasonAlreadyDeparted, HowIGotHere{}), node, state, labels)

	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(node, state, labels, HowIGotHere{}).Code)
}

func TestPreviousVisitsHourKeyedByClock(t *testing.T) {
	pv := newVisits(t, false)
	node := graph.NodeID(2)
	labels := graph.NewLabelSet(graph.LabelHour)
	atEight := stubState{clock: transit.NewClockTime(8, 0)}

	pv.CacheIfUseful(newReason(ReasonNotAtHour, HowIGotHere{}), node, atEight, labels)

	assert.Equal(t, ReasonNotAtHour, pv.PreviousResult(node, atEight, labels, HowIGotHere{}).Code)

	// a different visiting time can succeed where the cached one failed
	atNine := stubState{clock: transit.NewClockTime(9, 0)}
	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(node, atNine, labels, HowIGotHere{}).Code)
}

func TestPreviousVisitsRouteStationReplaysAsSeen(t *testing.T) {
	pv := newVisits(t, false)
	node := graph.NodeID(3)
	labels := graph.NewLabelSet(graph.LabelRouteStation, graph.LabelTram)
	state := stubState{clock: transit.NewClockTime(8, 0)}

	// route station outcomes are cached whatever the reason was
	pv.CacheIfUseful(newReason(ReasonContinue, HowIGotHere{}), node, state, labels)

	got := pv.PreviousResult(node, state, labels, HowIGotHere{})
	assert.Equal(t, ReasonAlreadySeenRouteStation, got.Code)

	other := stubState{clock: transit.NewClockTime(8, 1)}
	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(node, other, labels, HowIGotHere{}).Code)
}

func TestPreviousVisitsServiceDateRejectionsOnly(t *testing.T) {
	pv := newVisits(t, false)
	labels := graph.NewLabelSet(graph.LabelService)
	state := stubState{clock: transit.NewClockTime(8, 0)}

	offToday := graph.NodeID(4)
	pv.CacheIfUseful(newReason(ReasonNotOnQueryDate, HowIGotHere{}), offToday, state, labels)
	assert.Equal(t, ReasonNotOnQueryDate, pv.PreviousResult(offToday, state, labels, HowIGotHere{}).Code)

	// a time-of-day rejection can change within the query, never cached
	offNow := graph.NodeID(5)
	pv.CacheIfUseful(newReason(ReasonServiceNotRunningAtTime, HowIGotHere{}), offNow, state, labels)
	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(offNow, state, labels, HowIGotHere{}).Code)

	// next-day visits roll to a different date, also never cached
	nextDay := stubState{clock: transit.NextDayClockTime(0, 10)}
	offTomorrow := graph.NodeID(6)
	pv.CacheIfUseful(newReason(ReasonNotOnQueryDate, HowIGotHere{}), offTomorrow, nextDay, labels)
	assert.Equal(t, ReasonCacheMiss, pv.PreviousResult(offTomorrow, nextDay, labels, HowIGotHere{}).Code)
}
