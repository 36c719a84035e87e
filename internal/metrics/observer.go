package metrics

import "github.com/xkilldash9x/routegraph/internal/graph"

// TxnObserver bridges transaction lifecycle events into the prometheus
// collectors. Register it once on the transaction manager.
type TxnObserver struct{}

var _ graph.Observer = TxnObserver{}

func (TxnObserver) TransactionOpened(id int64, mutable bool) {
	kind := "immutable"
	if mutable {
		kind = "mutable"
	}
	TransactionsOpened.WithLabelValues(kind).Inc()
}

func (TxnObserver) TransactionCommitted(id int64) {
	TransactionsCommitted.Inc()
}

func (TxnObserver) TransactionClosed(id int64) {}
