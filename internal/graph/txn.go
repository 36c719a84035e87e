package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Transaction is a read view over the graph. Instances are cheap and must be
// closed; holding one open past the manager's timeout surfaces in the
// outstanding-transaction report.
type Transaction interface {
	// ID is the manager-scoped transaction index, for diagnostics.
	ID() int64

	Node(id NodeID) (*Node, error)
	Relationship(id RelationshipID) (*Relationship, error)
	HasNode(id NodeID) bool
	HasRelationship(id RelationshipID) bool
	FindNodes(l Label) []*Node
	FindNodesWith(l Label, key PropertyKey, value string) []*Node
	RelationshipsFor(id NodeID, dir Direction, types ...RelationshipType) ([]*Relationship, error)
	CountOf(t RelationshipType) (int, error)

	// CreateNode and the other mutators fail with ErrImmutableTransaction
	// unless the transaction was opened with BeginMutable.
	CreateNode(labels ...Label) (*Node, error)
	CreateRelationship(t RelationshipType, start, end NodeID) (*Relationship, error)
	DeleteNode(id NodeID) error
	DeleteRelationship(id RelationshipID) error
	AddLabel(id NodeID, l Label) error
	NodeForUpdate(id NodeID) (*Node, error)
	RelationshipForUpdate(id RelationshipID) (*Relationship, error)

	Close()
}

// MutableTransaction adds commit to the surface; mutators inherited from
// Transaction succeed here.
type MutableTransaction interface {
	Transaction

	// Commit publishes the transaction's delta into the shared store and
	// closes the transaction. Close without Commit discards the delta.
	Commit() error
}

// Observer is notified of transaction lifecycle events, in Begin/Commit/Close
// order. Registered observers must be fast; calls happen inline.
type Observer interface {
	TransactionOpened(id int64, mutable bool)
	TransactionCommitted(id int64)
	TransactionClosed(id int64)
}

type txnRecord struct {
	id      int64
	mutable bool
	opened  time.Time
}

// Manager hands out transactions over a single store and tracks which are
// still open.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	log       *zap.Logger
	timeout   time.Duration
	nextIndex atomic.Int64
	open      map[int64]txnRecord
	observers []Observer
}

// NewManager wraps a store. A zero timeout disables transaction expiry.
func NewManager(store *Store, timeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		log:     logger.Named("txn_manager"),
		timeout: timeout,
		open:    make(map[int64]txnRecord),
	}
}

func (m *Manager) Register(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Begin opens an immutable transaction.
func (m *Manager) Begin() Transaction {
	t := &immutableTxn{}
	m.initCore(&t.txnCore, m.store, false)
	return t
}

// BeginMutable opens a transaction with a private overlay for writes.
func (m *Manager) BeginMutable() MutableTransaction {
	delta := newOverlay(m.store, m.log)
	t := &mutableTxn{delta: delta}
	m.initCore(&t.txnCore, delta, true)
	return t
}

func (m *Manager) initCore(core *txnCore, view Graph, mutable bool) {
	id := m.nextIndex.Add(1)
	m.mu.Lock()
	m.open[id] = txnRecord{id: id, mutable: mutable, opened: time.Now()}
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, obs := range observers {
		obs.TransactionOpened(id, mutable)
	}
	core.id = id
	core.view = view
	core.mgr = m
	core.opened = time.Now()
	core.timeout = m.timeout
}

func (m *Manager) release(id int64, committed bool) {
	m.mu.Lock()
	rec, ok := m.open[id]
	delete(m.open, id)
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()
	if !ok {
		return
	}

	for _, obs := range observers {
		if committed {
			obs.TransactionCommitted(id)
		}
		obs.TransactionClosed(id)
	}
	m.log.Debug("transaction released",
		zap.Int64("txn", id),
		zap.Bool("mutable", rec.mutable),
		zap.Bool("committed", committed),
		zap.Duration("held", time.Since(rec.opened)))
}

// OpenCount reports how many transactions are currently outstanding.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// ReportOutstanding logs every transaction still open, flagging any held
// longer than the timeout. Intended for shutdown paths and periodic health
// sweeps.
func (m *Manager) ReportOutstanding() int {
	m.mu.Lock()
	records := make([]txnRecord, 0, len(m.open))
	for _, rec := range m.open {
		records = append(records, rec)
	}
	m.mu.Unlock()

	for _, rec := range records {
		held := time.Since(rec.opened)
		if m.timeout > 0 && held > m.timeout {
			m.log.Warn("transaction exceeded timeout",
				zap.Int64("txn", rec.id),
				zap.Bool("mutable", rec.mutable),
				zap.Duration("held", held))
			continue
		}
		m.log.Info("transaction still open",
			zap.Int64("txn", rec.id),
			zap.Bool("mutable", rec.mutable),
			zap.Duration("held", held))
	}
	return len(records)
}

// txnCore carries the state shared by both transaction flavours.
type txnCore struct {
	id      int64
	view    Graph
	mgr     *Manager
	opened  time.Time
	timeout time.Duration
	closed  atomic.Bool
}

func (t *txnCore) ID() int64 { return t.id }

func (t *txnCore) usable() error {
	if t.closed.Load() {
		return ErrTransactionClosed
	}
	if t.timeout > 0 && time.Since(t.opened) > t.timeout {
		return ErrTransactionTimeout
	}
	return nil
}

func (t *txnCore) Node(id NodeID) (*Node, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.view.Node(id)
}

func (t *txnCore) Relationship(id RelationshipID) (*Relationship, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.view.Relationship(id)
}

func (t *txnCore) HasNode(id NodeID) bool {
	if t.usable() != nil {
		return false
	}
	return t.view.HasNode(id)
}

func (t *txnCore) HasRelationship(id RelationshipID) bool {
	if t.usable() != nil {
		return false
	}
	return t.view.HasRelationship(id)
}

func (t *txnCore) FindNodes(l Label) []*Node {
	if t.usable() != nil {
		return nil
	}
	return t.view.FindNodes(l)
}

func (t *txnCore) FindNodesWith(l Label, key PropertyKey, value string) []*Node {
	if t.usable() != nil {
		return nil
	}
	return t.view.FindNodesWith(l, key, value)
}

func (t *txnCore) RelationshipsFor(id NodeID, dir Direction, types ...RelationshipType) ([]*Relationship, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.view.RelationshipsFor(id, dir, types...)
}

func (t *txnCore) CountOf(rt RelationshipType) (int, error) {
	if err := t.usable(); err != nil {
		return 0, err
	}
	return t.view.CountOf(rt), nil
}

// immutableTxn rejects every mutator.
type immutableTxn struct {
	txnCore
}

var _ Transaction = (*immutableTxn)(nil)

func (t *immutableTxn) CreateNode(...Label) (*Node, error) {
	return nil, ErrImmutableTransaction
}

func (t *immutableTxn) CreateRelationship(RelationshipType, NodeID, NodeID) (*Relationship, error) {
	return nil, ErrImmutableTransaction
}

func (t *immutableTxn) DeleteNode(NodeID) error { return ErrImmutableTransaction }

func (t *immutableTxn) DeleteRelationship(RelationshipID) error { return ErrImmutableTransaction }

func (t *immutableTxn) AddLabel(NodeID, Label) error { return ErrImmutableTransaction }

func (t *immutableTxn) NodeForUpdate(NodeID) (*Node, error) {
	return nil, ErrImmutableTransaction
}

func (t *immutableTxn) RelationshipForUpdate(RelationshipID) (*Relationship, error) {
	return nil, ErrImmutableTransaction
}

func (t *immutableTxn) Close() {
	if t.closed.Swap(true) {
		return
	}
	t.mgr.release(t.id, false)
}

// mutableTxn writes into its overlay until Commit or Close.
type mutableTxn struct {
	txnCore
	delta     *overlay
	committed bool
}

var _ MutableTransaction = (*mutableTxn)(nil)

func (t *mutableTxn) CreateNode(labels ...Label) (*Node, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.delta.CreateNode(labels...), nil
}

func (t *mutableTxn) CreateRelationship(rt RelationshipType, start, end NodeID) (*Relationship, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.delta.CreateRelationship(rt, start, end)
}

func (t *mutableTxn) DeleteNode(id NodeID) error {
	if err := t.usable(); err != nil {
		return err
	}
	return t.delta.DeleteNode(id)
}

func (t *mutableTxn) DeleteRelationship(id RelationshipID) error {
	if err := t.usable(); err != nil {
		return err
	}
	return t.delta.DeleteRelationship(id)
}

func (t *mutableTxn) AddLabel(id NodeID, l Label) error {
	if err := t.usable(); err != nil {
		return err
	}
	return t.delta.AddLabel(id, l)
}

func (t *mutableTxn) NodeForUpdate(id NodeID) (*Node, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.delta.nodeForUpdate(id)
}

func (t *mutableTxn) RelationshipForUpdate(id RelationshipID) (*Relationship, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.delta.relationshipForUpdate(id)
}

func (t *mutableTxn) Commit() error {
	if err := t.usable(); err != nil {
		return err
	}
	if err := t.delta.commit(); err != nil {
		return err
	}
	t.committed = true
	t.closed.Store(true)
	t.mgr.release(t.id, true)
	return nil
}

func (t *mutableTxn) Close() {
	if t.closed.Swap(true) {
		return
	}
	if !t.committed && t.delta.hasChanges() {
		t.mgr.log.Warn("mutable transaction closed without commit, changes discarded",
			zap.Int64("txn", t.id))
	}
	t.mgr.release(t.id, false)
}
