// File: cmd/factory.go

package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/internal/config"
	"github.com/xkilldash9x/routegraph/internal/graph"
	"github.com/xkilldash9x/routegraph/internal/metrics"
	"github.com/xkilldash9x/routegraph/internal/netbuild"
	"github.com/xkilldash9x/routegraph/internal/observability"
	"github.com/xkilldash9x/routegraph/internal/search"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

// Components holds the initialized services required to answer journey
// queries. This struct centralizes the lifecycle of the graph store and the
// calculators built on top of it.
type Components struct {
	Store   *graph.Store
	Manager *graph.Manager
	Network *netbuild.Network

	logger *zap.Logger
}

// NewComponents builds the graph for the given network and wires the
// transaction manager and metrics.
func NewComponents(cfg *config.Config, network *netbuild.Network) (*Components, error) {
	logger := observability.GetLogger()

	store := graph.NewStore(graph.NewIDAllocator(), logger)
	manager := graph.NewManager(store, cfg.Graph.TxnTimeout, logger)
	manager.Register(metrics.TxnObserver{})

	builder := netbuild.NewBuilder(manager, logger)
	if err := builder.Build(network); err != nil {
		return nil, fmt.Errorf("building network graph: %w", err)
	}

	if cfg.Graph.SnapshotPath != "" {
		if err := writeSnapshot(cfg.Graph.SnapshotPath, store); err != nil {
			return nil, err
		}
		logger.Info("graph snapshot written", zap.String("path", cfg.Graph.SnapshotPath))
	}

	return &Components{
		Store:   store,
		Manager: manager,
		Network: network,
		logger:  logger,
	}, nil
}

// Calculator builds a route calculator bound to one destination; the
// reachability matrix depends on where the journey ends.
func (c *Components) Calculator(destination transit.StationID) *search.RouteCalculator {
	cfg := config.Get()
	return search.NewRouteCalculator(
		c.Manager,
		c.Store,
		netbuild.NewCalendar(c.Network),
		netbuild.NewClosures(c.Network),
		netbuild.NewReachability(c.Network, destination),
		search.CalculatorConfig{
			MaxWait:                 cfg.Search.MaxWait,
			MaxInitialWait:          cfg.Search.MaxInitialWait,
			MaxJourneyDuration:      cfg.Search.MaxJourneyDuration,
			MaxWalkingConnections:   cfg.Search.MaxWalkingConnections,
			MaxNeighbourConnections: cfg.Search.MaxNeighbourConnections,
			DepthFirst:              cfg.Search.DepthFirst,
			Diagnostics:             cfg.Graph.Diagnostics,
			CacheDisabled:           cfg.Search.CacheDisabled,
		},
		c.logger,
	)
}

// Shutdown reports transactions still outstanding; a non-zero count points
// at a leak.
func (c *Components) Shutdown() {
	outstanding := c.Manager.ReportOutstanding()
	metrics.TransactionsLeaked.Set(float64(outstanding))
	if outstanding > 0 {
		c.logger.Warn("transactions still open at shutdown", zap.Int("count", outstanding))
	}
}

func writeSnapshot(path string, store *graph.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()
	if err := graph.WriteSnapshot(f, store); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
