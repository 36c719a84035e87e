// cmd/query.go
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/routegraph/api/schemas"
	"github.com/xkilldash9x/routegraph/internal/config"
	"github.com/xkilldash9x/routegraph/internal/netbuild"
	"github.com/xkilldash9x/routegraph/internal/observability"
	"github.com/xkilldash9x/routegraph/internal/transit"
)

func newQueryCmd() *cobra.Command {
	var (
		from       string
		to         string
		departAt   string
		maxChanges int
		modeNames  []string
	)

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Plan a journey on the built-in demo network",
		Long:  `Builds the demo tram network in memory, runs one journey query against it, and prints the resulting journeys as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := config.Get()

			departAfter, err := transit.ParseClockTime(departAt)
			if err != nil {
				return fmt.Errorf("invalid departure time: %w", err)
			}

			modes := transit.NewModeSet()
			for _, name := range modeNames {
				mode := transit.ParseMode(strings.TrimSpace(name))
				if mode == transit.ModeUnknown {
					return fmt.Errorf("unknown transport mode %q", name)
				}
				modes = modes.Add(mode)
			}

			components, err := NewComponents(cfg, demoNetwork())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			destination := transit.StationID(to)
			calculator := components.Calculator(destination)

			request := schemas.JourneyRequest{
				Origin:      transit.StationID(from),
				Destination: destination,
				DepartAfter: departAfter,
				MaxChanges:  maxChanges,
				Modes:       modes,
				MaxResults:  cfg.Search.MaxResults,
			}

			results, err := calculator.Calculate(ctx, request)
			if err != nil {
				logger.Error("Journey query failed", zap.Error(err))
				return err
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("serializing results: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	queryCmd.Flags().StringVar(&from, "from", "altrincham", "Origin station id")
	queryCmd.Flags().StringVar(&to, "to", "bury", "Destination station id")
	queryCmd.Flags().StringVar(&departAt, "at", "08:00", "Earliest departure time (HH:MM)")
	queryCmd.Flags().IntVar(&maxChanges, "max-changes", 2, "Change budget")
	queryCmd.Flags().StringSliceVar(&modeNames, "modes", []string{"tram"}, "Transport modes to consider")

	return queryCmd
}

// demoNetwork is a small two-route tram system joined at an interchange,
// with a neighbouring pair of stations connected on foot.
func demoNetwork() *netbuild.Network {
	green := func(tripID string, start transit.ClockTime) netbuild.Trip {
		return netbuild.Trip{
			ID:      transit.TripID(tripID),
			Service: "svc-green-weekday",
			Route:   "green-line",
			Mode:    transit.ModeTram,
			Stops: []netbuild.Stop{
				{Station: "altrincham", Arrive: start, Depart: start},
				{Station: "timperley", Arrive: start.Plus(6 * time.Minute), Depart: start.Plus(7 * time.Minute)},
				{Station: "cornbrook", Arrive: start.Plus(15 * time.Minute), Depart: start.Plus(16 * time.Minute)},
				{Station: "victoria", Arrive: start.Plus(24 * time.Minute), Depart: start.Plus(24 * time.Minute)},
			},
		}
	}
	yellow := func(tripID string, start transit.ClockTime) netbuild.Trip {
		return netbuild.Trip{
			ID:      transit.TripID(tripID),
			Service: "svc-yellow-weekday",
			Route:   "yellow-line",
			Mode:    transit.ModeTram,
			Stops: []netbuild.Stop{
				{Station: "cornbrook", Arrive: start, Depart: start},
				{Station: "shudehill", Arrive: start.Plus(8 * time.Minute), Depart: start.Plus(9 * time.Minute)},
				{Station: "bury", Arrive: start.Plus(20 * time.Minute), Depart: start.Plus(20 * time.Minute)},
			},
		}
	}

	network := &netbuild.Network{
		Interchanges: []transit.StationID{"cornbrook"},
		Walks: []netbuild.Walk{
			{From: "shudehill", To: "victoria", Cost: 5 * time.Minute, Neighbour: true},
		},
	}
	for hour := 6; hour < 23; hour++ {
		for _, minute := range []int{0, 12, 24, 36, 48} {
			start := transit.NewClockTime(hour, minute)
			network.Trips = append(network.Trips,
				green(fmt.Sprintf("green-%02d%02d", hour, minute), start),
				yellow(fmt.Sprintf("yellow-%02d%02d", hour, minute), start),
			)
		}
	}
	return network
}
