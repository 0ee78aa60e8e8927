package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reveris/aetherwatch/pkg/livemon"
	"github.com/reveris/aetherwatch/pkg/poller"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show analysis service health and entity counts",
	Long: `Status reports whether the API and its worker backend are reachable,
plus the stored job/finding/artifact/event totals.

With --watch the view stays live: the status endpoint is polled on the
configured interval and the display updates as responses land. A failed
cycle keeps the last known state and retries on the next tick.`,
	Example: `  # One-shot status
  aetherwatch status

  # Live view, Ctrl+C to stop
  aetherwatch status --watch`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "keep polling and refresh the view")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	if !statusWatch {
		snap, err := poller.FetchOnce(cmd.Context(), c.Status)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		printStatusView(livemon.View{
			Phase:        livemon.PhaseReady,
			APIOnline:    snap.Healthy,
			WorkerOnline: snap.CeleryOK,
			Counts:       snap.DisplayCounts(),
			LastUpdate:   time.Now(),
		})
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	defer logger.Sync()

	sub := poller.Subscribe(ctx, c.Status, cfg.StatusInterval,
		poller.WithName("status"), poller.WithLogger(logger))
	defer sub.Unsubscribe()

	fmt.Println("Watching service status (Ctrl+C to stop)...")
	fmt.Println()

	mon := livemon.NewMonitor()
	mon.Run(ctx.Done(), sub, func(view livemon.View) {
		switch view.Phase {
		case livemon.PhaseFetching:
			// Cycle in progress; redraw when the response lands.
		case livemon.PhaseErrored:
			color.Red("✗ poll failed: %v (retrying on next tick)", view.Err)
		default:
			printStatusView(view)
		}
	})
	return nil
}

func printStatusView(view livemon.View) {
	bold := color.New(color.Bold)
	bold.Println("⚡ AetherFrame Status ⚡")
	fmt.Println()

	fmt.Printf("API:     %s\n", onlineLabel(view.APIOnline))
	fmt.Printf("Worker:  %s\n", onlineLabel(view.WorkerOnline))
	fmt.Println()

	fmt.Printf("Jobs:      %d\n", view.Counts.Jobs)
	fmt.Printf("Findings:  %d\n", view.Counts.Findings)
	fmt.Printf("Artifacts: %d\n", view.Counts.Artifacts)
	fmt.Printf("Events:    %d\n", view.Counts.Events)

	if !view.LastUpdate.IsZero() {
		fmt.Printf("\nLast update: %s\n", view.LastUpdate.Format(time.RFC3339))
	}
	fmt.Println()
}

func onlineLabel(online bool) string {
	if online {
		return color.GreenString("● online")
	}
	return color.RedString("● offline")
}
