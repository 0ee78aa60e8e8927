package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reveris/aetherwatch/pkg/aggregate"
	"github.com/reveris/aetherwatch/pkg/client"
	"github.com/reveris/aetherwatch/pkg/domain"
	"github.com/reveris/aetherwatch/pkg/poller"
)

var (
	runPipeline string
	runTags     []string
	runNoWait   bool
)

var runCmd = &cobra.Command{
	Use:   "run <target>",
	Short: "Submit an analysis job and follow it to completion",
	Long: `Run submits a target to an analysis pipeline. By default it then
polls the job until it completes or fails and prints the finding
summary and risk score.

Submission failures are surfaced once with the HTTP status; there is no
automatic resubmit.`,
	Example: `  aetherwatch run /samples/suspicious.exe
  aetherwatch run /samples/malware.bin --pipeline deep-static --tags malware,packed
  aetherwatch run /samples/app.apk --pipeline dynamic-first --no-wait`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range domain.KnownPipelines {
			if p == runPipeline {
				return nil
			}
		}
		return fmt.Errorf("unknown pipeline %q (known: %s)",
			runPipeline, strings.Join(domain.KnownPipelines, ", "))
	},
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPipeline, "pipeline", "p", domain.PipelineQuicklook, "analysis pipeline")
	runCmd.Flags().StringSliceVarP(&runTags, "tags", "t", nil, "tags to attach to the job")
	runCmd.Flags().BoolVar(&runNoWait, "no-wait", false, "submit and exit without following")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	target := args[0]
	fmt.Printf("Submitting %s to pipeline %s\n", target, runPipeline)

	job, err := c.CreateJob(cmd.Context(), client.JobRequest{
		Target:     target,
		PipelineID: runPipeline,
		Tags:       runTags,
	})
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	color.Green("✓ Job submitted: %d", job.ID)

	if runNoWait {
		fmt.Printf("Check progress with: aetherwatch jobs show %d\n", job.ID)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	defer logger.Sync()

	final, err := followJob(ctx, c, job.ID, cfg.PollInterval, logger)
	if err != nil {
		return err
	}

	if final.Status == domain.JobFailed {
		color.Red("✗ Job failed: %s", final.Error)
		return fmt.Errorf("job %d failed", final.ID)
	}

	color.Green("✓ Pipeline completed")
	fmt.Println()

	findings, err := c.JobFindings(ctx, final.ID)
	if err != nil {
		logger.Warn("could not fetch findings after completion", zap.Error(err))
		findings = nil
	}
	artifacts, err := c.JobArtifacts(ctx, final.ID)
	if err != nil {
		logger.Warn("could not fetch artifacts after completion", zap.Error(err))
		artifacts = nil
	}

	printFindingsSummary(findings, aggregate.DefaultConfig())
	fmt.Println()

	if len(artifacts) > 0 {
		color.New(color.Bold).Printf("Artifacts: %d\n", len(artifacts))
		for _, a := range artifacts {
			fmt.Printf("  • %s\n", a.Name)
		}
		fmt.Println()
	}

	if score, ok := final.RiskScore(); ok {
		printRiskScore(score)
	}
	return nil
}

// followJob subscribes to the job resource and blocks until the job
// reaches a terminal state or ctx is cancelled. Transient poll failures
// are absorbed; each tick retries.
func followJob(ctx context.Context, c *client.Client, id int64, interval time.Duration, logger *zap.Logger) (*domain.Job, error) {
	sub := poller.Subscribe(ctx, func(ctx context.Context) (*domain.Job, error) {
		return c.GetJob(ctx, id)
	}, interval, poller.WithName("job"), poller.WithLogger(logger))
	defer sub.Unsubscribe()

	lastStage := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case snap := <-sub.Updates():
			if snap.Err != nil || snap.Value == nil {
				continue
			}
			job := snap.Value
			if job.CurrentStage != "" && job.CurrentStage != lastStage {
				lastStage = job.CurrentStage
				fmt.Printf("  stage: %s (%.0f%%)\n", job.CurrentStage, job.Progress)
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}
	}
}

func printRiskScore(score float64) {
	percent := score * 100
	switch {
	case score >= 0.7:
		color.New(color.FgRed, color.Bold).Printf("Risk Score: %.0f%%\n", percent)
	case score >= 0.4:
		color.New(color.FgYellow, color.Bold).Printf("Risk Score: %.0f%%\n", percent)
	default:
		color.New(color.FgGreen, color.Bold).Printf("Risk Score: %.0f%%\n", percent)
	}
}
