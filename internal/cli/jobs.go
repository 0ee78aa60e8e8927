package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reveris/aetherwatch/pkg/aggregate"
	"github.com/reveris/aetherwatch/pkg/domain"
	"github.com/reveris/aetherwatch/pkg/poller"
)

var (
	jobsLimit        int
	jobsStatusFilter string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job management commands",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	Example: `  aetherwatch jobs list
  aetherwatch jobs list --limit 20 --status running`,
	RunE: runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Daily job counts by status",
	RunE:  runJobsTimeline,
}

var jobsTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Risk score trend across scored jobs",
	RunE:  runJobsTrend,
}

func init() {
	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 10, "maximum jobs to display")
	jobsListCmd.Flags().StringVarP(&jobsStatusFilter, "status", "s", "", "filter by status (pending, running, completed, failed)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsTimelineCmd)
	jobsCmd.AddCommand(jobsTrendCmd)
}

func fetchJobs(cmd *cobra.Command) ([]domain.Job, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c := newClient(cfg)

	jobs, err := poller.FetchOnce(cmd.Context(), c.ListJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs, err := fetchJobs(cmd)
	if err != nil {
		return err
	}

	if jobsStatusFilter != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.Status) == jobsStatusFilter {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	shown := jobs
	if jobsLimit > 0 && len(shown) > jobsLimit {
		shown = shown[:jobsLimit]
	}

	for _, j := range shown {
		fmt.Printf("%s %4d | %-9s | %-13s | %s\n",
			statusIcon(j.Status), j.ID, j.Status, j.PipelineID, j.Target)
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid job id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	job, err := poller.FetchOnce(cmd.Context(), func(ctx context.Context) (*domain.Job, error) {
		return c.GetJob(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}

func runJobsTimeline(cmd *cobra.Command, args []string) error {
	jobs, err := fetchJobs(cmd)
	if err != nil {
		return err
	}

	timeline := aggregate.JobTimeline(jobs)
	if len(timeline) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	for _, p := range timeline {
		fmt.Printf("%s  total=%d  completed=%d  failed=%d  running=%d  pending=%d\n",
			p.Date, p.Total,
			p.ByStatus[domain.JobCompleted],
			p.ByStatus[domain.JobFailed],
			p.ByStatus[domain.JobRunning],
			p.ByStatus[domain.JobPending])
	}
	return nil
}

func runJobsTrend(cmd *cobra.Command, args []string) error {
	jobs, err := fetchJobs(cmd)
	if err != nil {
		return err
	}

	// The upstream response order is undocumented, so sort on the declared
	// created_at key before deriving the trend.
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	trend := aggregate.RiskTrend(jobs)
	if len(trend) == 0 {
		fmt.Println("No scored jobs yet.")
		return nil
	}

	for _, p := range trend {
		fmt.Printf("job %4d  %s %d%%\n", p.JobID, riskBar(p.RiskPercent), p.RiskPercent)
	}
	return nil
}

func statusIcon(s domain.JobStatus) string {
	switch s {
	case domain.JobCompleted:
		return color.GreenString("✓")
	case domain.JobFailed:
		return color.RedString("✗")
	case domain.JobRunning:
		return color.CyanString("▶")
	default:
		return color.YellowString("…")
	}
}

func riskBar(percent int) string {
	filled := percent / 5
	bar := ""
	for i := 0; i < 20; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	switch {
	case percent >= 70:
		return color.RedString(bar)
	case percent >= 40:
		return color.YellowString(bar)
	default:
		return color.GreenString(bar)
	}
}
