package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reveris/aetherwatch/pkg/aggregate"
	"github.com/reveris/aetherwatch/pkg/domain"
	"github.com/reveris/aetherwatch/pkg/poller"
)

var findingsJobID int64

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Finding analytics",
}

var findingsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Severity, category, threat-vector, and confidence breakdowns",
	Long: `Summary renders the dashboard's chart data in the terminal: the
severity histogram, category breakdown, threat-vector scores, and
confidence distribution, all recomputed from the raw finding collection
on every invocation.`,
	Example: `  # Across all jobs
  aetherwatch findings summary

  # Scoped to one job
  aetherwatch findings summary --job 42`,
	RunE: runFindingsSummary,
}

func init() {
	findingsSummaryCmd.Flags().Int64Var(&findingsJobID, "job", 0, "restrict to one job id")
	findingsCmd.AddCommand(findingsSummaryCmd)
}

func runFindingsSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	fetch := c.ListFindings
	if findingsJobID != 0 {
		fetch = func(ctx context.Context) ([]domain.Finding, error) {
			return c.JobFindings(ctx, findingsJobID)
		}
	}

	findings, err := poller.FetchOnce(cmd.Context(), fetch)
	if err != nil {
		return fmt.Errorf("failed to get findings: %w", err)
	}

	printFindingsSummary(findings, aggregate.DefaultConfig())
	return nil
}

func printFindingsSummary(findings []domain.Finding, cfg aggregate.Config) {
	bold := color.New(color.Bold)

	bold.Println("═══ Findings Summary ═══")
	fmt.Printf("Total: %d\n\n", len(findings))

	bold.Println("By severity")
	hist := aggregate.SeverityDistribution(findings)
	for _, sev := range domain.Severities {
		severityColor(sev).Printf("  %-8s %d\n", strings.ToUpper(string(sev)), hist[sev])
	}
	fmt.Println()

	breakdown := aggregate.CategoryBreakdown(findings)
	if len(breakdown) > 0 {
		bold.Println("By category")
		for _, cat := range breakdown {
			fmt.Printf("  %-20s %d\n", cat.Label, cat.Count)
		}
		fmt.Println()
	}

	bold.Println("Threat vectors")
	scores := aggregate.ThreatVectorScores(findings, cfg)
	for _, cat := range cfg.ThreatCategories {
		label := strings.ReplaceAll(cat, "_", " ")
		fmt.Printf("  %-14s %s %.0f\n", label, riskBar(int(scores[cat])), scores[cat])
	}
	fmt.Println()

	bold.Println("Confidence")
	for _, bucket := range aggregate.ConfidenceDistribution(findings) {
		fmt.Printf("  %s  %d\n", bucket.Label, bucket.Count)
	}
}

func severityColor(s domain.Severity) *color.Color {
	switch s {
	case domain.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case domain.SeverityHigh:
		return color.New(color.FgRed)
	case domain.SeverityMedium:
		return color.New(color.FgYellow)
	case domain.SeverityLow:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}
