// Package aggregate derives chart-ready views from raw finding and job
// collections. Every function here is pure: the same input collection and
// config always produce the same output, nothing is cached, and inputs are
// never mutated. Consumers recompute on every tick.
package aggregate

import (
	"math"
	"sort"
	"strings"

	"github.com/reveris/aetherwatch/pkg/domain"
)

// Config carries the fixed tables the derivations depend on. Passing them
// explicitly keeps the functions testable with alternate weightings.
type Config struct {
	// SeverityWeights maps each severity to its threat-vector weight.
	SeverityWeights map[domain.Severity]float64

	// ThreatCategories is the fixed category list scored by
	// ThreatVectorScores. Categories not listed here are ignored by the
	// scorer even when findings carry them.
	ThreatCategories []string
}

// DefaultConfig returns the weight table and category list the dashboard
// ships with.
func DefaultConfig() Config {
	return Config{
		SeverityWeights: map[domain.Severity]float64{
			domain.SeverityCritical: 100,
			domain.SeverityHigh:     75,
			domain.SeverityMedium:   50,
			domain.SeverityLow:      25,
			domain.SeverityInfo:     10,
		},
		ThreatCategories: []string{
			"anti_debug",
			"anti_vm",
			"anti_frida",
			"packing",
			"timing_check",
			"obfuscation",
		},
	}
}

// SeverityHistogram maps each canonical severity to its occurrence count.
// It always contains exactly the five canonical severities.
type SeverityHistogram map[domain.Severity]int

// SeverityDistribution counts findings per severity. The result is
// zero-filled for severities with no findings. Non-canonical severity
// values are folded into info so the five-key shape holds even on
// malformed input.
func SeverityDistribution(findings []domain.Finding) SeverityHistogram {
	hist := make(SeverityHistogram, len(domain.Severities))
	for _, s := range domain.Severities {
		hist[s] = 0
	}
	for _, f := range findings {
		s := f.Severity
		if !s.Valid() {
			s = domain.SeverityInfo
		}
		hist[s]++
	}
	return hist
}

// Total returns the sum of all severity counts.
func (h SeverityHistogram) Total() int {
	total := 0
	for _, s := range domain.Severities {
		total += h[s]
	}
	return total
}

// CategoryCount is one row of a category breakdown. Key is the raw
// category string as received (callers filter on it); Label is the
// presentation form with underscores replaced by spaces.
type CategoryCount struct {
	Key   string
	Label string
	Count int
}

// CategoryBreakdown counts findings per category actually present,
// ordered by count descending with category key as the tiebreak so the
// output is deterministic.
func CategoryBreakdown(findings []domain.Finding) []CategoryCount {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[f.Category]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, CategoryCount{
			Key:   key,
			Label: strings.ReplaceAll(key, "_", " "),
			Count: n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ConfidenceBucket is one of the five fixed confidence buckets. The range
// is half-open [Low, High) except the last bucket, which is closed at 1.0.
type ConfidenceBucket struct {
	Low   float64
	High  float64
	Label string
	Count int
}

var confidenceBounds = [5]struct {
	low, high float64
	label     string
}{
	{0.0, 0.2, "0.0-0.2"},
	{0.2, 0.4, "0.2-0.4"},
	{0.4, 0.6, "0.4-0.6"},
	{0.6, 0.8, "0.6-0.8"},
	{0.8, 1.0, "0.8-1.0"},
}

// ConfidenceDistribution buckets finding confidences into five fixed
// ranges. A confidence lands in exactly one bucket; values outside [0,1]
// are excluded entirely rather than forced into an edge bucket.
func ConfidenceDistribution(findings []domain.Finding) []ConfidenceBucket {
	buckets := make([]ConfidenceBucket, len(confidenceBounds))
	for i, b := range confidenceBounds {
		buckets[i] = ConfidenceBucket{Low: b.low, High: b.high, Label: b.label}
	}

	last := len(buckets) - 1
	for _, f := range findings {
		c := f.Confidence
		if c < 0 || c > 1 {
			continue
		}
		for i := range buckets {
			if c >= buckets[i].Low && (c < buckets[i].High || i == last) {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// ThreatVectorScores computes a confidence-weighted severity score per
// category in cfg.ThreatCategories. Each finding contributes
// weight(severity) * confidence with the confidence clamped into [0,1];
// the category total is clamped into [0,100]. Categories with no findings
// score 0, never a missing key.
func ThreatVectorScores(findings []domain.Finding, cfg Config) map[string]float64 {
	scores := make(map[string]float64, len(cfg.ThreatCategories))
	tracked := make(map[string]bool, len(cfg.ThreatCategories))
	for _, cat := range cfg.ThreatCategories {
		scores[cat] = 0
		tracked[cat] = true
	}

	for _, f := range findings {
		if !tracked[f.Category] {
			continue
		}
		conf := clamp(f.Confidence, 0, 1)
		scores[f.Category] += cfg.SeverityWeights[f.Severity] * conf
	}

	for cat, s := range scores {
		scores[cat] = clamp(s, 0, 100)
	}
	return scores
}

// TimelinePoint is one calendar day of job activity.
type TimelinePoint struct {
	// Date is the local calendar day in YYYY-MM-DD form.
	Date     string
	Total    int
	ByStatus map[domain.JobStatus]int
}

// JobTimeline groups jobs by the local calendar day of their creation and
// counts totals plus per-status occurrences, ascending by date. Upstream
// response order is irrelevant here: the series is sorted on the declared
// created_at key, not on arrival order.
func JobTimeline(jobs []domain.Job) []TimelinePoint {
	byDate := make(map[string]*TimelinePoint)
	for _, j := range jobs {
		date := j.CreatedAt.Local().Format("2006-01-02")
		point, ok := byDate[date]
		if !ok {
			point = &TimelinePoint{
				Date:     date,
				ByStatus: make(map[domain.JobStatus]int),
			}
			byDate[date] = point
		}
		point.Total++
		point.ByStatus[j.Status]++
	}

	out := make([]TimelinePoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// RiskPoint is one (job, risk percent) sample of the risk trend.
type RiskPoint struct {
	JobID       int64
	RiskPercent int
}

// RiskTrend maps jobs carrying a risk score to (id, round(score*100)),
// preserving the order the jobs were supplied in. Jobs without a score
// are excluded, not zeroed. Chronological ordering is the caller's
// responsibility; sort the input on created_at before calling when the
// upstream response order is not authoritative.
func RiskTrend(jobs []domain.Job) []RiskPoint {
	out := make([]RiskPoint, 0)
	for i := range jobs {
		score, ok := jobs[i].RiskScore()
		if !ok {
			continue
		}
		out = append(out, RiskPoint{
			JobID:       jobs[i].ID,
			RiskPercent: int(math.Round(score * 100)),
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
