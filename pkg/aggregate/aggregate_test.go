package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveris/aetherwatch/pkg/domain"
)

func finding(sev domain.Severity, category string, confidence float64) domain.Finding {
	return domain.Finding{Severity: sev, Category: category, Confidence: confidence}
}

func floatPtr(v float64) *float64 { return &v }

func TestSeverityDistribution(t *testing.T) {
	tests := []struct {
		name     string
		findings []domain.Finding
		want     SeverityHistogram
	}{
		{
			name:     "empty input zero-fills all five severities",
			findings: nil,
			want: SeverityHistogram{
				domain.SeverityInfo: 0, domain.SeverityLow: 0, domain.SeverityMedium: 0,
				domain.SeverityHigh: 0, domain.SeverityCritical: 0,
			},
		},
		{
			name: "critical and low",
			findings: []domain.Finding{
				finding(domain.SeverityCritical, "anti_debug", 0.9),
				finding(domain.SeverityLow, "packing", 0.5),
			},
			want: SeverityHistogram{
				domain.SeverityInfo: 0, domain.SeverityLow: 1, domain.SeverityMedium: 0,
				domain.SeverityHigh: 0, domain.SeverityCritical: 1,
			},
		},
		{
			name: "unknown severity folded into info",
			findings: []domain.Finding{
				finding(domain.Severity("bogus"), "static", 0.3),
			},
			want: SeverityHistogram{
				domain.SeverityInfo: 1, domain.SeverityLow: 0, domain.SeverityMedium: 0,
				domain.SeverityHigh: 0, domain.SeverityCritical: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SeverityDistribution(tt.findings)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 5)
			assert.Equal(t, len(tt.findings), got.Total())
		})
	}
}

func TestCategoryBreakdown(t *testing.T) {
	findings := []domain.Finding{
		finding(domain.SeverityHigh, "anti_debug", 0.9),
		finding(domain.SeverityLow, "anti_debug", 0.4),
		finding(domain.SeverityMedium, "timing_check", 0.6),
		finding(domain.SeverityInfo, "binary_diff", 0.2),
	}

	got := CategoryBreakdown(findings)
	require.Len(t, got, 3)

	// Highest count first, then key order for ties.
	assert.Equal(t, CategoryCount{Key: "anti_debug", Label: "anti debug", Count: 2}, got[0])
	assert.Equal(t, CategoryCount{Key: "binary_diff", Label: "binary diff", Count: 1}, got[1])
	assert.Equal(t, CategoryCount{Key: "timing_check", Label: "timing check", Count: 1}, got[2])
}

func TestCategoryBreakdown_LabelDoesNotReplaceKey(t *testing.T) {
	got := CategoryBreakdown([]domain.Finding{finding(domain.SeverityLow, "anti_frida", 0.5)})
	require.Len(t, got, 1)
	assert.Equal(t, "anti_frida", got[0].Key)
	assert.Equal(t, "anti frida", got[0].Label)
}

func TestCategoryBreakdown_Empty(t *testing.T) {
	assert.Empty(t, CategoryBreakdown(nil))
}

func TestConfidenceDistribution(t *testing.T) {
	findings := []domain.Finding{
		finding(domain.SeverityInfo, "static", 0.15),
		finding(domain.SeverityInfo, "static", 0.35),
		finding(domain.SeverityInfo, "static", 0.55),
		finding(domain.SeverityInfo, "static", 0.75),
		finding(domain.SeverityInfo, "static", 0.95),
	}

	got := ConfidenceDistribution(findings)
	require.Len(t, got, 5)
	for i, b := range got {
		assert.Equal(t, 1, b.Count, "bucket %d (%s)", i, b.Label)
	}
}

func TestConfidenceDistribution_Boundaries(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantBucket int
	}{
		{name: "0.0 opens the first bucket", confidence: 0.0, wantBucket: 0},
		{name: "0.2 belongs to the second bucket", confidence: 0.2, wantBucket: 1},
		{name: "0.4 belongs to the third bucket", confidence: 0.4, wantBucket: 2},
		{name: "0.8 belongs to the last bucket", confidence: 0.8, wantBucket: 4},
		{name: "1.0 closes the last bucket", confidence: 1.0, wantBucket: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfidenceDistribution([]domain.Finding{
				finding(domain.SeverityInfo, "static", tt.confidence),
			})
			for i, b := range got {
				want := 0
				if i == tt.wantBucket {
					want = 1
				}
				assert.Equal(t, want, b.Count, "bucket %d (%s)", i, b.Label)
			}
		})
	}
}

func TestConfidenceDistribution_OutOfRangeExcluded(t *testing.T) {
	findings := []domain.Finding{
		finding(domain.SeverityInfo, "static", -0.1),
		finding(domain.SeverityInfo, "static", 1.5),
		finding(domain.SeverityInfo, "static", 0.5),
	}

	got := ConfidenceDistribution(findings)
	total := 0
	for _, b := range got {
		total += b.Count
	}
	assert.Equal(t, 1, total, "only the in-range confidence counts")
	assert.Equal(t, 1, got[2].Count)
}

func TestThreatVectorScores(t *testing.T) {
	cfg := DefaultConfig()

	findings := []domain.Finding{
		finding(domain.SeverityCritical, "anti_debug", 0.5), // 100 * 0.5 = 50
		finding(domain.SeverityLow, "anti_debug", 0.8),      // 25 * 0.8 = 20
		finding(domain.SeverityHigh, "packing", 1.0),        // 75
		finding(domain.SeverityMedium, "binary_diff", 0.9),  // not a threat-vector category
	}

	got := ThreatVectorScores(findings, cfg)
	require.Len(t, got, len(cfg.ThreatCategories))

	assert.InDelta(t, 70, got["anti_debug"], 1e-9)
	assert.InDelta(t, 75, got["packing"], 1e-9)
	assert.Zero(t, got["anti_vm"], "category with no findings scores 0")
	assert.NotContains(t, got, "binary_diff")
}

func TestThreatVectorScores_ClampedToHundred(t *testing.T) {
	findings := make([]domain.Finding, 0, 10)
	for i := 0; i < 10; i++ {
		findings = append(findings, finding(domain.SeverityCritical, "obfuscation", 1.0))
	}

	got := ThreatVectorScores(findings, DefaultConfig())
	assert.InDelta(t, 100, got["obfuscation"], 1e-9)
}

func TestThreatVectorScores_ConfidenceClamped(t *testing.T) {
	cfg := DefaultConfig()

	over := ThreatVectorScores([]domain.Finding{
		finding(domain.SeverityLow, "anti_vm", 7.0),
	}, cfg)
	assert.InDelta(t, 25, over["anti_vm"], 1e-9, "confidence above 1 clamps to 1")

	under := ThreatVectorScores([]domain.Finding{
		finding(domain.SeverityCritical, "anti_vm", -3.0),
	}, cfg)
	assert.Zero(t, under["anti_vm"], "negative confidence clamps to 0")
}

func TestThreatVectorScores_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	findings := []domain.Finding{
		finding(domain.SeverityCritical, "anti_debug", 0.99),
		finding(domain.SeverityHigh, "anti_debug", 0.7),
		finding(domain.SeverityInfo, "timing_check", 0.01),
	}

	for cat, score := range ThreatVectorScores(findings, cfg) {
		assert.GreaterOrEqual(t, score, 0.0, "category %s", cat)
		assert.LessOrEqual(t, score, 100.0, "category %s", cat)
	}
}

func TestThreatVectorScores_MonotonicInConfidence(t *testing.T) {
	cfg := DefaultConfig()
	lower := ThreatVectorScores([]domain.Finding{
		finding(domain.SeverityHigh, "packing", 0.4),
	}, cfg)
	higher := ThreatVectorScores([]domain.Finding{
		finding(domain.SeverityHigh, "packing", 0.6),
	}, cfg)
	assert.LessOrEqual(t, lower["packing"], higher["packing"])
}

func TestJobTimeline(t *testing.T) {
	day := func(d int, hour int) time.Time {
		return time.Date(2026, 3, d, hour, 0, 0, 0, time.Local)
	}
	jobs := []domain.Job{
		{ID: 3, Status: domain.JobCompleted, CreatedAt: day(2, 9)},
		{ID: 1, Status: domain.JobFailed, CreatedAt: day(1, 23)},
		{ID: 2, Status: domain.JobCompleted, CreatedAt: day(1, 8)},
		{ID: 4, Status: domain.JobRunning, CreatedAt: day(2, 14)},
	}

	got := JobTimeline(jobs)
	require.Len(t, got, 2)

	assert.Equal(t, "2026-03-01", got[0].Date)
	assert.Equal(t, 2, got[0].Total)
	assert.Equal(t, 1, got[0].ByStatus[domain.JobCompleted])
	assert.Equal(t, 1, got[0].ByStatus[domain.JobFailed])

	assert.Equal(t, "2026-03-02", got[1].Date)
	assert.Equal(t, 2, got[1].Total)
	assert.Equal(t, 1, got[1].ByStatus[domain.JobRunning])
}

func TestJobTimeline_Empty(t *testing.T) {
	assert.Empty(t, JobTimeline(nil))
}

func TestRiskTrend(t *testing.T) {
	jobs := []domain.Job{
		{ID: 10, Meta: &domain.JobMeta{RiskScore: floatPtr(0.42)}},
		{ID: 11},                          // no meta at all
		{ID: 12, Meta: &domain.JobMeta{}}, // meta without a score
		{ID: 13, Meta: &domain.JobMeta{RiskScore: floatPtr(0.875)}},
	}

	got := RiskTrend(jobs)
	require.Len(t, got, 2)
	assert.Equal(t, RiskPoint{JobID: 10, RiskPercent: 42}, got[0])
	assert.Equal(t, RiskPoint{JobID: 13, RiskPercent: 88}, got[1])
}

func TestRiskTrend_PreservesInputOrder(t *testing.T) {
	jobs := []domain.Job{
		{ID: 5, Meta: &domain.JobMeta{RiskScore: floatPtr(0.9)}},
		{ID: 2, Meta: &domain.JobMeta{RiskScore: floatPtr(0.1)}},
		{ID: 8, Meta: &domain.JobMeta{RiskScore: floatPtr(0.5)}},
	}

	got := RiskTrend(jobs)
	require.Len(t, got, 3)
	assert.Equal(t, int64(5), got[0].JobID)
	assert.Equal(t, int64(2), got[1].JobID)
	assert.Equal(t, int64(8), got[2].JobID)
}

func TestRiskTrend_Empty(t *testing.T) {
	got := RiskTrend(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100.0, cfg.SeverityWeights[domain.SeverityCritical])
	assert.Equal(t, 75.0, cfg.SeverityWeights[domain.SeverityHigh])
	assert.Equal(t, 50.0, cfg.SeverityWeights[domain.SeverityMedium])
	assert.Equal(t, 25.0, cfg.SeverityWeights[domain.SeverityLow])
	assert.Equal(t, 10.0, cfg.SeverityWeights[domain.SeverityInfo])
	assert.Len(t, cfg.ThreatCategories, 6)
}
