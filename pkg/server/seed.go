package server

import (
	"time"

	"github.com/reveris/aetherwatch/pkg/domain"
)

func ptrF(v float64) *float64 { return &v }

// Seed loads a small demo dataset: two completed runs with findings and
// artifacts, one still running. Useful when developing the dashboard
// against `aetherwatch mock`.
func Seed(store *Store) {
	now := time.Now().UTC()

	j1 := store.AddJob(domain.Job{
		Target:     "/samples/dropper.exe",
		TargetType: "binary",
		Status:     domain.JobCompleted,
		PipelineID: domain.PipelineQuicklook,
		Tags:       []string{"malware", "packed"},
		CreatedAt:  now.Add(-48 * time.Hour),
		Meta:       &domain.JobMeta{RiskScore: ptrF(0.82)},
	})
	j2 := store.AddJob(domain.Job{
		Target:     "/samples/updater_v2.bin",
		TargetType: "binary",
		Status:     domain.JobCompleted,
		PipelineID: domain.PipelineDeepStatic,
		CreatedAt:  now.Add(-24 * time.Hour),
		Meta:       &domain.JobMeta{RiskScore: ptrF(0.35)},
	})
	store.AddJob(domain.Job{
		Target:     "/samples/suspicious.apk",
		TargetType: "apk",
		Status:     domain.JobRunning,
		PipelineID: domain.PipelineDynamicFirst,
		CreatedAt:  now.Add(-10 * time.Minute),
	})

	store.AddFinding(domain.Finding{
		JobID:      j1.ID,
		Severity:   domain.SeverityHigh,
		Category:   "anti_debug",
		Title:      "IsDebuggerPresent check in entry path",
		Confidence: 0.95,
		Evidence: []domain.Evidence{
			{Type: "function", Location: "0x401234", Value: "call kernel32.IsDebuggerPresent"},
		},
		Tags:      []string{"kernel32", "windows"},
		PluginID:  "umbriel",
		CreatedAt: now.Add(-48 * time.Hour),
	})
	store.AddFinding(domain.Finding{
		JobID:      j1.ID,
		Severity:   domain.SeverityCritical,
		Category:   "packing",
		Title:      "High-entropy section .upx0",
		Confidence: 0.88,
		PluginID:   "umbriel",
		CreatedAt:  now.Add(-48 * time.Hour),
	})
	store.AddFinding(domain.Finding{
		JobID:      j2.ID,
		Severity:   domain.SeverityMedium,
		Category:   "timing_check",
		Title:      "rdtsc delta gate before payload decode",
		Confidence: 0.6,
		PluginID:   "umbriel",
		CreatedAt:  now.Add(-24 * time.Hour),
	})
	store.AddFinding(domain.Finding{
		JobID:      j2.ID,
		Severity:   domain.SeverityInfo,
		Category:   "static",
		Title:      "Imports resolved dynamically via GetProcAddress",
		Confidence: 0.4,
		PluginID:   "static_analyzer",
		CreatedAt:  now.Add(-24 * time.Hour),
	})

	store.AddArtifact(domain.Artifact{
		JobID:        j1.ID,
		ArtifactType: "report",
		Name:         "unpacked.bin",
		SHA256:       "9b2cf8f8f2a1f0b6d3e0c7a54b1d9e8f7c6a5b4d3e2f1a0b9c8d7e6f5a4b3c2d",
		SizeBytes:    482304,
		CreatedAt:    now.Add(-48 * time.Hour),
	})
	store.AddEvent(domain.TraceEvent{
		JobID:     j2.ID,
		TS:        now.Add(-24 * time.Hour),
		Source:    "laintrace",
		EventType: "api_call",
		Symbol:    "GetProcAddress",
		Sequence:  1,
	})
}
