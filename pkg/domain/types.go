// Package domain defines the entity schemas consumed from the analysis
// service: jobs, findings, artifacts, trace events, and the system status
// snapshot. Payloads are validated at this boundary; optional fields use
// pointers so that "absent" stays distinguishable from zero.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity is the ordinal threat level attached to a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the canonical severities in display order.
var Severities = []Severity{
	SeverityInfo,
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// Valid reports whether s is one of the canonical severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// JobStatus is a job lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// UnmarshalJSON normalizes the legacy wire value "done" to JobCompleted.
// Older server builds emit both spellings.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	if raw == "done" {
		*s = JobCompleted
		return nil
	}
	*s = JobStatus(raw)
	return nil
}

// Terminal reports whether the job will make no further progress.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Known pipeline identifiers accepted by the submission endpoint.
const (
	PipelineQuicklook    = "quicklook"
	PipelineDeepStatic   = "deep-static"
	PipelineDynamicFirst = "dynamic-first"
	PipelineReleaseWatch = "release-watch"
	PipelineFullAudit    = "full-audit"
)

// KnownPipelines lists the pipeline identifiers the service registers.
var KnownPipelines = []string{
	PipelineQuicklook,
	PipelineDeepStatic,
	PipelineDynamicFirst,
	PipelineReleaseWatch,
	PipelineFullAudit,
}

// Evidence is one structured item supporting a finding. Only Type is
// guaranteed; the rest depends on the producing plugin.
type Evidence struct {
	Type      string `json:"type"`
	Location  string `json:"location,omitempty"`
	Value     string `json:"value,omitempty"`
	Context   string `json:"context,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Finding is a single security-relevant observation produced by an
// analysis plugin.
type Finding struct {
	ID          int64          `json:"id"`
	JobID       int64          `json:"job_id"`
	Severity    Severity       `json:"severity"`
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Evidence    []Evidence     `json:"evidence,omitempty"`
	Confidence  float64        `json:"confidence"`
	Tags        []string       `json:"tags,omitempty"`
	PluginID    string         `json:"plugin_id,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// JobMeta carries optional result metadata attached to a completed job.
// RiskScore is nil when the pipeline produced no score; nil is not zero.
type JobMeta struct {
	RiskScore       *float64 `json:"risk_score,omitempty"`
	ExecutionTimeMS *int64   `json:"execution_time_ms,omitempty"`
}

// Job is one analysis run submitted against a target.
type Job struct {
	ID           int64      `json:"id"`
	Target       string     `json:"target"`
	TargetType   string     `json:"target_type,omitempty"`
	Status       JobStatus  `json:"status"`
	PipelineID   string     `json:"pipeline_id"`
	CurrentStage string     `json:"current_stage,omitempty"`
	Progress     float64    `json:"progress,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Meta         *JobMeta   `json:"meta,omitempty"`
}

// RiskScore returns the job's risk score and whether one is present.
func (j *Job) RiskScore() (float64, bool) {
	if j.Meta == nil || j.Meta.RiskScore == nil {
		return 0, false
	}
	return *j.Meta.RiskScore, true
}

// StatusCounts are the entity totals reported on the status endpoint.
// Any of them may be absent on older servers.
type StatusCounts struct {
	Jobs      int64 `json:"jobs"`
	Findings  int64 `json:"findings"`
	Artifacts int64 `json:"artifacts"`
	Events    int64 `json:"events"`
}

// StatusSnapshot is the raw system-status payload. Counts may be nil;
// callers that need numbers for display use DisplayCounts.
type StatusSnapshot struct {
	Healthy  bool          `json:"healthy"`
	CeleryOK bool          `json:"celery_ok"`
	Counts   *StatusCounts `json:"counts,omitempty"`
}

// DisplayCounts returns the counts with absent values rendered as zero.
// The snapshot itself is never mutated.
func (s *StatusSnapshot) DisplayCounts() StatusCounts {
	if s == nil || s.Counts == nil {
		return StatusCounts{}
	}
	return *s.Counts
}

// Artifact is an opaque pass-through record describing a file produced
// by an analysis run.
type Artifact struct {
	ID           int64          `json:"id"`
	JobID        int64          `json:"job_id"`
	ArtifactType string         `json:"artifact_type"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	URI          string         `json:"uri,omitempty"`
	SHA256       string         `json:"sha256,omitempty"`
	SizeBytes    int64          `json:"size_bytes,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	PluginID     string         `json:"plugin_id,omitempty"`
	Stage        string         `json:"stage,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TraceEvent is an opaque pass-through record emitted by dynamic tracing.
type TraceEvent struct {
	ID        int64          `json:"id"`
	JobID     int64          `json:"job_id"`
	TS        time.Time      `json:"ts"`
	Source    string         `json:"source"`
	EventType string         `json:"event_type"`
	Symbol    string         `json:"symbol,omitempty"`
	Address   string         `json:"address,omitempty"`
	ThreadID  int64          `json:"thread_id,omitempty"`
	Sequence  int64          `json:"sequence,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}
