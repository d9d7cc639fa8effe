package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moveguard/internal/drift"
	"moveguard/internal/extract"
	"moveguard/internal/logger"
	"moveguard/internal/verify"
)

// SnapshotVerifier is the slice of the verification pipeline the scheduler
// drives: cheap fingerprinting plus full re-verification on escalation.
type SnapshotVerifier interface {
	BuildPingSnapshot(ctx context.Context, target verify.Target) *drift.PingSnapshot
	Verify(ctx context.Context, target verify.Target, opts verify.Options) (*verify.VerificationReport, error)
}

// History receives the records a monitor run produces. Implementations decide
// where they land (the CLI wires the GORM scan-history store).
type History interface {
	RecordScan(report *verify.VerificationReport) error
	RecordRun(result *RunResult) error
}

type SchedulerConfig struct {
	MaxTargetsPerRun   int
	MaxDeepScansPerRun int
	// SampleOnEscalation re-enables transaction sampling for escalated
	// verifications. Off by default to bound per-run cost.
	SampleOnEscalation bool
}

// TargetOutcome classifies one target within a run.
type TargetOutcome struct {
	Kind    string         `json:"kind"`
	Target  string         `json:"target"`
	State   string         `json:"state"` // baseline | stable | changed | error
	Changes []drift.Change `json:"changes,omitempty"`

	Escalated bool   `json:"escalated"`
	Queued    bool   `json:"queued"`
	ScanID    string `json:"scan_id,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
	Error     string `json:"error,omitempty"`
}

type RunResult struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Outcomes  []TargetOutcome `json:"outcomes"`

	Targets   int `json:"targets"`
	Changed   int `json:"changed"`
	Escalated int `json:"escalated"`
	Queued    int `json:"queued"`
	Errors    int `json:"errors"`
}

// Scheduler is the per-run monitor driver. Targets are processed
// sequentially to bound pressure on the chain RPC; only the per-target
// verification fans out internally.
type Scheduler struct {
	registry *Registry
	store    *drift.SnapshotStore
	verifier SnapshotVerifier
	history  History
	cfg      SchedulerConfig
}

func NewScheduler(registry *Registry, store *drift.SnapshotStore, verifier SnapshotVerifier, history History, cfg SchedulerConfig) *Scheduler {
	if cfg.MaxTargetsPerRun <= 0 {
		cfg.MaxTargetsPerRun = 50
	}
	if cfg.MaxDeepScansPerRun <= 0 {
		cfg.MaxDeepScansPerRun = 5
	}
	return &Scheduler{
		registry: registry,
		store:    store,
		verifier: verifier,
		history:  history,
		cfg:      cfg,
	}
}

// Run fingerprints every due target, diffs against its last snapshot and
// escalates up to the configured number of changed targets to a full
// re-verification. Excess changed targets are queued, never dropped.
// The scheduler never creates or deletes registry entries.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
	}

	due := s.registry.Due(started)
	if len(due) > s.cfg.MaxTargetsPerRun {
		due = due[:s.cfg.MaxTargetsPerRun]
	}
	result.Targets = len(due)
	logger.Info("monitor run %s: %d target(s) due", result.RunID, len(due))

	for _, entry := range due {
		outcome := s.processTarget(ctx, entry, result)
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.State {
		case "changed":
			result.Changed++
		case "error":
			result.Errors++
		}
		if outcome.Escalated {
			result.Escalated++
		}
		if outcome.Queued {
			result.Queued++
		}

		s.registry.Touch(entry, time.Now(), outcome.ScanID)
	}

	// One registry rewrite per run. A failed write is non-fatal: the next
	// run simply re-observes the same cadence state.
	if err := s.registry.Save(); err != nil {
		logger.Warn("failed to persist monitor registry: %v", err)
	}

	result.Duration = time.Since(started)
	if s.history != nil {
		if err := s.history.RecordRun(result); err != nil {
			logger.Warn("failed to record monitor run: %v", err)
		}
	}
	logger.Info("monitor run %s done: %d changed, %d escalated, %d queued, %d errors",
		result.RunID, result.Changed, result.Escalated, result.Queued, result.Errors)
	return result, nil
}

func (s *Scheduler) processTarget(ctx context.Context, entry *RegistryEntry, result *RunResult) TargetOutcome {
	outcome := TargetOutcome{Kind: entry.Kind, Target: entry.Target}

	target, err := verify.ParseTarget(extract.TargetKind(entry.Kind), entry.Target)
	if err != nil {
		outcome.State = "error"
		outcome.Error = fmt.Sprintf("invalid registry entry: %v", err)
		return outcome
	}

	curr := s.verifier.BuildPingSnapshot(ctx, target)
	if curr == nil {
		outcome.State = "error"
		outcome.Error = "snapshot unavailable (all sources failed)"
		return outcome
	}

	prev, err := s.store.Load(string(target.Kind), target.ID())
	if err != nil {
		logger.Warn("previous snapshot unreadable for %s: %v", target.String(), err)
		prev = nil
	}

	// Always persist, even when unchanged, so escalation decisions never
	// build on stale state.
	if err := s.store.Save(curr); err != nil {
		logger.Warn("failed to persist snapshot for %s: %v", target.String(), err)
	}

	diff := drift.Diff(prev, curr)
	switch {
	case prev == nil:
		outcome.State = "baseline"
	case diff.Changed:
		outcome.State = "changed"
		outcome.Changes = diff.Changes
	default:
		outcome.State = "stable"
	}

	if outcome.State != "changed" {
		return outcome
	}

	if result.Escalated >= s.cfg.MaxDeepScansPerRun {
		outcome.Queued = true
		logger.Info("drift on %s queued (escalation budget %d exhausted)", target.String(), s.cfg.MaxDeepScansPerRun)
		return outcome
	}

	logger.Info("drift on %s (%d change(s)), escalating to full verification", target.String(), len(diff.Changes))
	report, err := s.verifier.Verify(ctx, target, verify.Options{
		SampleTransactions: s.cfg.SampleOnEscalation,
	})
	if err != nil {
		outcome.Error = fmt.Sprintf("escalated verification failed: %v", err)
		return outcome
	}

	outcome.Escalated = true
	outcome.ScanID = report.ScanID
	outcome.RiskLevel = string(report.Risk.Level)
	if s.history != nil {
		if err := s.history.RecordScan(report); err != nil {
			logger.Warn("failed to record escalated scan %s: %v", report.ScanID, err)
		}
	}
	return outcome
}
