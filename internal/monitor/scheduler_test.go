package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveguard/internal/drift"
	"moveguard/internal/risk"
	"moveguard/internal/verify"
)

type fakeVerifier struct {
	keys         map[string]drift.DriftKeys
	failSnapshot map[string]bool
	verifyCalls  []string
	sampleFlags  []bool
}

func (f *fakeVerifier) BuildPingSnapshot(_ context.Context, target verify.Target) *drift.PingSnapshot {
	if f.failSnapshot[target.ID()] {
		return nil
	}
	snap, err := drift.NewSnapshot(string(target.Kind), target.ID(), "primary", f.keys[target.ID()])
	if err != nil {
		return nil
	}
	return snap
}

func (f *fakeVerifier) Verify(_ context.Context, target verify.Target, opts verify.Options) (*verify.VerificationReport, error) {
	f.verifyCalls = append(f.verifyCalls, target.ID())
	f.sampleFlags = append(f.sampleFlags, opts.SampleTransactions)
	return &verify.VerificationReport{
		ScanID: "scan-" + target.ID(),
		Target: target,
		Risk:   risk.Synthesis{Level: risk.LevelElevatedRisk},
	}, nil
}

type fakeHistory struct {
	scans []string
	runs  []*RunResult
}

func (h *fakeHistory) RecordScan(rep *verify.VerificationReport) error {
	h.scans = append(h.scans, rep.ScanID)
	return nil
}

func (h *fakeHistory) RecordRun(result *RunResult) error {
	h.runs = append(h.runs, result)
	return nil
}

func oldKeys() drift.DriftKeys {
	return drift.DriftKeys{Owner: "0xold", Supply: "100", Decimals: 8, Capabilities: map[string]bool{"mint_ref": true}}
}

func newKeys() drift.DriftKeys {
	return drift.DriftKeys{Owner: "0xnew", Supply: "100", Decimals: 8, Capabilities: map[string]bool{"mint_ref": true}}
}

func setupRun(t *testing.T, n int) (*Registry, *drift.SnapshotStore, *fakeVerifier) {
	t.Helper()
	dir := t.TempDir()

	reg, err := LoadRegistry(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)

	store := drift.NewSnapshotStore(filepath.Join(dir, "snapshots"))
	fake := &fakeVerifier{keys: map[string]drift.DriftKeys{}, failSnapshot: map[string]bool{}}

	for i := 1; i <= n; i++ {
		target := fmt.Sprintf("0xa%d", i)
		reg.Enable("fa", target, 24)
		fake.keys[target] = newKeys()
	}
	return reg, store, fake
}

func TestRunEscalationBudget(t *testing.T) {
	reg, store, fake := setupRun(t, 5)
	history := &fakeHistory{}

	// Every target drifted relative to its stored snapshot.
	for i := 1; i <= 5; i++ {
		prev, err := drift.NewSnapshot("fa", fmt.Sprintf("0xa%d", i), "primary", oldKeys())
		require.NoError(t, err)
		require.NoError(t, store.Save(prev))
	}

	scheduler := NewScheduler(reg, store, fake, history, SchedulerConfig{
		MaxTargetsPerRun:   50,
		MaxDeepScansPerRun: 3,
	})
	result, err := scheduler.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Targets)
	assert.Equal(t, 5, result.Changed)
	assert.Equal(t, 3, result.Escalated)
	assert.Equal(t, 2, result.Queued)
	assert.Equal(t, 0, result.Errors)

	// Budget consumed in deterministic registry order.
	assert.Equal(t, []string{"0xa1", "0xa2", "0xa3"}, fake.verifyCalls)
	assert.Equal(t, []string{"scan-0xa1", "scan-0xa2", "scan-0xa3"}, history.scans)
	require.Len(t, history.runs, 1)

	// Queued targets still had their snapshot refreshed, so the next run
	// diffs against current state.
	for i := 1; i <= 5; i++ {
		snap, err := store.Load("fa", fmt.Sprintf("0xa%d", i))
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, "0xnew", snap.DriftKeys.Owner)
	}

	// Every processed entry was touched; escalated ones carry the scan id.
	for _, entry := range reg.All() {
		require.NotNil(t, entry.LastRunUTC)
	}
	assert.Equal(t, "scan-0xa1", reg.Entries["fa:0xa1"].LastScanID)
	assert.Equal(t, "", reg.Entries["fa:0xa4"].LastScanID)
}

func TestRunFirstObservationIsBaseline(t *testing.T) {
	reg, store, fake := setupRun(t, 2)
	history := &fakeHistory{}

	scheduler := NewScheduler(reg, store, fake, history, SchedulerConfig{})
	result, err := scheduler.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Targets)
	assert.Equal(t, 0, result.Changed)
	assert.Equal(t, 0, result.Escalated)
	assert.Empty(t, fake.verifyCalls)
	for _, outcome := range result.Outcomes {
		assert.Equal(t, "baseline", outcome.State)
	}

	// Second run over unchanged state is stable, still no escalation.
	for _, entry := range reg.All() {
		entry.LastRunUTC = nil
	}
	result, err = scheduler.Run(context.Background())
	require.NoError(t, err)
	for _, outcome := range result.Outcomes {
		assert.Equal(t, "stable", outcome.State)
	}
}

func TestRunSnapshotFailureIsAnErrorOutcome(t *testing.T) {
	reg, store, fake := setupRun(t, 2)
	fake.failSnapshot["0xa1"] = true

	scheduler := NewScheduler(reg, store, fake, &fakeHistory{}, SchedulerConfig{})
	result, err := scheduler.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "error", result.Outcomes[0].State)
	assert.Equal(t, "baseline", result.Outcomes[1].State)
}

func TestRunRespectsMaxTargets(t *testing.T) {
	reg, store, fake := setupRun(t, 4)

	scheduler := NewScheduler(reg, store, fake, &fakeHistory{}, SchedulerConfig{
		MaxTargetsPerRun:   2,
		MaxDeepScansPerRun: 5,
	})
	result, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Targets)
	assert.Len(t, result.Outcomes, 2)
}

func TestEscalationSamplingFollowsConfig(t *testing.T) {
	reg, store, fake := setupRun(t, 1)
	prev, err := drift.NewSnapshot("fa", "0xa1", "primary", oldKeys())
	require.NoError(t, err)
	require.NoError(t, store.Save(prev))

	scheduler := NewScheduler(reg, store, fake, &fakeHistory{}, SchedulerConfig{
		SampleOnEscalation: true,
	})
	_, err = scheduler.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fake.sampleFlags, 1)
	assert.True(t, fake.sampleFlags[0])
}
