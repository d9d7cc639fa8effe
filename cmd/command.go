package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moveguard/internal/chain"
	"moveguard/internal/config"
	"moveguard/internal/drift"
	"moveguard/internal/extract"
	"moveguard/internal/logger"
	"moveguard/internal/monitor"
	"moveguard/internal/report"
	"moveguard/internal/ui"
	"moveguard/internal/verify"
)

func Execute(ctx context.Context, cli *CLIConfig) error {
	if cli.Command == "version" {
		fmt.Printf("moveguard %s\n", Version)
		return nil
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg := cli.MergeConfigs(appCfg)

	if err := logger.InitLogger(); err != nil {
		return err
	}
	defer logger.Close()

	switch cli.Command {
	case "scan":
		return ExecuteScan(ctx, appCfg, cfg)
	case "monitor":
		return ExecuteMonitor(ctx, appCfg, cfg)
	case "monitor-enable":
		return ExecuteMonitorEnable(appCfg, cfg)
	case "monitor-disable":
		return ExecuteMonitorDisable(appCfg, cfg)
	case "monitor-list":
		return ExecuteMonitorList(appCfg)
	case "status":
		return ExecuteStatus(appCfg, cli.Limit)
	default:
		return fmt.Errorf("unknown command %q", cli.Command)
	}
}

// buildVerifier wires the per-network source set. The first configured
// fullnode URL is the primary; the second and third become fallback and
// secondary corroboration endpoints.
func buildVerifier(appCfg *config.AppConfig, cfg config.ScanConfiguration) (*verify.Verifier, error) {
	network, err := appCfg.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	labels := []string{"primary", "fallback", "secondary"}
	clients := make([]*chain.Client, 0, 3)
	for i, rawURL := range network.FullnodeURLs {
		if i >= len(labels) {
			break
		}
		client, err := chain.NewClient(chain.ClientConfig{
			Label:   labels[i],
			BaseURL: rawURL,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
			Backoff: cfg.Backoff,
			Proxy:   cfg.Proxy,
		})
		if err != nil {
			return nil, fmt.Errorf("network %s, fullnode %d: %w", network.Name, i, err)
		}
		clients = append(clients, client)
	}

	src := verify.Sources{Primary: clients[0]}
	if len(clients) > 1 {
		src.Fallback = clients[1]
	}
	if len(clients) > 2 {
		src.Secondary = clients[2]
	}
	if network.IndexerURL != "" {
		indexer, err := chain.NewIndexerClient(network.IndexerURL, cfg.Proxy, cfg.Timeout)
		if err != nil {
			logger.Warn("indexer disabled: %v", err)
		} else {
			src.Indexer = indexer
		}
	}
	src.Sampler = chain.NewSampler(src.Primary, cfg.SampleLimit)

	return verify.NewVerifier(src, appCfg.AllowList)
}

func ExecuteScan(ctx context.Context, appCfg *config.AppConfig, cfg config.ScanConfiguration) error {
	targets, err := collectTargets(cfg)
	if err != nil {
		return err
	}

	verifier, err := buildVerifier(appCfg, cfg)
	if err != nil {
		return err
	}

	// An unusable history store fails explicit scans up front rather than
	// silently dropping records.
	db, err := config.InitDatabase(appCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var reporter *report.Reporter
	if cfg.WriteReport {
		reporter = report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(cfg.ReportDir))
	}

	opts := verify.Options{
		SampleTransactions: cfg.SampleTxns,
		SampleLimit:        cfg.SampleLimit,
		ActivityLimit:      cfg.ActivityLimit,
	}

	started := time.Now()
	success, failed, flagged := 0, 0, 0

	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stop := ui.StartSpinner(fmt.Sprintf("Verifying %s:%s", target.Kind, target.ID()))
		rep, err := verifier.Verify(ctx, target, opts)
		stop <- true

		if err != nil {
			failed++
			ui.LogError("%s: %v", target.String(), err)
			if len(targets) == 1 {
				return err
			}
			continue
		}

		success++
		ui.LogRisk(target.ID(), string(rep.Risk.Level), len(rep.Findings))
		if rep.Risk.Level != "SAFE_STATIC" && rep.Risk.Level != "SAFE_DYNAMIC" {
			flagged++
		}
		printScanSummary(rep, cfg.Verbose)

		if err := persistScan(db, rep); err != nil {
			return err
		}
		if reporter != nil {
			path, err := reporter.GenerateAndSave(rep)
			if err != nil {
				return err
			}
			ui.LogInfo("Report saved: %s", path)
		}
	}

	if len(targets) > 1 {
		ui.PrintStats(len(targets), success, failed, flagged, time.Since(started))
	}
	return nil
}

func printScanSummary(rep *verify.VerificationReport, verbose bool) {
	fmt.Printf("  Evidence tier: %s | Claims status: %s\n", rep.Tier, rep.Status)
	for _, line := range rep.Risk.Rationale {
		fmt.Printf("  • %s\n", line)
	}
	if len(rep.Discrepancies) > 0 {
		ui.LogWarn("%d cross-source discrepancies", len(rep.Discrepancies))
	}
	if verbose {
		for _, f := range rep.Findings {
			fmt.Printf("  [%s] %s: %s\n", strings.ToUpper(string(f.Severity)), f.ID, f.Description)
		}
		for _, sig := range rep.Risk.Signals {
			fmt.Printf("  signal: %s\n", sig)
		}
	}
}

func persistScan(db *config.Database, rep *verify.VerificationReport) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", rep.ScanID, err)
	}
	return db.SaveScan(&config.ScanRecord{
		ScanID:       rep.ScanID,
		Kind:         string(rep.Target.Kind),
		Target:       rep.Target.ID(),
		RiskLevel:    string(rep.Risk.Level),
		EvidenceTier: string(rep.Tier),
		Status:       rep.Status,
		Report:       string(raw),
	})
}

// collectTargets resolves the single -t target or each non-empty line of the
// -file list. Parse failures abort the invocation before any scanning.
func collectTargets(cfg config.ScanConfiguration) ([]verify.Target, error) {
	kind := extract.TargetKind(cfg.Kind)

	if cfg.Target != "" {
		target, err := verify.ParseTarget(kind, cfg.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return []verify.Target{target}, nil
	}

	f, err := os.Open(cfg.TargetFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	var targets []verify.Target
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, err := verify.ParseTarget(kind, line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrInvalidArgs, cfg.TargetFile, lineNo, err)
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target file: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets in %s", cfg.TargetFile)
	}
	return targets, nil
}

// historyStore adapts the GORM store to the scheduler's History interface.
type historyStore struct {
	db *config.Database
}

func (h *historyStore) RecordScan(rep *verify.VerificationReport) error {
	return persistScan(h.db, rep)
}

func (h *historyStore) RecordRun(result *monitor.RunResult) error {
	return h.db.SaveMonitorRun(&config.MonitorRunRecord{
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		DurationMS: result.Duration.Milliseconds(),
		Targets:    result.Targets,
		Changed:    result.Changed,
		Escalated:  result.Escalated,
		Queued:     result.Queued,
		Errors:     result.Errors,
	})
}

func registryPath(appCfg *config.AppConfig) string {
	if appCfg.Monitor.RegistryPath != "" {
		return appCfg.Monitor.RegistryPath
	}
	return filepath.Join("data", "monitor_registry.json")
}

func ExecuteMonitor(ctx context.Context, appCfg *config.AppConfig, cfg config.ScanConfiguration) error {
	registry, err := monitor.LoadRegistry(registryPath(appCfg))
	if err != nil {
		return err
	}

	verifier, err := buildVerifier(appCfg, cfg)
	if err != nil {
		return err
	}

	db, err := config.InitDatabase(appCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler := monitor.NewScheduler(
		registry,
		drift.NewSnapshotStore(appCfg.Monitor.SnapshotDir),
		verifier,
		&historyStore{db: db},
		monitor.SchedulerConfig{
			MaxTargetsPerRun:   cfg.MaxTargetsPerRun,
			MaxDeepScansPerRun: cfg.MaxDeepScansPerRun,
			SampleOnEscalation: cfg.SampleOnEscalation,
		},
	)

	result, err := scheduler.Run(ctx)
	if err != nil {
		return err
	}

	for _, outcome := range result.Outcomes {
		switch outcome.State {
		case "changed":
			if outcome.Escalated {
				ui.LogRisk(outcome.Target, outcome.RiskLevel, len(outcome.Changes))
			} else if outcome.Queued {
				ui.LogWarn("%s drifted, queued for next run", outcome.Target)
			}
		case "error":
			ui.LogError("%s: %s", outcome.Target, outcome.Error)
		}
	}
	ui.PrintStats(result.Targets, result.Targets-result.Errors, result.Errors, result.Changed, result.Duration)
	return nil
}

func ExecuteMonitorEnable(appCfg *config.AppConfig, cfg config.ScanConfiguration) error {
	target, err := verify.ParseTarget(extract.TargetKind(cfg.Kind), cfg.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	registry, err := monitor.LoadRegistry(registryPath(appCfg))
	if err != nil {
		return err
	}
	entry := registry.Enable(string(target.Kind), target.ID(), cfg.DefaultCadenceHours)
	if err := registry.Save(); err != nil {
		return err
	}
	ui.LogSuccess("Monitoring %s:%s every %dh", entry.Kind, entry.Target, entry.CadenceHours)
	return nil
}

func ExecuteMonitorDisable(appCfg *config.AppConfig, cfg config.ScanConfiguration) error {
	target, err := verify.ParseTarget(extract.TargetKind(cfg.Kind), cfg.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	registry, err := monitor.LoadRegistry(registryPath(appCfg))
	if err != nil {
		return err
	}
	if !registry.Disable(string(target.Kind), target.ID()) {
		return fmt.Errorf("target %s is not registered", target.String())
	}
	if err := registry.Save(); err != nil {
		return err
	}
	ui.LogSuccess("Disabled monitoring for %s", target.String())
	return nil
}

func ExecuteMonitorList(appCfg *config.AppConfig) error {
	registry, err := monitor.LoadRegistry(registryPath(appCfg))
	if err != nil {
		return err
	}

	entries := registry.All()
	if len(entries) == 0 {
		fmt.Println("No monitored targets.")
		return nil
	}

	fmt.Printf("%-8s %-66s %-9s %-8s %s\n", "KIND", "TARGET", "ENABLED", "CADENCE", "LAST RUN")
	for _, entry := range entries {
		lastRun := "never"
		if entry.LastRunUTC != nil {
			lastRun = entry.LastRunUTC.Format(time.RFC3339)
		}
		fmt.Printf("%-8s %-66s %-9t %-8s %s\n",
			entry.Kind, entry.Target, entry.Enabled, fmt.Sprintf("%dh", entry.CadenceHours), lastRun)
	}
	return nil
}

func ExecuteStatus(appCfg *config.AppConfig, limit int) error {
	db, err := config.InitDatabase(appCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	scans, err := db.RecentScans(limit)
	if err != nil {
		return err
	}
	fmt.Println(ui.Cyan + "RECENT SCANS" + ui.Reset)
	if len(scans) == 0 {
		fmt.Println("  none")
	}
	for _, rec := range scans {
		fmt.Printf("  %s  %-8s %-20s %s%-18s%s tier=%s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Kind, truncate(rec.Target, 20),
			ui.RiskColor(rec.RiskLevel), rec.RiskLevel, ui.Reset, rec.EvidenceTier)
	}

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(ui.Cyan + "RECENT MONITOR RUNS" + ui.Reset)
	if len(runs) == 0 {
		fmt.Println("  none")
	}
	for _, rec := range runs {
		fmt.Printf("  %s  targets=%d changed=%d escalated=%d queued=%d errors=%d (%dms)\n",
			rec.StartedAt.Format("2006-01-02 15:04"), rec.Targets, rec.Changed,
			rec.Escalated, rec.Queued, rec.Errors, rec.DurationMS)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
