package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"moveguard/internal/chain"
	"moveguard/internal/config"
	"moveguard/internal/ui"
)

// Version is stamped at build time.
var Version = "1.0.0"

// ErrInvalidArgs marks malformed invocations. They exit with status 2 so
// wrappers can distinguish operator error from verification failure.
var ErrInvalidArgs = errors.New("INVALID_ARGS")

type CLIConfig struct {
	Command string

	Network    string
	Kind       string
	Target     string
	TargetFile string

	Timeout     time.Duration
	Retries     int
	Proxy       string
	SampleTxns  bool
	SampleLimit int

	ReportDir string
	NoReport  bool
	Verbose   bool

	// Monitor options
	CadenceHours int
	MaxTargets   int
	MaxDeepScans int

	// Status options
	Limit int
}

var knownCommands = []string{
	"scan", "monitor", "monitor-enable", "monitor-disable", "monitor-list", "status", "version", "help",
}

func isKnownCommand(s string) bool {
	for _, c := range knownCommands {
		if s == c {
			return true
		}
	}
	return false
}

// Validate rejects malformed invocations before any network or disk work.
// Errors here are reported and the process exits non-zero.
func (c *CLIConfig) Validate() error {
	switch c.Command {
	case "scan":
		if c.Target == "" && c.TargetFile == "" {
			return errors.New("-t <target> or -file <path> is required for scan")
		}
		if c.Target != "" && c.TargetFile != "" {
			return errors.New("-t and -file are mutually exclusive")
		}
	case "monitor-enable", "monitor-disable":
		if c.Target == "" {
			return errors.New("-t <target> is required")
		}
	case "monitor", "monitor-list", "status", "version", "help":
	default:
		return fmt.Errorf("unknown command %q (run 'moveguard help')", c.Command)
	}

	if c.Kind != "fa" && c.Kind != "coin" && c.Kind != "wallet" {
		return fmt.Errorf("unsupported kind %q (expected fa, coin or wallet)", c.Kind)
	}
	if c.Proxy != "" {
		if err := chain.ValidateProxyURL(c.Proxy); err != nil {
			return err
		}
	}
	if c.CadenceHours < 0 {
		return errors.New("-cadence must be positive")
	}
	return nil
}

// MergeConfigs layers defaults, settings.yaml and CLI flags, in that order.
func (c *CLIConfig) MergeConfigs(appConfig *config.AppConfig) config.ScanConfiguration {
	cfg := config.DefaultScanConfiguration()

	if appConfig != nil {
		if appConfig.DefaultNetwork != "" {
			cfg.Network = appConfig.DefaultNetwork
		}
		if appConfig.Scan.TimeoutSeconds > 0 {
			cfg.Timeout = time.Duration(appConfig.Scan.TimeoutSeconds) * time.Second
		}
		if appConfig.Scan.Retries > 0 {
			cfg.Retries = appConfig.Scan.Retries
		}
		if appConfig.Scan.BackoffMS > 0 {
			cfg.Backoff = time.Duration(appConfig.Scan.BackoffMS) * time.Millisecond
		}
		if appConfig.Scan.SampleLimit > 0 {
			cfg.SampleLimit = appConfig.Scan.SampleLimit
		}
		if appConfig.Scan.ActivityLimit > 0 {
			cfg.ActivityLimit = appConfig.Scan.ActivityLimit
		}
		if appConfig.Scan.Proxy != "" {
			cfg.Proxy = appConfig.Scan.Proxy
		}
		if appConfig.Scan.ReportDir != "" {
			cfg.ReportDir = appConfig.Scan.ReportDir
		}
		if appConfig.Monitor.MaxTargetsPerRun > 0 {
			cfg.MaxTargetsPerRun = appConfig.Monitor.MaxTargetsPerRun
		}
		if appConfig.Monitor.MaxDeepScansPerRun > 0 {
			cfg.MaxDeepScansPerRun = appConfig.Monitor.MaxDeepScansPerRun
		}
		if appConfig.Monitor.DefaultCadenceHours > 0 {
			cfg.DefaultCadenceHours = appConfig.Monitor.DefaultCadenceHours
		}
		cfg.SampleOnEscalation = appConfig.Monitor.SampleOnEscalation
	}

	if c.Network != "" {
		cfg.Network = c.Network
	}
	cfg.Kind = c.Kind
	cfg.Target = c.Target
	cfg.TargetFile = c.TargetFile
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.Retries >= 0 {
		cfg.Retries = c.Retries
	}
	if c.Proxy != "" {
		cfg.Proxy = c.Proxy
	}
	cfg.SampleTxns = c.SampleTxns
	if c.SampleLimit > 0 {
		cfg.SampleLimit = c.SampleLimit
	}
	if c.ReportDir != "" {
		cfg.ReportDir = c.ReportDir
	}
	cfg.WriteReport = !c.NoReport
	cfg.Verbose = c.Verbose
	if c.MaxTargets > 0 {
		cfg.MaxTargetsPerRun = c.MaxTargets
	}
	if c.MaxDeepScans > 0 {
		cfg.MaxDeepScansPerRun = c.MaxDeepScans
	}
	if c.CadenceHours > 0 {
		cfg.DefaultCadenceHours = c.CadenceHours
	}

	return cfg
}

func showHelp(topic string) {
	switch topic {
	case "scan":
		showScanHelp()
	case "monitor":
		showMonitorHelp()
	case "status":
		showStatusHelp()
	default:
		showGeneralHelp()
	}
}

func showGeneralHelp() {
	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  moveguard <COMMAND> [OPTIONS]")
	fmt.Println()

	fmt.Println(ui.Cyan + "COMMANDS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "scan", "Verify one target (or a file of targets)")
	fmt.Printf("  %-25s %s\n", "monitor", "Run one monitor pass over the registry")
	fmt.Printf("  %-25s %s\n", "monitor-enable", "Register a target for monitoring")
	fmt.Printf("  %-25s %s\n", "monitor-disable", "Disable a monitored target")
	fmt.Printf("  %-25s %s\n", "monitor-list", "List the monitor registry")
	fmt.Printf("  %-25s %s\n", "status", "Show recent scans and monitor runs")
	fmt.Printf("  %-25s %s\n", "version", "Print version")
	fmt.Println()

	fmt.Println(ui.Cyan + "COMMON OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-k <kind>", "Target kind: fa | coin | wallet (default: fa)")
	fmt.Printf("  %-25s %s\n", "-t <target>", "Target: 0xaddr or 0xaddr::module::Struct for coin")
	fmt.Printf("  %-25s %s\n", "-n <network>", "Network from settings.yaml (default: mainnet)")
	fmt.Printf("  %-25s %s\n", "-proxy <url>", "Proxy URL (HTTP/SOCKS5)")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println(ui.Gray + "  # Verify a fungible-asset token with behavior sampling" + ui.Reset)
	fmt.Println("  moveguard scan -k fa -t 0x1234... -sample")
	fmt.Println()
	fmt.Println(ui.Gray + "  # Verify a legacy coin" + ui.Reset)
	fmt.Println("  moveguard scan -k coin -t 0xabc::moon_coin::MoonCoin")
	fmt.Println()
	fmt.Println(ui.Gray + "  # Register then run monitoring" + ui.Reset)
	fmt.Println("  moveguard monitor-enable -k fa -t 0x1234... -cadence 12")
	fmt.Println("  moveguard monitor")
}

func showScanHelp() {
	fmt.Println(ui.Cyan + "🔍 SCAN" + ui.Reset)
	fmt.Println(ui.Gray + "Run one full verification pass against a token or wallet." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  moveguard scan -k <kind> -t <target> [OPTIONS]")
	fmt.Println()

	fmt.Println(ui.Cyan + "OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-k <kind>", "fa | coin | wallet (default: fa)")
	fmt.Printf("  %-25s %s\n", "-t <target>", "Single target identifier")
	fmt.Printf("  %-25s %s\n", "-file <path>", "File with one target per line")
	fmt.Printf("  %-25s %s\n", "-sample", "Sample recent transactions for behavior evidence")
	fmt.Printf("  %-25s %s\n", "-sample-limit <n>", "Transactions to sample (default: 25)")
	fmt.Printf("  %-25s %s\n", "-r <dir>", "Report output directory (default: reports)")
	fmt.Printf("  %-25s %s\n", "-no-report", "Skip report artifacts")
	fmt.Printf("  %-25s %s\n", "-timeout <dur>", "Per-request timeout (default: 15s)")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println("  moveguard scan -t 0x1234abcd...")
	fmt.Println("  moveguard scan -k coin -t 0xabc::moon_coin::MoonCoin -sample")
	fmt.Println("  moveguard scan -file targets.txt -no-report")
}

func showMonitorHelp() {
	fmt.Println(ui.Cyan + "📡 MONITOR" + ui.Reset)
	fmt.Println(ui.Gray + "Fingerprint registered targets and escalate drifted ones to a full scan." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  moveguard monitor [OPTIONS]")
	fmt.Println("  moveguard monitor-enable -k <kind> -t <target> [-cadence <hours>]")
	fmt.Println("  moveguard monitor-disable -k <kind> -t <target>")
	fmt.Println("  moveguard monitor-list")
	fmt.Println()

	fmt.Println(ui.Cyan + "OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-cadence <hours>", "Re-check cadence for monitor-enable (default: 24)")
	fmt.Printf("  %-25s %s\n", "-max-targets <n>", "Targets fingerprinted per run (default: 50)")
	fmt.Printf("  %-25s %s\n", "-max-scans <n>", "Full re-verifications per run (default: 5)")
	fmt.Println()

	fmt.Println(ui.Cyan + "NOTES:" + ui.Reset)
	fmt.Println("  Drifted targets beyond the per-run scan budget are marked queued and")
	fmt.Println("  picked up by the next run. The registry is only changed by the")
	fmt.Println("  enable/disable commands, never by the scheduler.")
}

func showStatusHelp() {
	fmt.Println(ui.Cyan + "📊 STATUS" + ui.Reset)
	fmt.Println(ui.Gray + "Show recent verification results and monitor runs from the history store." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  moveguard status [-limit <n>]")
}

// ParseFlags parses the command word and its flag set.
func ParseFlags() (*CLIConfig, error) {
	args := os.Args[1:]
	command := "help"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			showHelp(strings.TrimPrefix(command, "monitor-"))
			os.Exit(0)
		}
	}
	if command == "help" {
		topic := ""
		if len(args) > 0 {
			topic = args[0]
		}
		showHelp(topic)
		os.Exit(0)
	}
	if !isKnownCommand(command) {
		return nil, fmt.Errorf("unknown command %q (run 'moveguard help')", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Usage = func() { showHelp(command) }

	kind := fs.String("k", "fa", "Target kind: fa | coin | wallet")
	target := fs.String("t", "", "Target identifier")
	targetFile := fs.String("file", "", "File with one target per line")
	network := fs.String("n", "", "Network name from settings.yaml")
	timeout := fs.Duration("timeout", 0, "Per-request timeout")
	retries := fs.Int("retries", -1, "Retries per request")
	proxy := fs.String("proxy", "", "Optional proxy URL (http/https/socks5)")
	sample := fs.Bool("sample", false, "Sample recent transactions for behavior evidence")
	sampleLimit := fs.Int("sample-limit", 0, "Transactions to sample")
	reportDir := fs.String("r", "", "Report output directory")
	noReport := fs.Bool("no-report", false, "Skip report artifacts")
	verbose := fs.Bool("v", false, "Verbose output")
	cadence := fs.Int("cadence", 0, "Monitor cadence in hours")
	maxTargets := fs.Int("max-targets", 0, "Targets fingerprinted per monitor run")
	maxScans := fs.Int("max-scans", 0, "Full re-verifications per monitor run")
	limit := fs.Int("limit", 10, "Rows shown by status")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &CLIConfig{
		Command:      command,
		Network:      strings.TrimSpace(*network),
		Kind:         strings.ToLower(strings.TrimSpace(*kind)),
		Target:       strings.TrimSpace(*target),
		TargetFile:   strings.TrimSpace(*targetFile),
		Timeout:      *timeout,
		Retries:      *retries,
		Proxy:        strings.TrimSpace(*proxy),
		SampleTxns:   *sample,
		SampleLimit:  *sampleLimit,
		ReportDir:    strings.TrimSpace(*reportDir),
		NoReport:     *noReport,
		Verbose:      *verbose,
		CadenceHours: *cadence,
		MaxTargets:   *maxTargets,
		MaxDeepScans: *maxScans,
		Limit:        *limit,
	}

	if cfg.TargetFile != "" && !filepath.IsAbs(cfg.TargetFile) {
		cwd, _ := os.Getwd()
		cfg.TargetFile = filepath.Join(cwd, cfg.TargetFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return cfg, nil
}

func Run() error {
	cfg, err := ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()

	go func() {
		count := 0
		for range sigChan {
			count++
			if count == 1 {
				fmt.Fprintln(os.Stderr, "\nInterrupt received, stopping... (press Ctrl+C again to force exit)")
				cancel()
				continue
			}
			fmt.Fprintln(os.Stderr, "\nForce exiting...")
			os.Exit(130)
		}
	}()

	return Execute(ctx, cfg)
}

func PrintFatal(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, ErrInvalidArgs) {
		os.Exit(2)
	}
	os.Exit(1)
}
