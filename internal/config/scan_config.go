package config

import (
	"time"
)

// ScanConfiguration is the fully-merged runtime configuration for one
// invocation (defaults <- settings.yaml <- CLI flags).
type ScanConfiguration struct {
	// Target selection
	Network    string
	Kind       string
	Target     string
	TargetFile string

	// Source behavior
	Timeout       time.Duration
	Retries       int
	Backoff       time.Duration
	Proxy         string
	SampleTxns    bool
	SampleLimit   int
	ActivityLimit int

	// Output
	ReportDir   string
	WriteReport bool
	Verbose     bool

	// Monitor budgets
	MaxTargetsPerRun    int
	MaxDeepScansPerRun  int
	DefaultCadenceHours int
	SampleOnEscalation  bool
}

func DefaultScanConfiguration() ScanConfiguration {
	return ScanConfiguration{
		Network:             "mainnet",
		Timeout:             15 * time.Second,
		Retries:             2,
		Backoff:             500 * time.Millisecond,
		SampleLimit:         25,
		ActivityLimit:       100,
		ReportDir:           "reports",
		WriteReport:         true,
		MaxTargetsPerRun:    50,
		MaxDeepScansPerRun:  5,
		DefaultCadenceHours: 24,
	}
}
