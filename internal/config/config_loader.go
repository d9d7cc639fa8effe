package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NetworkConfig describes one chain deployment. The first fullnode URL is the
// primary source; the second and third, when present, become the fallback and
// secondary corroboration endpoints.
type NetworkConfig struct {
	Name         string   `yaml:"name"`
	FullnodeURLs []string `yaml:"fullnode_urls"`
	IndexerURL   string   `yaml:"indexer_url"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres DSN
}

type MonitorSettings struct {
	RegistryPath        string `yaml:"registry_path"`
	SnapshotDir         string `yaml:"snapshot_dir"`
	MaxTargetsPerRun    int    `yaml:"max_targets_per_run"`
	MaxDeepScansPerRun  int    `yaml:"max_deep_scans_per_run"`
	DefaultCadenceHours int    `yaml:"default_cadence_hours"`
	SampleOnEscalation  bool   `yaml:"sample_on_escalation"`
}

type ScanSettings struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
	BackoffMS      int    `yaml:"backoff_ms"`
	SampleLimit    int    `yaml:"sample_limit"`
	ActivityLimit  int    `yaml:"activity_limit"`
	Proxy          string `yaml:"proxy"`
	ReportDir      string `yaml:"report_dir"`
}

type AppConfig struct {
	DefaultNetwork string                   `yaml:"default_network"`
	Networks       map[string]NetworkConfig `yaml:"networks"`
	Database       DatabaseConfig           `yaml:"database"`
	Monitor        MonitorSettings          `yaml:"monitor"`
	Scan           ScanSettings             `yaml:"scan"`
	// AllowList suppresses penalizing findings for known-safe function-name
	// patterns and records an info acknowledgment instead.
	AllowList []string `yaml:"allow_list"`
}

var (
	loadOnce     sync.Once
	loadedConfig *AppConfig
	loadedErr    error
)

// LoadConfig reads settings.yaml (probed at the usual locations) after
// overlaying a local .env file. Loaded once per process.
func LoadConfig() (*AppConfig, error) {
	loadOnce.Do(func() {
		// Optional; a missing .env is the normal case.
		_ = godotenv.Load()

		configPath := findConfigFile()
		if configPath == "" {
			loadedErr = fmt.Errorf("configuration file settings.yaml not found")
			return
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			loadedErr = fmt.Errorf("failed to read configuration file: %w", err)
			return
		}

		var cfg AppConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			loadedErr = fmt.Errorf("failed to parse configuration file: %w", err)
			return
		}
		applyEnvOverrides(&cfg)
		loadedConfig = &cfg
	})

	if loadedErr != nil {
		return nil, loadedErr
	}
	return loadedConfig, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("MOVEGUARD_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("MOVEGUARD_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("MOVEGUARD_PROXY"); v != "" {
		cfg.Scan.Proxy = v
	}
}

func findConfigFile() string {
	possiblePaths := []string{
		"config/settings.yaml",
		"settings.yaml",
		"../config/settings.yaml",
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func GetConfigPath() string {
	return findConfigFile()
}

func GetConfigDir() string {
	configPath := findConfigFile()
	if configPath == "" {
		return "config"
	}
	return filepath.Dir(configPath)
}

func (c *AppConfig) GetNetwork(name string) (*NetworkConfig, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	network, ok := c.Networks[name]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", name)
	}
	if len(network.FullnodeURLs) == 0 {
		return nil, fmt.Errorf("network %s has no fullnode_urls configured", name)
	}
	return &network, nil
}
