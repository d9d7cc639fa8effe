package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"moveguard/cmd"
	"moveguard/internal/ui"
)

//go:embed config/settings.example.yaml
var embeddedFiles embed.FS

func main() {
	if err := initConfigFile(); err != nil {
		cmd.PrintFatal(fmt.Errorf("failed to init config file: %w", err))
	}

	ui.PrintBanner()
	if err := cmd.Run(); err != nil {
		cmd.PrintFatal(err)
	}
}

// initConfigFile materializes the default settings.yaml on first run so the
// tool works out of the box against public endpoints.
func initConfigFile() error {
	targetDir := "config"
	targetFile := filepath.Join(targetDir, "settings.yaml")

	if _, err := os.Stat(targetFile); err == nil {
		return nil
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return err
	}

	data, err := embeddedFiles.ReadFile("config/settings.example.yaml")
	if err != nil {
		return err
	}

	if err := os.WriteFile(targetFile, data, 0644); err != nil {
		return err
	}

	fmt.Printf(ui.Green+"✅ Created default config file: %s"+ui.Reset+"\n", targetFile)
	return nil
}
