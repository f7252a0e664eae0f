package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"assethat/internal/assethat"
)

var (
	settingsPath string
	rootDir      string
)

var rootCmd = &cobra.Command{
	Use:           "assethat",
	Short:         "Bundle, minify and include CSS/JS assets with cache-busting revisions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings",
		getenvDefault("ASSETHAT_SETTINGS", assethat.DefaultSettingsPath), "path to assethat.yml (optional)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root; overrides the root setting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "assethat:", err)
		os.Exit(1)
	}
}

func loadSettings() (assethat.Settings, error) {
	p := settingsPath
	if rootDir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(rootDir, p)
	}
	s, err := assethat.LoadSettings(p)
	if err != nil {
		return assethat.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if rootDir != "" {
		s.Root = rootDir
	}
	return s, nil
}

func newService() (*assethat.Service, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	svc, err := assethat.NewService(s)
	if err != nil {
		return nil, fmt.Errorf("init service: %w", err)
	}
	return svc, nil
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
