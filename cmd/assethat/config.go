package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed assets.yml
var configTemplate []byte

var forceConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write a starter assets config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		target := s.ConfigPath
		if !filepath.IsAbs(target) {
			target = filepath.Join(s.Root, target)
		}
		if _, err := os.Stat(target); err == nil && !forceConfig {
			return fmt.Errorf("%s already exists; pass --force to replace it", target)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", target, err)
		}
		if err := os.WriteFile(target, configTemplate, 0o644); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Wrote to %s. Next, open this file in your editor\n", target)
		fmt.Fprintln(w, "and set up your CSS/JS bundles.")
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&forceConfig, "force", false, "overwrite an existing config")
	rootCmd.AddCommand(configCmd)
}
