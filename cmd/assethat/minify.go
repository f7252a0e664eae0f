package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"assethat/internal/assethat"
)

var reportFormat string

var minifyCmd = &cobra.Command{
	Use:   "minify [css|js]",
	Short: "Concatenate and minify every configured bundle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types := assethat.Types
		if len(args) == 1 {
			t, err := assethat.ParseAssetType(args[0])
			if err != nil {
				return err
			}
			types = []assethat.AssetType{t}
		}
		format, err := checkFormat(reportFormat)
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		w := cmd.OutOrStdout()
		labels := make([]string, 0, len(types))
		for _, t := range types {
			labels = append(labels, strings.ToUpper(string(t)))
		}
		fmt.Fprintf(w, "Minifying %s...", strings.Join(labels, "/"))
		if format != "dot" {
			fmt.Fprintln(w)
		}
		for _, t := range types {
			reps, err := svc.MinifyAll(cmd.Context(), t)
			for _, rep := range reps {
				printReport(w, format, rep)
			}
			if err != nil {
				return err
			}
		}
		if format != "short" {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "Done.")
		return nil
	},
}

var minifyBundleCmd = &cobra.Command{
	Use:   "minify-bundle <css|js> <bundle>",
	Short: "Concatenate and minify one bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := assethat.ParseAssetType(args[0])
		if err != nil {
			return err
		}
		format, err := checkFormat(reportFormat)
		if err != nil {
			return err
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		reps, err := svc.MinifyBundle(cmd.Context(), t, args[1])
		for _, rep := range reps {
			printReport(cmd.OutOrStdout(), format, rep)
		}
		return err
	},
}

var minifyFileCmd = &cobra.Command{
	Use:   "minify-file <path>",
	Short: "Minify one CSS or JS file to <name>.min.<ext> beside it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := filepath.Clean(args[0])
		t, err := assethat.ParseAssetType(filepath.Ext(p))
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		rep, err := svc.MinifyFile(cmd.Context(), t, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "- Minified to %s\n", rep.Path)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{minifyCmd, minifyBundleCmd} {
		c.Flags().StringVar(&reportFormat, "format", getenvDefault("FORMAT", "long"), "report format: long, short or dot")
	}
	rootCmd.AddCommand(minifyCmd, minifyBundleCmd, minifyFileCmd)
}

func checkFormat(f string) (string, error) {
	switch f {
	case "", "long":
		return "long", nil
	case "short", "dot":
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (long, short or dot)", f)
}

func printReport(w io.Writer, format string, rep assethat.BundleReport) {
	percent := fmt.Sprintf("%.1f%%", rep.PercentSaved())
	switch format {
	case "dot":
		fmt.Fprint(w, ".")
	case "short":
		fmt.Fprintf(w, "Minified %6s: %s\n", percent, rep.Path)
	default:
		fmt.Fprintf(w, "\nWrote %s bundle: %s\n", strings.ToUpper(string(rep.Type)), rep.Path)
		for _, src := range rep.Sources {
			fmt.Fprintf(w, "        contains: %s\n", src)
		}
		if rep.OldSize > 0 {
			empty := ""
			if rep.NewSize == 0 {
				empty = " (empty!)"
			}
			fmt.Fprintf(w, "        MINIFIED: %s%s (Engine: %s)\n", percent, empty, rep.Engine)
		}
	}
}
