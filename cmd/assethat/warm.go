package main

import (
	"github.com/spf13/cobra"
)

var resetRevisions bool

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Compute every bundle revision token and persist it to the revision store",
	Long: "Recomputes the revision token of every configured bundle and member file.\n" +
		"With revision_store set, the tokens replace the saved snapshot so processes\n" +
		"started later load them instead of running git. Run it on every deploy.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if resetRevisions {
			if err := svc.ResetRevisions(); err != nil {
				return err
			}
		}
		if err := svc.WarmAll(cmd.Context()); err != nil {
			return err
		}
		saved, err := svc.SaveRevisions()
		if err != nil {
			return err
		}
		if !saved {
			cmd.PrintErrln("No revision_store configured; tokens were computed but not saved.")
		}
		return nil
	},
}

func init() {
	warmCmd.Flags().BoolVar(&resetRevisions, "reset", false, "empty the revision store before warming")
	rootCmd.AddCommand(warmCmd)
}
