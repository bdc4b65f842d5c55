package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jrsteele09/go-autolaunch/internal/config"
	"github.com/jrsteele09/go-autolaunch/launch"
	"github.com/spf13/cobra"
)

var errInconsistent = errors.New("storage root is inconsistent")

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report index files and registry entries that do not line up",
	Long: `reconcile compares the index directory, the mount config and the refresh
config under the storage root. It prints every inconsistency and exits
non-zero if there is any. Nothing is modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New()
		if err != nil {
			return err
		}
		setupLogging(c)

		a, err := newApp(c, nil)
		if err != nil {
			return err
		}
		report, err := a.launcher.Reconcile()
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		if !report.Consistent() {
			return errInconsistent
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func printReport(w io.Writer, r launch.Report) {
	if r.Consistent() {
		fmt.Fprintln(w, "consistent")
		return
	}
	for _, p := range r.RefreshWithoutMount {
		fmt.Fprintf(w, "refresh entry without mount entry\t%s\n", p)
	}
	for _, p := range r.MountWithoutIndex {
		fmt.Fprintf(w, "mount entry without index file\t%s\n", p)
	}
	for _, p := range r.OrphanIndexFiles {
		fmt.Fprintf(w, "index file without mount entry\t%s\n", p)
	}
}
