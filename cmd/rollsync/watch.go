package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/knagata/rollsync/internal/config"
	"github.com/knagata/rollsync/internal/watch"
)

var (
	watchDiffCSV  string
	watchMemberID int64
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the stats database and re-run dry-run syncs on change",
	Long: `Run as a daemon: watch the stats database file and re-run a dry-run
reconciliation whenever it changes, logging the computed diff.

Watch mode never writes to the member database. Writing is a deliberate
batch operation ('rollsync sync --write') with its own backup; a daemon
firing writes on every upstream change would defeat that safety model.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := watchOptions(cmd)
		if err != nil {
			fatal(err)
		}

		run := func(ctx context.Context) error {
			// Each pass uses a fresh attendance window end date.
			o := opts
			o.AsOf = time.Now()
			return runSync(ctx, o)
		}

		w, err := watch.New(opts.StatsDB, run, &watch.Config{
			Debounce: config.GetDuration("watch.debounce"),
			Logger:   newLogger("[watch] "),
		})
		if err != nil {
			fatal(err)
		}
		if err := w.Start(cmd.Context()); err != nil {
			fatal(err)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDiffCSV, "diff-csv", "", "Rewrite this CSV file with the diff after each run")
	watchCmd.Flags().Int64Var(&watchMemberID, "member-id", 0, "Restrict runs to a single member id")

	rootCmd.AddCommand(watchCmd)
}

func watchOptions(cmd *cobra.Command) (syncOptions, error) {
	if statsDBPath == "" {
		return syncOptions{}, fmt.Errorf("stats database path is required (--stats-db or config key stats-db)")
	}
	if memberDBPath == "" {
		return syncOptions{}, fmt.Errorf("member database path is required (--member-db or config key member-db)")
	}

	opts := syncOptions{
		StatsDB:  statsDBPath,
		MemberDB: memberDBPath,
		MemberID: watchMemberID,
		DiffCSV:  watchDiffCSV,
		Policy:   defaultPolicyFromConfig(),
	}
	if err := opts.Policy.Validate(); err != nil {
		return opts, fmt.Errorf("invalid classification policy: %w", err)
	}
	return opts, nil
}
