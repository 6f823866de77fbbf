package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/knagata/rollsync/internal/attendance"
	"github.com/knagata/rollsync/internal/backup"
	"github.com/knagata/rollsync/internal/config"
	"github.com/knagata/rollsync/internal/reconcile"
	"github.com/knagata/rollsync/internal/report"
	"github.com/knagata/rollsync/internal/status"
	"github.com/knagata/rollsync/internal/store"
)

var (
	writeFlag        bool
	diffCSVPath      string
	fullCSVPath      string
	memberIDFlag     int64
	asOfFlag         string
	backupDirFlag    string
	backupPrefixFlag string
	retentionFlag    int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile member statuses against the stats database",
	Long: `Compute each member's target presence status from attendance counts
and apply the changes to the member database.

Without --write this is a dry run: every change is computed and reported,
nothing is persisted. With --write, the member database is backed up to
the backup directory first; a failed backup aborts the run before any
reconciliation.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := syncOptionsFromFlags(cmd)
		if err != nil {
			fatal(err)
		}
		if err := runSync(cmd.Context(), opts); err != nil {
			fatal(err)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&writeFlag, "write", false, "Persist status changes to the member database (default: dry run)")
	syncCmd.Flags().StringVar(&diffCSVPath, "diff-csv", "", "Write changed members to this CSV file")
	syncCmd.Flags().StringVar(&fullCSVPath, "full-csv", "", "Write every member's final state to this CSV file")
	syncCmd.Flags().Int64Var(&memberIDFlag, "member-id", 0, "Restrict the run to a single member id")
	syncCmd.Flags().StringVar(&asOfFlag, "as-of", "", "End date of the attendance window, YYYY-MM-DD (default: today)")
	syncCmd.Flags().StringVar(&backupDirFlag, "backup-dir", "", "Backup directory (default: config key backup.dir)")
	syncCmd.Flags().StringVar(&backupPrefixFlag, "backup-prefix", "", "Backup filename prefix (default: config key backup.prefix)")
	syncCmd.Flags().IntVar(&retentionFlag, "retention", 0, "Number of backups to keep (default: config key backup.retention)")

	rootCmd.AddCommand(syncCmd)
}

func defaultPolicyFromConfig() status.Policy {
	return status.Policy{
		RegularMin:    config.GetInt("status.regular-min"),
		OccasionalMin: config.GetInt("status.occasional-min"),
	}
}

// syncOptions is the fully resolved configuration of one run. Components
// receive values from here; nothing below the CLI reads flags or viper.
type syncOptions struct {
	StatsDB  string
	MemberDB string

	Write    bool
	MemberID int64
	AsOf     time.Time

	DiffCSV string
	FullCSV string

	BackupDir    string
	BackupPrefix string
	Retention    int

	Policy status.Policy
}

func syncOptionsFromFlags(cmd *cobra.Command) (syncOptions, error) {
	opts := syncOptions{
		StatsDB:      statsDBPath,
		MemberDB:     memberDBPath,
		Write:        writeFlag,
		MemberID:     memberIDFlag,
		AsOf:         time.Now(),
		DiffCSV:      diffCSVPath,
		FullCSV:      fullCSVPath,
		BackupDir:    backupDirFlag,
		BackupPrefix: backupPrefixFlag,
		Retention:    retentionFlag,
		Policy:       defaultPolicyFromConfig(),
	}

	if opts.StatsDB == "" {
		return opts, fmt.Errorf("stats database path is required (--stats-db or config key stats-db)")
	}
	if opts.MemberDB == "" {
		return opts, fmt.Errorf("member database path is required (--member-db or config key member-db)")
	}
	if asOfFlag != "" {
		asOf, err := time.ParseInLocation("2006-01-02", asOfFlag, time.Local)
		if err != nil {
			return opts, fmt.Errorf("invalid --as-of date %q: %w", asOfFlag, err)
		}
		opts.AsOf = asOf
	}
	if opts.BackupDir == "" {
		opts.BackupDir = config.GetString("backup.dir")
	}
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = config.GetString("backup.prefix")
	}
	if opts.Retention == 0 {
		opts.Retention = config.GetInt("backup.retention")
	}
	if err := opts.Policy.Validate(); err != nil {
		return opts, fmt.Errorf("invalid classification policy: %w", err)
	}

	return opts, nil
}

// runSync is one full pass: backup (write runs only), load, reconcile,
// apply, report. Shared by the sync command and the watch daemon.
func runSync(ctx context.Context, opts syncOptions) error {
	start := time.Now()

	if opts.Write {
		rotator := backup.New(opts.BackupDir, opts.BackupPrefix, opts.Retention, newLogger("[backup] "))
		if _, err := rotator.Rotate(opts.MemberDB); err != nil {
			return err
		}
	}

	stats, err := store.OpenStats(opts.StatsDB)
	if err != nil {
		return err
	}
	defer stats.Close()

	records, err := stats.ReadAttendance(ctx, store.AttendanceFilter{
		MemberID:  opts.MemberID,
		SinceYear: opts.AsOf.Year() - 1,
	})
	if err != nil {
		return err
	}
	counts := attendance.Aggregate(records, opts.AsOf)

	members, err := store.OpenMembers(opts.MemberDB, opts.Write)
	if err != nil {
		return err
	}
	defer members.Close()

	snapshot, err := members.ReadMembers(ctx, opts.MemberID)
	if err != nil {
		return err
	}

	reconciler := reconcile.New(opts.Policy, newLogger("[reconcile] "))
	changes := reconciler.Reconcile(counts, snapshot)

	result, applyErr := reconcile.Apply(ctx, members, changes, opts.Write, newLogger("[reconcile] "))

	// Reports describe the computed diff, which is valid even when
	// applying it failed partway; the operator needs them to repair.
	if opts.DiffCSV != "" {
		if err := report.WriteDiffFile(opts.DiffCSV, changes); err != nil {
			if applyErr != nil {
				return fmt.Errorf("%w (and diff report failed: %v)", applyErr, err)
			}
			return err
		}
	}
	if opts.FullCSV != "" {
		if err := report.WriteFullFile(opts.FullCSV, snapshot, counts, changes); err != nil {
			if applyErr != nil {
				return fmt.Errorf("%w (and full report failed: %v)", applyErr, err)
			}
			return err
		}
	}
	if applyErr != nil {
		return applyErr
	}

	if !quietFlag {
		elapsed := time.Since(start).Round(time.Millisecond)
		mode := "dry run"
		if opts.Write {
			mode = fmt.Sprintf("%d applied", len(result.Applied))
		}
		fmt.Printf("Sync complete in %v\n", elapsed)
		fmt.Printf("   Members: %d\n", len(snapshot))
		fmt.Printf("   Changes: %d (%s)\n", len(changes), mode)
		if verboseFlag {
			for _, c := range changes {
				fmt.Printf("   %d %s: %s -> %s (%d weeks)\n",
					c.MemberID, c.Name, c.Old.Name(), c.New.Name(), c.Weeks)
			}
		}
	}

	return nil
}
