package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knagata/rollsync/internal/backup"
	"github.com/knagata/rollsync/internal/config"
)

var (
	manualBackupDir    string
	manualBackupPrefix string
	manualRetention    int
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the member database now",
	Long: `Copy the member database to a timestamped backup and prune old
backups beyond the retention count.

This is the same rotation a write run performs automatically. Backup
names embed a minute-granularity timestamp; a second backup within the
same minute fails rather than overwriting the first.`,
	Run: func(cmd *cobra.Command, args []string) {
		if memberDBPath == "" {
			fatal(fmt.Errorf("member database path is required (--member-db or config key member-db)"))
		}

		dir := manualBackupDir
		if dir == "" {
			dir = config.GetString("backup.dir")
		}
		prefix := manualBackupPrefix
		if prefix == "" {
			prefix = config.GetString("backup.prefix")
		}
		retention := manualRetention
		if retention == 0 {
			retention = config.GetInt("backup.retention")
		}

		rotator := backup.New(dir, prefix, retention, newLogger("[backup] "))
		dest, err := rotator.Rotate(memberDBPath)
		if err != nil {
			fatal(err)
		}
		if !quietFlag {
			fmt.Printf("Backed up to %s\n", dest)
		}
	},
}

func init() {
	backupCmd.Flags().StringVar(&manualBackupDir, "backup-dir", "", "Backup directory (default: config key backup.dir)")
	backupCmd.Flags().StringVar(&manualBackupPrefix, "backup-prefix", "", "Backup filename prefix (default: config key backup.prefix)")
	backupCmd.Flags().IntVar(&manualRetention, "retention", 0, "Number of backups to keep (default: config key backup.retention)")

	rootCmd.AddCommand(backupCmd)
}
