// Command rollsync keeps the member directory's presence status in line
// with the attendance statistics database.
//
// A run loads both databases, computes per-member target statuses from
// attendance counts, and applies the diff to the member database. Runs
// are dry by default; --write enables mutation, which is always preceded
// by a rotated backup of the member database.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/knagata/rollsync/internal/config"
)

var (
	// Version and Build are set at link time.
	Version = "0.4.0"
	Build   = "dev"
)

var (
	statsDBPath  string
	memberDBPath string
	verboseFlag  bool
	quietFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "rollsync",
	Short: "rollsync - Sync member presence statuses from attendance stats",
	Long: `Synchronize the member directory's presence status field from the
attendance statistics database.

Dry-run is the default: rollsync computes and reports every change but
writes nothing unless --write is given. Write runs always back up the
member database first.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("rollsync version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags win over config; config fills in whatever wasn't given.
		if !cmd.Flags().Changed("stats-db") && statsDBPath == "" {
			statsDBPath = config.GetString("stats-db")
		}
		if !cmd.Flags().Changed("member-db") && memberDBPath == "" {
			memberDBPath = config.GetString("member-db")
		}
	},
}

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&statsDBPath, "stats-db", "", "Stats database file path (default: config key stats-db)")
	rootCmd.PersistentFlags().StringVar(&memberDBPath, "member-db", "", "Member database file path (default: config key member-db)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// logWriter builds the destination for component loggers: stderr unless
// --quiet, plus a rotating log file when config key log.file is set.
func logWriter() io.Writer {
	var writers []io.Writer
	if !quietFlag {
		writers = append(writers, os.Stderr)
	}
	if file := config.GetString("log.file"); file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    config.GetInt("log.max-size-mb"),
			MaxBackups: config.GetInt("log.max-backups"),
		})
	}
	if len(writers) == 0 {
		return io.Discard
	}
	if len(writers) == 1 {
		return writers[0]
	}
	return io.MultiWriter(writers...)
}

func newLogger(prefix string) *log.Logger {
	return log.New(logWriter(), prefix, log.LstdFlags)
}

// fatal prints an error and exits non-zero. All fatal paths funnel
// through here so the exit-code contract stays in one place.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
