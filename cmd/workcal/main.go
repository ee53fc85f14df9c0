package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workcal",
	Short: "Team calendar with logged work attached",
	Long: "workcal merges team members' TeamUp calendars with the tasks they logged in ClickUp, " +
		"shows them as a color-coded week calendar, and exports per-employee reports.",
	SilenceUsage: true,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List employees in the directory",
	RunE:  runUsers,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List calendar categories and their colors",
	RunE:  runCategories,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show a week of calendar entries",
	RunE:  runCalendar,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export events and logged tasks per employee",
	RunE:  runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List reports stored in the SQLite export database",
	RunE:  runRuns,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API with periodic refresh",
	RunE:  runServe,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE:  runStop,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of exported reports",
	RunE:  runSchema,
}

var feedCmd = &cobra.Command{
	Use:   "feed EMAIL SOURCE",
	Short: "Use an iCalendar URL or file as an employee's calendar",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeed,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	usersCmd.Flags().StringP("search", "s", "", "Only show employees whose name contains this text")

	calendarCmd.Flags().StringSliceP("user", "u", nil, "Employee email (repeatable)")
	calendarCmd.Flags().StringP("week", "w", "today", "Any day in the week to show (YYYY-MM-DD or e.g. \"last monday\")")
	calendarCmd.Flags().Bool("tui", false, "Open the interactive week calendar")

	reportCmd.Flags().StringSliceP("user", "u", nil, "Employee email (repeatable)")
	reportCmd.Flags().String("from", "7 days ago", "First day of the report")
	reportCmd.Flags().String("to", "today", "Last day of the report, inclusive")
	reportCmd.Flags().StringP("format", "f", "", "Export format: csv, json, yaml or sqlite (default from config)")
	reportCmd.Flags().StringP("out", "o", "", "Export directory (default from config)")
	reportCmd.Flags().Bool("stdout", false, "Write the report to stdout instead of a file")

	serveCmd.Flags().String("listen", "", "Listen address (default from config)")

	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := readPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to workcal (PID %d)\n", pid)
	return nil
}
