package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/christopherklint97/workcal/internal/config"
	"github.com/christopherklint97/workcal/internal/engine"
	"github.com/christopherklint97/workcal/internal/export"
	"github.com/christopherklint97/workcal/internal/scheduler"
	"github.com/christopherklint97/workcal/internal/server"
	"github.com/christopherklint97/workcal/internal/tui"
)

func runUsers(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, newLogger(cmd))
	if err != nil {
		return err
	}

	search, _ := cmd.Flags().GetString("search")
	users := a.session.Users()
	if search != "" {
		users = a.session.SearchUsers(search)
	}

	if len(users) == 0 {
		fmt.Println("No employees found.")
		return nil
	}

	fmt.Printf("Found %d employees:\n\n", len(users))
	for _, u := range users {
		fmt.Printf("  %-30s  %s\n", u.Name, u.Email)
	}
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, newLogger(cmd))
	if err != nil {
		return err
	}

	palette := engine.NewPalette(a.cfg.PaletteOverrides()...)
	categories := a.session.Events.Categories()
	if len(categories) == 0 {
		fmt.Println("No categories loaded.")
		return nil
	}

	for _, c := range categories {
		fmt.Printf("  %-10d  %-8s  %s\n", c.ID, palette.Color(c.ID), c.Name)
	}
	return nil
}

func runCalendar(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cmd)
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}

	weekFlag, _ := cmd.Flags().GetString("week")
	day, err := parseDay(weekFlag, a.loc)
	if err != nil {
		return err
	}
	emails, _ := cmd.Flags().GetStringSlice("user")

	if useTUI, _ := cmd.Flags().GetBool("tui"); useTUI {
		app := tui.NewApp(ctx, a.session, nil, emails, day)
		p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		return err
	}

	if len(emails) == 0 {
		return fmt.Errorf("no employees selected — pass --user or use --tui to pick them")
	}

	start := startOfWeek(day)
	end := start.AddDate(0, 0, 7)
	if err := a.session.OnVisibleRangeChanged(ctx, start, end, emails); err != nil {
		fmt.Fprintf(os.Stderr, "Some calendars could not be loaded: %v\n", err)
	}

	printWeek(os.Stdout, a, start)
	return nil
}

func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func printWeek(w io.Writer, a *app, start time.Time) {
	from := engine.DateOf(start, a.loc)
	to := engine.DateOf(start.AddDate(0, 0, 6), a.loc)

	fmt.Fprintf(w, "Week of %s\n", engine.LongDate(start, a.loc))
	count := 0
	for _, e := range a.session.Entries() {
		if !e.StartDate.Within(from, to) {
			continue
		}
		count++
		when := "all day    "
		if !e.AllDay {
			when = e.Start.In(a.loc).Format("15:04") + "–" + e.End.In(a.loc).Format("15:04")
		}
		fmt.Fprintf(w, "\n  %s  %s  %-12s  %s\n", e.StartDate, when, e.CategoryName, e.OwnerEmail)
		for _, t := range e.Tasks {
			fmt.Fprintf(w, "      • %s %dh %dm\n", t.Title, t.Hours, t.Minutes)
		}
	}
	if count == 0 {
		fmt.Fprintln(w, "\nNo entries this week.")
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cmd)
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}

	emails, _ := cmd.Flags().GetStringSlice("user")
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	start, err := parseDay(fromFlag, a.loc)
	if err != nil {
		return err
	}
	end, err := parseDay(toFlag, a.loc)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = a.cfg.Export.Format
	}
	dir, _ := cmd.Flags().GetString("out")
	if dir == "" {
		dir = a.cfg.Export.Dir
	}

	var exporter engine.Exporter
	var fileExporter *export.FileExporter
	if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
		switch format {
		case export.FormatCSV:
			exporter = export.NewCSVExporter(os.Stdout)
		case export.FormatJSON:
			exporter = export.NewJSONExporter(os.Stdout)
		case export.FormatYAML:
			exporter = export.NewYAMLExporter(os.Stdout)
		default:
			return fmt.Errorf("format %q cannot be written to stdout", format)
		}
	} else {
		fileExporter, err = export.NewFileExporter(format, dir, logger.With("component", "export"))
		if err != nil {
			return err
		}
		exporter = fileExporter
	}

	rows, err := a.session.ExportReport(ctx, exporter, emails, start, end)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	if fileExporter != nil {
		events, tasks := 0, 0
		for _, r := range rows {
			events += len(r.Events)
			tasks += len(r.Tasks)
		}
		fmt.Printf("Exported %d employees (%d events, %d tasks) to %s\n", len(rows), events, tasks, fileExporter.LastPath())
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := filepath.Join(cfg.Export.Dir, "workcal-reports.db")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No reports exported to SQLite yet.")
		return nil
	}

	db, err := export.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	runs, err := db.Runs(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No reports exported to SQLite yet.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("  %s  %s  %d employees\n", r.ID, r.GeneratedAt, r.Users)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cmd)
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}

	if err := scheduler.ValidateSpec(a.cfg.Refresh.Cron); err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = a.cfg.Server.Listen
	}

	sched := scheduler.New(a.session, a.cfg.Refresh.Cron,
		scheduler.WithInvalidate(a.clickup.InvalidateCache),
		scheduler.WithNotifications(a.cfg.Notifications.Enabled),
		scheduler.WithLogger(logger.With("component", "scheduler")),
	)
	srv := server.New(a.session, sched, a.exporter, logger.With("component", "server"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx, listen) })

	fmt.Printf("workcal serving on http://%s (PID %d)\n", listen, os.Getpid())
	return g.Wait()
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := export.Schema()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runFeed(cmd *cobra.Command, args []string) error {
	email, source := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%q is not an email address", email)
	}

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveFeed(path, email, source); err != nil {
		return fmt.Errorf("saving feed: %w", err)
	}

	fmt.Printf("Calendar for %s now read from %s\n", email, source)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s in %s...\n", configPath, editor)
	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	editorPath, err := exec.LookPath(editor)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	process, err := os.StartProcess(editorPath, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
