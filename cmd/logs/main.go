package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/setup"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/urfave/cli/v3"
)

const (
	// LogsLogDir specifies where log tool log files are stored.
	LogsLogDir = "logs/tool_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "logs",
		Usage: "Inspect and export the stored message log without running the bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Value: LogsLogDir,
				Usage: "Directory receiving log sessions",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export the message log over a day range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true, Usage: "First day, YYYYMMDD"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "Last day, YYYYMMDD"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format (xlsx, csv, sqlite)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory, defaults to the configured export directory"},
				},
				Action: exportAction,
			},
			{
				Name:   "stats",
				Usage:  "Print watch and log counts",
				Action: statsAction,
			},
			{
				Name:   "check",
				Usage:  "Check that every stored document is present and readable",
				Action: checkAction,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// withApp initializes the offline service and loads the stored data.
func withApp(ctx context.Context, c *cli.Command, fn func(app *setup.App, data *state.Data) error) error {
	app, err := setup.InitializeApp(ctx, setup.ServiceLogs, c.String("log-dir"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	data, err := app.Persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored documents: %w", err)
	}
	return fn(app, data)
}

func exportAction(ctx context.Context, c *cli.Command) error {
	from, err := export.ParseDate(c.String("from"))
	if err != nil {
		return err
	}
	to, err := export.ParseDate(c.String("to"))
	if err != nil {
		return err
	}

	return withApp(ctx, c, func(app *setup.App, data *state.Data) error {
		name := c.String("format")
		if name == "" {
			name = app.Config.Common.Export.DefaultFormat
		}
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}

		rows, err := data.Log.Range(from, to)
		if err != nil {
			return err
		}

		exporter := app.Exporter
		if out := c.String("out"); out != "" {
			exporter = export.New(out)
		}
		path, err := exporter.Export(rows, from, to, format)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d entries to %s\n", len(rows), path)
		return nil
	})
}

func statsAction(ctx context.Context, c *cli.Command) error {
	return withApp(ctx, c, func(_ *setup.App, data *state.Data) error {
		keywords := 0
		for _, s := range data.Watches.Summary() {
			keywords += len(s.Keywords)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Watchers\t%d\n", len(data.Watches.Users()))
		fmt.Fprintf(w, "Keywords\t%d\n", keywords)
		fmt.Fprintf(w, "Log entries\t%d\n", data.Log.Len())

		counts := data.Log.CountByDate()
		for _, date := range data.Log.Dates() {
			fmt.Fprintf(w, "  %s\t%d\n", date, counts[date])
		}
		return w.Flush()
	})
}

func checkAction(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, setup.ServiceLogs, c.String("log-dir"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	var failed []string
	for _, doc := range app.Persistence.Check(ctx) {
		switch {
		case doc.Err != nil:
			fmt.Printf("%-24s unreadable: %v\n", doc.Name, doc.Err)
			failed = append(failed, doc.Name)
		case !doc.Present:
			fmt.Printf("%-24s missing\n", doc.Name)
			failed = append(failed, doc.Name)
		default:
			fmt.Printf("%-24s ok (%d bytes)\n", doc.Name, doc.Size)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("documents not usable: %s", strings.Join(failed, ", "))
	}
	return nil
}
