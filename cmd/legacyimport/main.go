package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"legacyimport/internal/config"
	s3connector "legacyimport/internal/connectors/s3"
	sheetsconnector "legacyimport/internal/connectors/sheets"
	"legacyimport/internal/hosted"
	"legacyimport/internal/layout"
	"legacyimport/internal/logging"
	"legacyimport/internal/pipeline"
	"legacyimport/internal/storage"
)

const lastRunKey = "last_import_run"

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New(cfg)

	cmd := os.Args[1]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "xlsx|csv|tsv|html|eml path, s3://bucket/key or gsheet://<id>[/<range>]")
		sheet := fs.String("sheet", "", "worksheet name (default: first sheet)")
		dryRun := fs.Bool("dry-run", false, "transform and deduplicate without writing")
		rejects := fs.String("rejects", "", "write skipped rows to this xlsx file")
		report := fs.String("report", "", "write the report to this .md or .html file")
		target := fs.String("target", cfg.ImportTarget, "db|hosted")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		cols, err := loadLayout(cfg)
		must(err)
		loc, err := cfg.Location()
		must(err)

		db, err := storage.Open(cfg)
		must(err)
		defer db.Close()

		store, err := makeStore(cfg, db, *target, log)
		must(err)
		grid, err := makeGridOptions(ctx, cfg, *input, *sheet)
		must(err)

		transformer := pipeline.NewTransformer(cols, loc, log)
		svc := pipeline.NewImportService(store, db, transformer, cfg.BatchSize, log)
		out, err := svc.Import(ctx, *input, pipeline.ImportOptions{Grid: grid, DryRun: *dryRun})
		must(err)

		sum := pipeline.Summarize(out)
		pipeline.WriteText(os.Stdout, sum)

		if *rejects != "" && len(out.Skipped) > 0 {
			path := outputPath(cfg, *rejects)
			must(pipeline.ExportRejectsToXLSX(out.Skipped, cols, path))
			fmt.Printf("wrote %d skipped rows to %s\n", len(out.Skipped), path)
		}
		if *report != "" {
			path := outputPath(cfg, *report)
			must(pipeline.WriteReport(sum, path))
			fmt.Printf("wrote report to %s\n", path)
		}
		if err := db.SetMetadata(context.WithoutCancel(ctx), lastRunKey, out.RunID); err != nil {
			log.WithError(err).Warn("Failed to store last run id")
		}
	case "columns":
		cols, err := loadLayout(cfg)
		must(err)
		for i, name := range cols.Columns() {
			suffix := ""
			if cols.IsLink(name) {
				suffix = " (link)"
			}
			fmt.Printf("%3d  %s%s\n", i, name, suffix)
		}
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs to show")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg)
		must(err)
		defer db.Close()

		runs, err := db.ListRuns(ctx, *limit)
		must(err)
		last, err := db.GetMetadata(ctx, lastRunKey)
		must(err)
		for _, r := range runs {
			marker := " "
			if last != nil && *last == r.ID {
				marker = "*"
			}
			mode := ""
			if r.DryRun {
				mode = " dry-run"
			}
			fmt.Printf("%s %s  %s  valid=%d skipped=%d imported=%d failed=%d%s  %s\n",
				marker, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.ID,
				r.Valid, r.Skipped, r.Imported, r.Failed, mode, r.Source)
		}
	case "accounts:add":
		emails := os.Args[2:]
		if len(emails) == 0 {
			must(fmt.Errorf("at least one email is required"))
		}
		db, err := storage.Open(cfg)
		must(err)
		defer db.Close()

		added, err := db.AddAccounts(ctx, emails)
		must(err)
		fmt.Printf("accounts added=%d\n", added)
	default:
		usage()
		os.Exit(1)
	}
}

func loadLayout(cfg config.Config) (layout.Layout, error) {
	if cfg.ColumnLayoutPath == "" {
		return layout.Default(), nil
	}
	return layout.Load(cfg.ColumnLayoutPath)
}

func makeStore(cfg config.Config, db *storage.DB, target string, log logrus.FieldLogger) (pipeline.Store, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case config.TargetDB:
		return db, nil
	case config.TargetHosted:
		client, err := hosted.NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported target: %s", target)
	}
}

// makeGridOptions builds only the remote connector the input needs.
func makeGridOptions(ctx context.Context, cfg config.Config, input, sheet string) (pipeline.GridOptions, error) {
	opts := pipeline.GridOptions{Sheet: sheet}
	switch {
	case strings.HasPrefix(input, "s3://"):
		conn, err := s3connector.NewConnector(cfg)
		if err != nil {
			return opts, err
		}
		opts.Objects = conn
	case strings.HasPrefix(input, "gsheet://"):
		conn, err := sheetsconnector.NewConnector(ctx, cfg)
		if err != nil {
			return opts, err
		}
		opts.Sheets = conn
	}
	return opts, nil
}

// outputPath places bare file names under OUTPUT_DIR.
func outputPath(cfg config.Config, name string) string {
	if filepath.Dir(name) == "." && !strings.HasPrefix(name, ".") {
		return filepath.Join(cfg.OutputDir, name)
	}
	return name
}

func usage() {
	fmt.Println("usage: legacyimport <command>")
	fmt.Println("commands:")
	fmt.Println("  import --input=SRC [--sheet=NAME] [--dry-run] [--rejects=FILE.xlsx] [--report=FILE.md|FILE.html] [--target=db|hosted]")
	fmt.Println("  columns")
	fmt.Println("  runs [--limit=20]")
	fmt.Println("  accounts:add EMAIL...")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
