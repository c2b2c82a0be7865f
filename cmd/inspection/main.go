// Command inspection analyses attribute gage R&R results stored in SQLite:
// it prints summaries, writes report bundles, serves the HTTP viewer and
// manages schema migrations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/banshee-data/inspection.report/internal/api"
	"github.com/banshee-data/inspection.report/internal/config"
	"github.com/banshee-data/inspection.report/internal/db"
	"github.com/banshee-data/inspection.report/internal/report"
	"github.com/banshee-data/inspection.report/internal/rr"
	"github.com/banshee-data/inspection.report/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

const usage = `Usage: inspection [-config file] [-db-path path] <command> [args]

Commands:
  analyze <test_id> [-json]     Print the R&R summary of a test
  report <test_id> [-out dir]   Write summary, charts, PDF, dashboard and CSV
  import <test_id> -operator N  Record a run from an answers CSV
  serve [-listen addr]          Serve the JSON API and dashboards
  migrate <action>              Manage schema migrations (see 'migrate help')
  version                       Print build information
`

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("inspection", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	configPath := fs.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	dbPath := fs.String("db-path", "", "SQLite database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.DefaultAppConfig()
	if *configPath != "" {
		loaded, err := config.LoadAppConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "analyze":
		return runAnalyze(ctx, cfg, rest, out)
	case "report":
		return runReport(ctx, cfg, rest, out)
	case "import":
		return runImport(ctx, cfg, rest, in, out)
	case "serve":
		return runServe(ctx, cfg, rest, out)
	case "migrate":
		return db.RunMigrateCommand(rest, cfg.GetDBPath(), in, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		fs.Usage()
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// parseTestID reads the positional test id, allowing flags before or after it.
func parseTestID(fs *flag.FlagSet, args []string) (int64, error) {
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return 0, fmt.Errorf("%s: missing test id: %w", fs.Name(), errUsage)
	}
	id, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%s: invalid test id %q", fs.Name(), rest[0])
	}
	if err := fs.Parse(rest[1:]); err != nil {
		return 0, err
	}
	return id, nil
}

func openDB(cfg *config.AppConfig) (*db.DB, error) {
	d, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return d, nil
}

func runAnalyze(ctx context.Context, cfg *config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(out)
	asJSON := fs.Bool("json", false, "Print the full analysis as JSON")
	top := fs.Int("top", cfg.GetTopConfusing(), "Number of confusing images to list")
	testID, err := parseTestID(fs, args)
	if err != nil {
		return err
	}

	d, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	a, err := rr.NewEngine(d).Analyze(ctx, testID)
	if errors.Is(err, rr.ErrNoData) {
		fmt.Fprint(out, report.Summary(nil, *top))
		return nil
	}
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	fmt.Fprint(out, report.Summary(a, *top))
	return nil
}

func runReport(ctx context.Context, cfg *config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(out)
	outDir := fs.String("out", cfg.GetOutputDir(), "Directory receiving the report run folder")
	testID, err := parseTestID(fs, args)
	if err != nil {
		return err
	}
	cfg.OutputDir = outDir

	d, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	test, err := d.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	a, err := rr.NewEngine(d).Analyze(ctx, testID)
	if errors.Is(err, rr.ErrNoData) {
		fmt.Fprint(out, report.Summary(nil, 0))
		return nil
	}
	if err != nil {
		return err
	}

	results, err := d.ListResults(ctx, testID, db.ResultFilter{})
	if err != nil {
		return err
	}
	m, err := report.NewWriter(cfg).Generate(a, test.Name, results)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", m.Dir)
	for _, f := range m.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(out)
	listen := fs.String("listen", cfg.GetListen(), "Listen address")
	debug := fs.Bool("debug", cfg.GetEnableDebug(), "Mount /debug/ admin routes (tailsql, backup)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return errors.New("listen address is required")
	}

	d, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	mux := api.NewServer(d, cfg.GetTopConfusing()).ServeMux()
	if *debug {
		d.AttachAdminRoutes(mux)
	}
	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Printf("serving on %s", *listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server stopped")
	return nil
}
