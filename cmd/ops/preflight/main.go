// Package main implements the preflight CLI for the Climate Stats service.
//
// Preflight verifies a deployment environment before the API starts serving:
// the configuration loads and validates, the database is reachable and
// carries the expected schema, and (optionally) an already-running instance
// answers its health endpoint. It can also emit a documented env example
// derived from the configuration struct itself, so the template never drifts
// from the code.
//
// Usage:
//
//	go run ./cmd/ops/preflight
//	go run ./cmd/ops/preflight --api-url=http://localhost:8080
//	go run ./cmd/ops/preflight --write-env-example=.env.example
//
// Exit code 0 means every check passed; 1 means at least one failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// options holds the parsed command-line flags.
type options struct {
	// apiURL is the base URL of a running API instance. The health check is
	// skipped when empty, since preflight usually runs before the service.
	apiURL string

	// timeout bounds each individual check.
	timeout time.Duration

	// skipDB disables the database connectivity check.
	skipDB bool

	// writeEnvExample, when set, switches the tool into template-generation
	// mode: write the env example to this path and exit.
	writeEnvExample string
}

// parseOptions parses command-line flags from args. Errors are reported on
// stderr by the flag package itself.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("preflight", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.apiURL, "api-url", "", "Base URL of a running API instance to health-check (skipped when empty)")
	fs.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Per-check timeout")
	fs.BoolVar(&opts.skipDB, "skip-db", false, "Skip the database connectivity check")
	fs.StringVar(&opts.writeEnvExample, "write-env-example", "", "Write a documented env example to this path and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Climate Stats Preflight\n\n")
		fmt.Fprintf(stderr, "Verifies configuration, database connectivity, and service health\n")
		fmt.Fprintf(stderr, "before a deployment goes live.\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  preflight [--api-url=URL] [--timeout=15s] [--skip-db]\n")
		fmt.Fprintf(stderr, "  preflight --write-env-example=.env.example\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, opts, logger))
}

// run executes the selected mode and returns the process exit code.
func run(ctx context.Context, opts *options, logger *slog.Logger) int {
	if opts.writeEnvExample != "" {
		if err := WriteEnvExample(opts.writeEnvExample); err != nil {
			logger.Error("failed to write env example", "path", opts.writeEnvExample, "error", err)
			return 1
		}
		logger.Info("env example written", "path", opts.writeEnvExample)
		return 0
	}

	checker := NewChecker(opts.timeout)

	var results []CheckResult

	cfg, res := checker.CheckConfig()
	results = append(results, res)

	// Without a loaded config there is no DSN to probe.
	if cfg != nil && !opts.skipDB {
		results = append(results, checker.CheckDatabase(ctx, cfg.Database.URL.Unmask()))
	}

	if opts.apiURL != "" {
		results = append(results, checker.CheckAPIHealth(ctx, opts.apiURL))
	}

	failed := printSummary(os.Stderr, results)
	if failed > 0 {
		logger.Error("preflight failed", "failed", failed, "total", len(results))
		return 1
	}
	logger.Info("preflight passed", "checks", len(results))
	return 0
}

// printSummary renders one line per check and returns the failure count.
func printSummary(w io.Writer, results []CheckResult) int {
	failed := 0
	fmt.Fprintln(w)
	for _, r := range results {
		mark := "PASS"
		if !r.Valid {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "  [%s] %-8s %s\n", mark, r.Name, r.Message)
	}
	fmt.Fprintln(w)
	return failed
}
