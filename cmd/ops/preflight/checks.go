package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"climatestats/internal/config"
)

// CheckResult holds the outcome of one preflight check. It provides both a
// boolean pass/fail signal and a human-readable message for the summary.
type CheckResult struct {
	// Name identifies the check in the summary output.
	Name string

	// Valid is true if the check passed.
	Valid bool

	// Message describes what was verified, or why the check failed.
	Message string
}

// HTTPClient is the interface used by checks that make outbound HTTP calls.
// It enables injecting mock transports in tests without real network calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DatabaseConnector abstracts database probing for testing. The production
// implementation opens real connections; tests inject function-backed mocks.
type DatabaseConnector interface {
	// Connect verifies the DSN is reachable and the credentials are valid.
	// Implementations must close any connection before returning.
	Connect(ctx context.Context, dsn string) error

	// SchemaReady reports whether the service schema has been applied.
	SchemaReady(ctx context.Context, dsn string) (bool, error)
}

// PgxConnector is the production DatabaseConnector. Each probe opens a
// single short-lived connection and closes it before returning; preflight
// never holds connections open.
type PgxConnector struct{}

// Connect establishes a connection to verify reachability and credentials.
func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// SchemaReady checks for the sensors table, the root of the service schema.
func (PgxConnector) SchemaReady(ctx context.Context, dsn string) (bool, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	var regclass *string
	if err := conn.QueryRow(ctx, `SELECT to_regclass('public.sensors')::text`).Scan(&regclass); err != nil {
		return false, err
	}
	return regclass != nil, nil
}

// Checker runs preflight checks with injectable dependencies.
type Checker struct {
	httpClient HTTPClient
	db         DatabaseConnector
	timeout    time.Duration
}

// NewChecker creates a Checker with production dependencies: a real HTTP
// client and a real pgx connector, both bounded by the given per-check
// timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		httpClient: &http.Client{Timeout: timeout},
		db:         PgxConnector{},
		timeout:    timeout,
	}
}

// NewCheckerWithDeps creates a Checker with injected dependencies for testing.
func NewCheckerWithDeps(httpClient HTTPClient, db DatabaseConnector, timeout time.Duration) *Checker {
	return &Checker{
		httpClient: httpClient,
		db:         db,
		timeout:    timeout,
	}
}

// CheckConfig loads and validates the service configuration exactly the way
// cmd/api does, returning the loaded config for use by later checks.
func (c *Checker) CheckConfig() (*config.Config, CheckResult) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, CheckResult{Name: "config", Valid: false, Message: err.Error()}
	}
	return cfg, CheckResult{
		Name:    "config",
		Valid:   true,
		Message: fmt.Sprintf("loaded for environment %q (service %s)", cfg.Environment, cfg.Service),
	}
}

// CheckDatabase verifies the database is reachable and reports whether the
// schema has been applied. A missing schema is not a failure: the service
// applies it on first boot when DB_AUTO_MIGRATE is enabled.
func (c *Checker) CheckDatabase(ctx context.Context, dsn string) CheckResult {
	if strings.TrimSpace(dsn) == "" {
		return CheckResult{Name: "database", Valid: false, Message: "DATABASE_URL is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.Connect(ctx, dsn); err != nil {
		return CheckResult{Name: "database", Valid: false, Message: fmt.Sprintf("connection failed: %v", err)}
	}

	ready, err := c.db.SchemaReady(ctx, dsn)
	if err != nil {
		return CheckResult{Name: "database", Valid: false, Message: fmt.Sprintf("schema check failed: %v", err)}
	}
	if !ready {
		return CheckResult{
			Name:    "database",
			Valid:   true,
			Message: "reachable; schema missing, applied on first boot when DB_AUTO_MIGRATE=true",
		}
	}
	return CheckResult{Name: "database", Valid: true, Message: "reachable, schema present"}
}

// CheckAPIHealth probes the health endpoint of a running instance and
// requires it to report an overall "ok" status.
func (c *Checker) CheckAPIHealth(ctx context.Context, baseURL string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CheckResult{Name: "api", Valid: false, Message: fmt.Sprintf("invalid URL: %v", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CheckResult{Name: "api", Valid: false, Message: fmt.Sprintf("not reachable: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return CheckResult{Name: "api", Valid: false, Message: fmt.Sprintf("failed to read health response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return CheckResult{
			Name:    "api",
			Valid:   false,
			Message: fmt.Sprintf("health returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return CheckResult{Name: "api", Valid: false, Message: fmt.Sprintf("malformed health response: %v", err)}
	}
	if health.Status != "ok" {
		return CheckResult{Name: "api", Valid: false, Message: "service reports status " + health.Status}
	}
	return CheckResult{Name: "api", Valid: true, Message: "healthy at " + baseURL}
}

// ---------------------------------------------------------------------------
// Env example generation
// ---------------------------------------------------------------------------

// envEntry describes one environment variable discovered on the Config
// struct via its envconfig, default, and validate tags.
type envEntry struct {
	Key      string
	Default  string
	Required bool
	OneOf    string
	Secret   bool
}

// collectEnvEntries walks a configuration struct type in declaration order,
// recursing into untagged nested structs, and returns one entry per
// envconfig-tagged leaf field. Fields without an envconfig tag (such as
// build metadata injected via ldflags) do not appear.
func collectEnvEntries(t reflect.Type) []envEntry {
	var entries []envEntry
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		key := f.Tag.Get("envconfig")
		if key == "" {
			if f.Type.Kind() == reflect.Struct {
				entries = append(entries, collectEnvEntries(f.Type)...)
			}
			continue
		}

		entry := envEntry{
			Key:     key,
			Default: f.Tag.Get("default"),
			Secret:  f.Type.Name() == "SecretString",
		}
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			switch {
			case rule == "required":
				entry.Required = true
			case strings.HasPrefix(rule, "oneof="):
				entry.OneOf = strings.TrimPrefix(rule, "oneof=")
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// WriteEnvExample renders a documented env file template from the Config
// struct's tags and writes it to path. Defaults are filled in; required
// settings without a default are left blank for the operator.
func WriteEnvExample(path string) error {
	entries := collectEnvEntries(reflect.TypeOf(config.Config{}))

	var b strings.Builder
	b.WriteString("# Climate Stats API environment configuration.\n")
	b.WriteString("# Generated by preflight --write-env-example.\n")
	b.WriteString("# Values shown are the defaults; required settings without a default are blank.\n\n")

	for _, e := range entries {
		var notes []string
		if e.Required {
			notes = append(notes, "required")
		}
		if e.OneOf != "" {
			notes = append(notes, "one of: "+e.OneOf)
		}
		if e.Secret {
			notes = append(notes, "secret, may be supplied via "+e.Key+"_FILE")
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, "# %s\n", strings.Join(notes, "; "))
		}
		fmt.Fprintf(&b, "%s=%s\n\n", e.Key, e.Default)
	}

	return os.WriteFile(path, []byte(b.String()), 0o600)
}
