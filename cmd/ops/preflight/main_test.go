package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}

	if opts.apiURL != "" {
		t.Errorf("apiURL = %q, want empty", opts.apiURL)
	}
	if opts.timeout != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", opts.timeout)
	}
	if opts.skipDB {
		t.Error("skipDB = true, want false")
	}
	if opts.writeEnvExample != "" {
		t.Errorf("writeEnvExample = %q, want empty", opts.writeEnvExample)
	}
}

func TestParseOptions_AllFlags(t *testing.T) {
	opts, err := parseOptions([]string{
		"--api-url=http://localhost:9090",
		"--timeout=3s",
		"--skip-db",
		"--write-env-example=out.env",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}

	if opts.apiURL != "http://localhost:9090" {
		t.Errorf("apiURL = %q", opts.apiURL)
	}
	if opts.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", opts.timeout)
	}
	if !opts.skipDB {
		t.Error("skipDB = false, want true")
	}
	if opts.writeEnvExample != "out.env" {
		t.Errorf("writeEnvExample = %q", opts.writeEnvExample)
	}
}

func TestParseOptions_UnknownFlag(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseOptions([]string{"--no-such-flag"}, &stderr); err == nil {
		t.Fatal("parseOptions accepted an unknown flag")
	}
	if !strings.Contains(stderr.String(), "no-such-flag") {
		t.Errorf("stderr = %q, want mention of the bad flag", stderr.String())
	}
}

func TestPrintSummary(t *testing.T) {
	results := []CheckResult{
		{Name: "config", Valid: true, Message: "loaded"},
		{Name: "database", Valid: false, Message: "connection failed: refused"},
		{Name: "api", Valid: true, Message: "healthy"},
	}

	var out bytes.Buffer
	failed := printSummary(&out, results)

	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	rendered := out.String()
	if !strings.Contains(rendered, "[PASS] config") {
		t.Errorf("summary missing config pass line:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[FAIL] database") {
		t.Errorf("summary missing database fail line:\n%s", rendered)
	}
	if !strings.Contains(rendered, "connection failed: refused") {
		t.Errorf("summary missing failure message:\n%s", rendered)
	}
}

func TestPrintSummary_AllPass(t *testing.T) {
	results := []CheckResult{
		{Name: "config", Valid: true, Message: "loaded"},
	}

	var out bytes.Buffer
	if failed := printSummary(&out, results); failed != 0 {
		t.Fatalf("failed = %d, want 0", failed)
	}
	if strings.Contains(out.String(), "FAIL") {
		t.Errorf("summary contains FAIL with all checks passing:\n%s", out.String())
	}
}
