// loader.go implements the configuration loading lifecycle for the Climate
// Stats service.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _FILE suffix variables and resolve the referenced
//     secret files, injecting the contents back into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid
// debugging. It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretFileSuffix is the environment variable suffix used to identify secret
// file pointer variables. For example, DATABASE_URL_FILE points to the
// mounted file holding the DATABASE_URL value. This is the convention used by
// Docker and Kubernetes secret mounts.
const secretFileSuffix = "_FILE"

// envLookup is a function type for looking up environment variables.
// It matches the signature of os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet is a function type for setting environment variables.
// It matches the signature of os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// environ is a function type for listing all environment variables.
// It matches the signature of os.Environ and allows injection for testing.
type environ func() []string

// readFile is a function type for reading a file's contents.
// It matches the signature of os.ReadFile and allows injection for testing.
type readFile func(name string) ([]byte, error)

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
	readFile  readFile
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		readFile:  os.ReadFile,
	}
}

// LoadConfig loads and validates the Climate Stats configuration.
//
// It performs the following steps in order:
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present (non-fatal if missing).
//  3. Scans environment for _FILE variables and injects the referenced file
//     contents as environment variables.
//  4. Processes envconfig tags to populate the Config struct.
//  5. Populates Config.Build from linker-injected variables.
//  6. Validates the Config struct.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

// loadConfigWithDeps is the internal implementation of LoadConfig that accepts
// injectable dependencies for testing.
func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	// Step 1: Enforce UTC timezone to prevent drift bugs.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent).
	// godotenv.Load() will silently succeed if no .env file exists in the
	// working directory. It does NOT override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Resolve _FILE secret pointers into the environment.
	if err := resolveSecretFiles(deps); err != nil {
		return nil, err
	}

	// Step 4: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig will use the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 5: Populate build metadata from linker-injected variables.
	cfg.Build = NewBuildInfo()

	// Step 6: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSecretFiles scans the environment for variables ending in _FILE,
// reads the files they point to, and injects the contents back into the
// environment so that envconfig can process them.
//
// For example, if DATABASE_URL_FILE=/run/secrets/database_url is set, this
// function will:
//  1. Derive the target env var name: DATABASE_URL
//  2. Read the file at /run/secrets/database_url
//  3. Set DATABASE_URL=<file contents> in the environment
//
// If the target variable is already set in the environment (via direct env
// var or .env file), the file resolution is skipped for that variable. This
// respects the priority chain: OS Environment > Dotenv > Secret Files.
//
// Trailing newlines are stripped from file contents, since secret mounts
// commonly terminate values with a newline.
func resolveSecretFiles(deps loaderDeps) error {
	for _, envEntry := range deps.environ() {
		// Each entry is "KEY=VALUE"
		eqIdx := strings.IndexByte(envEntry, '=')
		if eqIdx < 0 {
			continue
		}
		key := envEntry[:eqIdx]

		if !strings.HasSuffix(key, secretFileSuffix) {
			continue
		}

		// Derive the target env var name by stripping the _FILE suffix.
		targetEnvVar := strings.TrimSuffix(key, secretFileSuffix)
		if targetEnvVar == "" {
			continue
		}

		// Skip if the target variable is already set (priority: Env > File).
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}

		// Extract the file path from the variable value.
		path := envEntry[eqIdx+1:]
		if path == "" {
			continue // Skip empty paths
		}

		contents, err := deps.readFile(path)
		if err != nil {
			return &ConfigError{
				Type:    ErrSecretFile,
				Message: fmt.Sprintf("failed to read secret file for %s", targetEnvVar),
				Err:     err,
			}
		}

		value := strings.TrimRight(string(contents), "\r\n")
		if err := deps.setEnv(targetEnvVar, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretFile,
				Message: fmt.Sprintf("failed to set resolved value for %s", targetEnvVar),
				Err:     err,
			}
		}
	}

	return nil
}
