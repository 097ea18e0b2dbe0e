package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, applies defaults and
// validates the result. Every unset required variable and every unparsable
// value is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}

	var errs []error
	for _, f := range envFields(reflect.ValueOf(cfg).Elem()) {
		if err := f.load(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envField is one settable leaf field and its struct tags.
type envField struct {
	value    reflect.Value
	name     string // env
	alt      string // envAlt
	fallback string // default
	required bool
}

// envFields walks nested structs and returns every field with an env tag.
func envFields(v reflect.Value) []envField {
	var out []envField
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			out = append(out, envFields(fv)...)
			continue
		}
		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		out = append(out, envField{
			value:    fv,
			name:     name,
			alt:      sf.Tag.Get("envAlt"),
			fallback: sf.Tag.Get("default"),
			required: sf.Tag.Get("required") == "true",
		})
	}
	return out
}

// lookup returns the primary variable, then the alternate, then the default.
func (f envField) lookup() (string, bool) {
	if v := os.Getenv(f.name); v != "" {
		return v, true
	}
	if f.alt != "" {
		if v := os.Getenv(f.alt); v != "" {
			return v, true
		}
	}
	return f.fallback, false
}

func (f envField) load() error {
	raw, fromEnv := f.lookup()
	if !fromEnv && f.required {
		return fmt.Errorf("required environment variable %s is not set", f.name)
	}
	if raw == "" {
		return nil
	}
	if err := assign(f.value.Addr().Interface(), raw); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", f.name, raw, err)
	}
	return nil
}

// assign parses raw into the field behind ptr.
func assign(ptr any, raw string) error {
	var err error
	switch p := ptr.(type) {
	case *string:
		*p = raw
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *int:
		*p, err = strconv.Atoi(raw)
	case *int64:
		*p, err = strconv.ParseInt(raw, 10, 64)
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	case *[]string:
		*p = splitList(raw)
	default:
		err = fmt.Errorf("unsupported field type %T", ptr)
	}
	return err
}

// splitList splits a comma-separated value and drops empty entries.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the loaded values and reports every failed rule at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	// Pool settings only matter with a database; otherwise the memory store runs.
	if db := c.Database; db.URL != "" {
		check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
		check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	check(c.Upload.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")

	check(c.Clean.MaxConcurrent > 0, "CLEAN_MAX_CONCURRENT must be positive")
	check(c.Clean.MaxWaitTime > 0, "CLEAN_MAX_WAIT_TIME must be positive")
	check(c.Clean.Timeout > 0, "CLEAN_TIMEOUT must be positive")
	check(len(c.Clean.IdentityColumns) > 0, "CLEAN_IDENTITY_COLUMNS must name at least one column")

	dirsSet := c.Storage.UploadDir != "" && c.Storage.CleanedDir != ""
	check(dirsSet, "STORAGE_UPLOAD_DIR and STORAGE_CLEANED_DIR must be set")
	if dirsSet {
		check(filepath.Clean(c.Storage.UploadDir) != filepath.Clean(c.Storage.CleanedDir),
			"STORAGE_UPLOAD_DIR and STORAGE_CLEANED_DIR must differ")
	}

	if c.Rate.Enabled {
		check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		check(c.Rate.CleanLimit > 0, "RATE_LIMIT_CLEAN must be positive when rate limiting is enabled")
	}

	check(len(c.Security.JWTSecret) >= 32, "JWT_SECRET must be at least 32 characters")
	check(c.Security.TokenTTL > 0, "JWT_TOKEN_TTL must be positive")
	for _, cidr := range c.Security.TrustedProxies {
		_, _, err := net.ParseCIDR(cidr)
		check(err == nil, "TRUSTED_PROXIES entry %q is not a CIDR", cidr)
	}

	check(slices.Contains(logLevels, strings.ToLower(c.Logging.Level)),
		"LOG_LEVEL (%q) must be one of: %s", c.Logging.Level, strings.Join(logLevels, ", "))
	check(slices.Contains(logFormats, strings.ToLower(c.Logging.Format)),
		"LOG_FORMAT (%q) must be one of: %s", c.Logging.Format, strings.Join(logFormats, ", "))

	if len(problems) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL and JWT secret are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	db := "[MEMORY]"
	if c.Database.URL != "" {
		db = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		db, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Clean: {MaxConcurrent: %d, Timeout: %s, IdentityColumns: %v}, ",
		c.Clean.MaxConcurrent, c.Clean.Timeout, c.Clean.IdentityColumns))
	b.WriteString(fmt.Sprintf("Storage: {UploadDir: %q, CleanedDir: %q}, ",
		c.Storage.UploadDir, c.Storage.CleanedDir))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString("Security: {JWTSecret: [MASKED]}, ")
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
