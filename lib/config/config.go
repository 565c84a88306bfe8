// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for trustplane.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// TrustDomain is the SPIFFE trust domain of issued identities,
	// e.g. "prod.example.com".
	TrustDomain string `yaml:"trust_domain"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Identity configures identity registration defaults.
	Identity IdentityConfig `yaml:"identity"`

	// Credentials configures the credential issuer.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Audit configures the audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Logging configures the slog handler of the trustplane binary.
	Logging LoggingConfig `yaml:"logging"`

	// Bundles are identity and policy files applied at startup, in
	// order.
	Bundles []string `yaml:"bundles"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	TrustDomain string             `yaml:"trust_domain,omitempty"`
	Paths       *PathsConfig       `yaml:"paths,omitempty"`
	Credentials *CredentialsConfig `yaml:"credentials,omitempty"`
	Audit       *AuditOverrides    `yaml:"audit,omitempty"`
	Logging     *LoggingConfig     `yaml:"logging,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for trustplane data.
	Root string `yaml:"root"`

	// Keys is the directory holding the credential keyring.
	Keys string `yaml:"keys"`

	// AuditDB is the SQLite database the audit trail persists to
	// when Audit.Persist is set.
	AuditDB string `yaml:"audit_db"`
}

// IdentityConfig configures identity registration.
type IdentityConfig struct {
	// DefaultTrust maps identity kind to the trust level new
	// identities of that kind start at, e.g. {workload: low}.
	DefaultTrust map[string]string `yaml:"default_trust"`
}

// CredentialsConfig configures the credential issuer.
type CredentialsConfig struct {
	// Issuer is the token "iss" claim. Default: trustplane
	Issuer string `yaml:"issuer"`

	// Audience is the token "aud" claim. Default: trustplane-api
	Audience string `yaml:"audience"`

	// DefaultTTL applies when a request names no TTL. Default: 1h
	DefaultTTL string `yaml:"default_ttl"`

	// DocumentCeilings and TokenCeilings override the per-kind
	// maximum lifetimes, e.g. {ai_agent: 2h}.
	DocumentCeilings map[string]string `yaml:"document_ceilings"`
	TokenCeilings    map[string]string `yaml:"token_ceilings"`

	// SealRecipients are age recipients the keyring is encrypted to.
	// Empty stores the keyring as plain 0600 files.
	SealRecipients []string `yaml:"seal_recipients"`

	// SealIdentityFile holds the AGE-SECRET-KEY that opens a sealed
	// keyring. Required when SealRecipients is set.
	SealIdentityFile string `yaml:"seal_identity_file"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Persist writes every event to Paths.AuditDB and reloads the
	// chain at startup. Default: false (development), true (production)
	Persist bool `yaml:"persist"`

	// PoolSize is the number of SQLite connections. Default: 4
	PoolSize int `yaml:"pool_size"`

	// ExportCompression is the default for "trustplane audit export":
	// none, lz4, or zstd. Default: zstd
	ExportCompression string `yaml:"export_compression"`
}

// AuditOverrides is AuditConfig with an explicit-presence Persist.
type AuditOverrides struct {
	Persist           *bool  `yaml:"persist,omitempty"`
	PoolSize          int    `yaml:"pool_size,omitempty"`
	ExportCompression string `yaml:"export_compression,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: debug (development)
	Level string `yaml:"level"`

	// Format is json, text, or auto (text on a terminal, json
	// otherwise). Default: json
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "trustplane")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:    defaultRoot,
			Keys:    filepath.Join(defaultRoot, "keys"),
			AuditDB: filepath.Join(defaultRoot, "audit.db"),
		},
		Credentials: CredentialsConfig{
			Issuer:     "trustplane",
			Audience:   "trustplane-api",
			DefaultTTL: "1h",
		},
		Audit: AuditConfig{
			Persist:           false,
			PoolSize:          4,
			ExportCompression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
		},
	}
}

// Load loads configuration from the TRUSTPLANE_CONFIG environment
// variable. There are no fallbacks: if TRUSTPLANE_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("TRUSTPLANE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TRUSTPLANE_CONFIG environment variable not set; " +
			"set it to the path of your trustplane.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: durable audit, quieter logs.
		if overrides == nil {
			persist := true
			overrides = &ConfigOverrides{
				Audit:   &AuditOverrides{Persist: &persist},
				Logging: &LoggingConfig{Level: "info"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.TrustDomain != "" {
		c.TrustDomain = overrides.TrustDomain
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Keys != "" {
			c.Paths.Keys = overrides.Paths.Keys
		}
		if overrides.Paths.AuditDB != "" {
			c.Paths.AuditDB = overrides.Paths.AuditDB
		}
	}

	if overrides.Credentials != nil {
		if overrides.Credentials.Issuer != "" {
			c.Credentials.Issuer = overrides.Credentials.Issuer
		}
		if overrides.Credentials.Audience != "" {
			c.Credentials.Audience = overrides.Credentials.Audience
		}
		if overrides.Credentials.DefaultTTL != "" {
			c.Credentials.DefaultTTL = overrides.Credentials.DefaultTTL
		}
		for kind, ceiling := range overrides.Credentials.DocumentCeilings {
			if c.Credentials.DocumentCeilings == nil {
				c.Credentials.DocumentCeilings = make(map[string]string)
			}
			c.Credentials.DocumentCeilings[kind] = ceiling
		}
		for kind, ceiling := range overrides.Credentials.TokenCeilings {
			if c.Credentials.TokenCeilings == nil {
				c.Credentials.TokenCeilings = make(map[string]string)
			}
			c.Credentials.TokenCeilings[kind] = ceiling
		}
		if len(overrides.Credentials.SealRecipients) > 0 {
			c.Credentials.SealRecipients = overrides.Credentials.SealRecipients
		}
		if overrides.Credentials.SealIdentityFile != "" {
			c.Credentials.SealIdentityFile = overrides.Credentials.SealIdentityFile
		}
	}

	if overrides.Audit != nil {
		if overrides.Audit.Persist != nil {
			c.Audit.Persist = *overrides.Audit.Persist
		}
		if overrides.Audit.PoolSize != 0 {
			c.Audit.PoolSize = overrides.Audit.PoolSize
		}
		if overrides.Audit.ExportCompression != "" {
			c.Audit.ExportCompression = overrides.Audit.ExportCompression
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TRUSTPLANE_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TRUSTPLANE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Keys = expandVars(c.Paths.Keys, vars)
	c.Paths.AuditDB = expandVars(c.Paths.AuditDB, vars)
	c.Credentials.SealIdentityFile = expandVars(c.Credentials.SealIdentityFile, vars)
	for index, bundle := range c.Bundles {
		c.Bundles[index] = expandVars(bundle, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.TrustDomain == "" {
		errs = append(errs, fmt.Errorf("trust_domain is required"))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Paths.Keys == "" {
		errs = append(errs, fmt.Errorf("paths.keys is required"))
	}

	if c.Audit.Persist && c.Paths.AuditDB == "" {
		errs = append(errs, fmt.Errorf("paths.audit_db is required when audit.persist is set"))
	}

	if _, err := c.Credentials.DefaultTTLDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurations("credentials.document_ceilings", c.Credentials.DocumentCeilings); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurations("credentials.token_ceilings", c.Credentials.TokenCeilings); err != nil {
		errs = append(errs, err)
	}

	if len(c.Credentials.SealRecipients) > 0 && c.Credentials.SealIdentityFile == "" {
		errs = append(errs, fmt.Errorf("credentials.seal_identity_file is required when seal_recipients is set"))
	}

	if c.Audit.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("audit.pool_size must not be negative"))
	}

	compressionValues := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressionValues, c.Audit.ExportCompression) {
		errs = append(errs, fmt.Errorf("audit.export_compression must be one of: %v", compressionValues))
	}

	levelValues := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levelValues, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levelValues))
	}

	formatValues := []string{"json", "text", "auto"}
	if !slices.Contains(formatValues, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formatValues))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DefaultTTLDuration parses DefaultTTL. An empty value yields zero,
// which the issuer replaces with its own default.
func (c CredentialsConfig) DefaultTTLDuration() (time.Duration, error) {
	if c.DefaultTTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return 0, fmt.Errorf("credentials.default_ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("credentials.default_ttl must be positive, got %s", c.DefaultTTL)
	}
	return ttl, nil
}

// ParseDurations parses a table of positive durations. field names
// the table in error messages.
func ParseDurations(field string, table map[string]string) (map[string]time.Duration, error) {
	parsed := make(map[string]time.Duration, len(table))
	for key, value := range table {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", field, key, err)
		}
		if duration <= 0 {
			return nil, fmt.Errorf("%s.%s must be positive, got %s", field, key, value)
		}
		parsed[key] = duration
	}
	return parsed, nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root, c.Paths.Keys}
	if c.Audit.Persist && c.Paths.AuditDB != "" {
		paths = append(paths, filepath.Dir(c.Paths.AuditDB))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
