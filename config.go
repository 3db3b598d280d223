package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Source         SourceConfig      `toml:"source"`
	Target         TargetConfig      `toml:"target"`
	Schema         string            `toml:"schema"`
	OnSchemaExists string            `toml:"on_schema_exists"` // error|recreate|reuse
	SchemaOnly     bool              `toml:"schema_only"`
	DataOnly       bool              `toml:"data_only"`
	Workers        int               `toml:"workers"`
	BatchSize      int               `toml:"batch_size"`
	OnParseError   string            `toml:"on_parse_error"` // skip|abort
	Translation    TranslationConfig `toml:"translation"`
	Hooks          HooksConfig       `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

// SourceConfig identifies the source engine. DSN is a connection string for
// mysql and sqlite sources and a file path for dump sources.
type SourceConfig struct {
	Type    string `toml:"type"` // mysql|sqlite|dump
	DSN     string `toml:"dsn"`
	Charset string `toml:"charset"` // MySQL connection character set (default: "utf8mb4")
}

type TargetConfig struct {
	DSN string `toml:"dsn"`
}

type HooksConfig struct {
	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
	AfterAll   []string `toml:"after_all"`
}

// TranslationConfig controls the lossy parts of the DDL translation.
type TranslationConfig struct {
	TinyInt1AsBoolean     bool   `toml:"tinyint1_as_boolean"`
	WidenUnsignedIntegers bool   `toml:"widen_unsigned_integers"`
	SerialNotNull         bool   `toml:"serial_not_null"`
	UnrecognizedClauses   string `toml:"unrecognized_clauses"` // skip|error
	ResetSequences        bool   `toml:"reset_sequences"`
}

func (c TranslationConfig) options(workers int) TranslateOptions {
	return TranslateOptions{
		TinyInt1AsBoolean:     c.TinyInt1AsBoolean,
		WidenUnsignedIntegers: c.WidenUnsignedIntegers,
		SerialNotNull:         c.SerialNotNull,
		UnrecognizedClauses:   c.UnrecognizedClauses,
		Workers:               workers,
	}
}

// loadConfig reads a TOML config file and returns a MigrationConfig with defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		OnSchemaExists: "error",
		BatchSize:      1000,
		OnParseError:   "skip",
		Translation:    defaultTranslationConfig(),
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MigrationConfig) validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}

	c.Schema = strings.TrimSpace(c.Schema)
	if c.Schema == "" {
		return fmt.Errorf("schema is required")
	}

	switch c.OnSchemaExists {
	case "error", "recreate", "reuse":
	default:
		return fmt.Errorf("on_schema_exists must be one of: error, recreate, reuse")
	}
	switch c.OnParseError {
	case "skip", "abort":
	default:
		return fmt.Errorf("on_parse_error must be one of: skip, abort")
	}
	switch c.Translation.UnrecognizedClauses {
	case "skip", "error":
	default:
		return fmt.Errorf("translation.unrecognized_clauses must be one of: skip, error")
	}

	if c.SchemaOnly && c.DataOnly {
		return fmt.Errorf("schema_only and data_only are mutually exclusive")
	}

	if c.Source.Type == "" {
		return fmt.Errorf("source.type is required (must be mysql, sqlite or dump)")
	}
	if c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required")
	}
	if c.Source.Charset == "" {
		c.Source.Charset = "utf8mb4"
	}

	if c.Source.Type == "dump" {
		if !c.SchemaOnly {
			return fmt.Errorf("dump sources carry no readable rows; set schema_only = true")
		}
		c.Source.DSN = c.resolvePath(c.Source.DSN)
	} else {
		src, err := newSourceDB(c.Source.Type)
		if err != nil {
			return err
		}
		if c.Source.Type != "mysql" && c.Source.Charset != "utf8mb4" {
			return fmt.Errorf("source.charset is a MySQL-only option")
		}
		if err := src.ValidateTranslation(c.Translation); err != nil {
			return err
		}
		if max := src.MaxWorkers(); max > 0 && c.Workers > max {
			c.Workers = max
		}
	}

	if c.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required")
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) || c.configDir == "" {
		return p
	}
	return filepath.Join(c.configDir, p)
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

func defaultTranslationConfig() TranslationConfig {
	return TranslationConfig{
		WidenUnsignedIntegers: true,
		UnrecognizedClauses:   "skip",
		ResetSequences:        true,
	}
}
