package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"db_schema_filesync/internal/archive"
)

// Config is the YAML file the tool is pointed at with -config.
type Config struct {
	// DSN is a go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/dbname.
	DSN string `yaml:"dsn"`
	// BaseDir holds the table/, trigger/ and procedure/ directories.
	BaseDir  string `yaml:"base_dir"`
	LogLevel string `yaml:"log_level"`
	// DefaultTriggerLabel, when set, adopts untagged text found in live
	// trigger bodies during pull. Without it such text is a fatal error.
	DefaultTriggerLabel string `yaml:"default_trigger_label"`
	// Include/Exclude filter table names; exact names or one % wildcard.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Archive Archive  `yaml:"archive"`
}

// Archive configures the archive synthesizer.
type Archive struct {
	// NamePattern derives the archive table name; % is replaced by the
	// source table name.
	NamePattern string        `yaml:"name_pattern"`
	Roles       archive.Roles `yaml:"roles"`
}

// Load reads, defaults and validates a config file. Defaults are applied
// once here; nothing downstream re-checks them.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = "schema"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Archive.NamePattern == "" {
		cfg.Archive.NamePattern = "%Archive"
	}
	cfg.Archive.Roles = cfg.Archive.Roles.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	if strings.Count(c.Archive.NamePattern, "%") != 1 {
		return fmt.Errorf("archive name_pattern %q must contain exactly one %%", c.Archive.NamePattern)
	}
	if err := c.Archive.Roles.Validate(); err != nil {
		return fmt.Errorf("archive roles: %w", err)
	}
	return nil
}

// Sample is the starter file written by init-config.
const Sample = `dsn: user:password@tcp(localhost:3306)/appdb
base_dir: ./schema
log_level: info
# default_trigger_label: 50-legacy
# include:
#   - "app_%"
# exclude:
#   - "tmp_%"
archive:
  name_pattern: "%Archive"
  roles:
    revision: revision
    updid_variable: "@updid"
`
