package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "dsn: user:pass@tcp(localhost:3306)/appdb\n"))
	require.NoError(t, err)

	assert.Equal(t, "schema", cfg.BaseDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "%Archive", cfg.Archive.NamePattern)
	assert.Equal(t, "revision", cfg.Archive.Roles.Revision)
	assert.Equal(t, "@updid", cfg.Archive.Roles.UpdIDVariable)
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `dsn: user:pass@tcp(localhost:3306)/appdb
base_dir: ./db
log_level: debug
default_trigger_label: 50-legacy
include:
  - "app_%"
exclude:
  - "tmp_%"
archive:
  name_pattern: "%History"
  roles:
    revision: rev
`))
	require.NoError(t, err)

	assert.Equal(t, "./db", cfg.BaseDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "50-legacy", cfg.DefaultTriggerLabel)
	assert.Equal(t, []string{"app_%"}, cfg.Include)
	assert.Equal(t, []string{"tmp_%"}, cfg.Exclude)
	assert.Equal(t, "%History", cfg.Archive.NamePattern)
	assert.Equal(t, "rev", cfg.Archive.Roles.Revision)
	// Unset roles still get their defaults.
	assert.Equal(t, "action", cfg.Archive.Roles.Action)
}

func TestLoadRequiresDSN(t *testing.T) {
	_, err := Load(writeConfig(t, "base_dir: ./db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestLoadRejectsBadArchivePattern(t *testing.T) {
	_, err := Load(writeConfig(t, `dsn: user:pass@tcp(localhost:3306)/appdb
archive:
  name_pattern: "Archive"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name_pattern")
}

func TestLoadRejectsDuplicateRoleColumns(t *testing.T) {
	_, err := Load(writeConfig(t, `dsn: user:pass@tcp(localhost:3306)/appdb
archive:
  roles:
    revision: shared
    action: shared
`))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSampleIsLoadable(t *testing.T) {
	cfg, err := Load(writeConfig(t, Sample))
	require.NoError(t, err)
	assert.Equal(t, "./schema", cfg.BaseDir)
	assert.Equal(t, "%Archive", cfg.Archive.NamePattern)
}
