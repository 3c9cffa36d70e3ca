package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codelens/internal/lang"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return dir
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, 1<<20, cfg.MaxFileBytes)
	assert.Equal(t, Duration(10*time.Second), cfg.FileTimeout)
	assert.Equal(t, Duration(5*time.Minute), cfg.ScanTimeout)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 3, cfg.MaxCallDepth)
	assert.Equal(t, 512, cfg.MaxTreeDepth)
	assert.Equal(t, 50, cfg.Rules.MaxFunctionLines)
	assert.Equal(t, 5, cfg.Rules.MaxParameters)
	assert.Equal(t, 20, cfg.Rules.MaxClassMembers)
	assert.Equal(t, 3, cfg.Rules.MaxLoopNesting)
	assert.True(t, cfg.Excluded("node_modules"))
}

func TestLoad_FullFile(t *testing.T) {
	dir := writeConfig(t, "codelens.yml", `
maxFileBytes: 2048
fileTimeout: 2s
scanTimeout: 1m30s
workers: 2
maxCallDepth: 5
languages: [go, python]
excludeDirs: [gen]
entryPoints: [main, Server.Start]
rules:
  disabled: [todo-comment, no-var]
  maxParameters: 3
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "codelens.yml"), cfg.Path)
	assert.Equal(t, 2048, cfg.MaxFileBytes)
	assert.Equal(t, Duration(2*time.Second), cfg.FileTimeout)
	assert.Equal(t, Duration(90*time.Second), cfg.ScanTimeout)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{"gen"}, cfg.ExcludeDirs)
	assert.False(t, cfg.Excluded("node_modules"), "an explicit list replaces the defaults")
	assert.Equal(t, 3, cfg.Rules.MaxParameters)
	assert.Equal(t, 50, cfg.Rules.MaxFunctionLines, "unset thresholds keep defaults")

	sc := cfg.Scan()
	assert.Equal(t, []lang.Language{lang.Go, lang.Python}, sc.Languages)
	assert.Equal(t, 2*time.Second, sc.FileTimeout)
	assert.Equal(t, 90*time.Second, sc.ScanTimeout)
	assert.Equal(t, 5, sc.MaxCallDepth)
	assert.Equal(t, []string{"main", "Server.Start"}, sc.EntryPoints)
	assert.Equal(t, []string{"todo-comment", "no-var"}, sc.DisabledRules)
	assert.Equal(t, 3, sc.Rules.MaxParameters)
}

func TestLoad_YAMLExtension(t *testing.T) {
	dir := writeConfig(t, "codelens.yaml", "workers: 7\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := writeConfig(t, "codelens.yml", "")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxCallDepth)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "fileTimeout: soon\n", "invalid duration"},
		{"unknown key", "wokers: 2\n", "field wokers not found"},
		{"negative", "workers: -1\n", "workers must not be negative"},
		{"unknown language", "languages: [cobol]\n", `unknown language "cobol"`},
		{"malformed", "rules: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "codelens.yml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
