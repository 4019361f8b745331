package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 50, cfg.LinesPerChunk)
	assert.Equal(t, 9216, cfg.MaxChunkBytes)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 7*24, cfg.Cache.TTLHours)
	assert.Equal(t, int64(500<<20), cfg.Cache.MaxSizeBytes)
	assert.Contains(t, cfg.AllowedExtensions, "py")
	assert.Contains(t, cfg.AllowedExtensions, "go")
	assert.Contains(t, cfg.IgnoredDirs, "node_modules")
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebase.yaml")
	yaml := `
workspacePath: /tmp/ws
linesPerChunk: 25
cache:
  ttlHours: 1
  maxSizeBytes: 52428800
  maxEntries: 100
sink:
  endpointEmbed: https://example.test/embed
  maxRetries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ws", cfg.WorkspacePath)
	assert.Equal(t, 25, cfg.LinesPerChunk)
	assert.Equal(t, 1, cfg.Cache.TTLHours)
	assert.Equal(t, int64(50<<20), cfg.Cache.MaxSizeBytes)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, "https://example.test/embed", cfg.Sink.EndpointEmbed)
	assert.Equal(t, 5, cfg.Sink.MaxRetries)
	// Untouched fields keep defaults.
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebase.yaml")
	require.NoError(t, os.WriteFile(path, []byte("linesPerChunk: 25\n"), 0o644))

	t.Setenv("CODEBASE_LINES_PER_CHUNK", "10")
	t.Setenv("CODEBASE_SINK_TOKEN", "secret")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.LinesPerChunk)
	assert.Equal(t, "secret", cfg.Sink.Token)
}

func TestLoad_FlagsWin(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--workspace", "/srv/repo", "--concurrency", "4"}))

	loaded, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "/srv/repo", loaded.WorkspacePath)
	// Validate caps the flag value at the CPU count.
	want := 4
	if n := runtime.NumCPU(); n < want {
		want = n
	}
	assert.Equal(t, want, loaded.Concurrency)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml", nil)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lines per chunk", func(c *Config) { c.LinesPerChunk = 0 }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.TTLHours = 0 }},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
