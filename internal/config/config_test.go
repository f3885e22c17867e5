package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "codex", cfg.AgentBinary)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60, cfg.RateLimitCapacity)
}

func TestLoadYAMLFile(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".config", "gitcrew")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(
		"agent_binary: myagent\nlog_level: debug\nrate_limit_capacity: 10\n"), 0o644))

	cfg, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, "myagent", cfg.AgentBinary)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".config", "gitcrew")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("agent_binary: fromfile\n"), 0o644))

	t.Setenv("GITCREW_AGENT", "fromenv")
	t.Setenv("REPO_PATH", "/work/repo")

	cfg, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.AgentBinary)
	assert.Equal(t, "/work/repo", cfg.RepoPath)
}

func TestLoadMalformedYAML(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".config", "gitcrew")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(":\nnot yaml: ["), 0o644))

	_, err := Load(home)
	assert.Error(t, err)
}
