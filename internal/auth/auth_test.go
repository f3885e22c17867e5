package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, home, name string, v any) {
	t.Helper()
	dir := ConfigDir(home)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoadMissingFiles(t *testing.T) {
	status, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, status.Activated)
	assert.False(t, status.TrialStarted)
}

func TestLoadActiveTrial(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "trial.json", Trial{StartedAt: time.Now().Unix()})

	status, err := Load(home)
	require.NoError(t, err)
	assert.True(t, status.TrialStarted)
	assert.False(t, status.TrialExpired)
}

func TestLoadExpiredTrial(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "trial.json", Trial{StartedAt: time.Now().AddDate(0, 0, -trialDays-1).Unix()})

	status, err := Load(home)
	require.NoError(t, err)
	assert.True(t, status.TrialExpired)
}

func TestLoadToken(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "token.json", Token{Token: "tok_123", ActivatedAt: time.Now().Unix()})

	status, err := Load(home)
	require.NoError(t, err)
	assert.True(t, status.Activated)
}

func TestLoadMalformedFileReported(t *testing.T) {
	home := t.TempDir()
	dir := ConfigDir(home)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token.json"), []byte("{broken"), 0o644))

	status, err := Load(home)
	assert.Error(t, err)
	assert.False(t, status.Activated)
}

func TestStartTrialIdempotent(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, StartTrial(home))

	status, err := Load(home)
	require.NoError(t, err)
	require.True(t, status.TrialStarted)

	// A second start must not reset the clock.
	var before Trial
	data, err := os.ReadFile(filepath.Join(ConfigDir(home), "trial.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &before))

	require.NoError(t, StartTrial(home))
	var after Trial
	data, err = os.ReadFile(filepath.Join(ConfigDir(home), "trial.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &after))
	assert.Equal(t, before.StartedAt, after.StartedAt)
}
