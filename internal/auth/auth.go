// Package auth reads the local trial and token files. The server only
// needs enough of the contract to decide whether to print an expiry
// warning at startup; it never blocks a session.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// product names the config directory under ~/.config.
const product = "gitcrew"

// trialDays is how long a trial stays valid after started_at.
const trialDays = 14

// Trial is the on-disk trial record.
type Trial struct {
	StartedAt int64 `json:"started_at"`
}

// Token is the on-disk activation record.
type Token struct {
	Token       string `json:"token"`
	ActivatedAt int64  `json:"activated_at"`
}

// Status summarizes the local auth state.
type Status struct {
	Activated    bool
	TrialStarted bool
	TrialExpired bool
}

// ConfigDir returns the product config directory under home.
func ConfigDir(home string) string {
	return filepath.Join(home, ".config", product)
}

// Load reads trial.json and token.json under home's config dir.
// Missing files are not errors; a malformed file is reported but the
// returned status is still usable.
func Load(home string) (Status, error) {
	dir := ConfigDir(home)
	var status Status
	var firstErr error

	var token Token
	switch err := readJSON(filepath.Join(dir, "token.json"), &token); {
	case err == nil:
		status.Activated = token.Token != ""
	case !errors.Is(err, os.ErrNotExist):
		firstErr = err
	}

	var trial Trial
	switch err := readJSON(filepath.Join(dir, "trial.json"), &trial); {
	case err == nil:
		status.TrialStarted = trial.StartedAt > 0
		if status.TrialStarted {
			expiry := time.Unix(trial.StartedAt, 0).AddDate(0, 0, trialDays)
			status.TrialExpired = time.Now().After(expiry)
		}
	case !errors.Is(err, os.ErrNotExist):
		if firstErr == nil {
			firstErr = err
		}
	}

	return status, firstErr
}

// StartTrial writes a fresh trial.json if none exists yet.
func StartTrial(home string) error {
	dir := ConfigDir(home)
	path := filepath.Join(dir, "trial.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.Marshal(Trial{StartedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trial file: %w", err)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
