package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/repometa"
	"github.com/gitcrew/gitcrew/internal/subprocess"
)

// ErrBadRepoPath marks a repo switch rejected because the target
// directory cannot be entered. The dispatch layer maps it to an
// invalid-params reply.
var ErrBadRepoPath = errors.New("cannot switch to repository path")

// Manager owns the process-wide repository binding: the working
// directory, the detected owner/name slug, and the metadata cache that
// must be flushed when the repository changes.
type Manager struct {
	table  *Table
	cache  *repometa.Cache
	runner subprocess.Runner

	mu          sync.Mutex
	currentRepo string
	slug        string

	// chdir is replaceable in tests
	chdir func(string) error
}

// NewManager binds the manager to an initial repository path, which
// may be empty when the server starts outside any repository.
func NewManager(table *Table, cache *repometa.Cache, runner subprocess.Runner, initialRepo string) *Manager {
	return &Manager{
		table:       table,
		cache:       cache,
		runner:      runner,
		currentRepo: initialRepo,
		chdir:       os.Chdir,
	}
}

// Resolve picks the thread context for a tool call. The id is looked
// up under params first, then arguments, accepting both snake_case and
// camelCase spellings.
func (m *Manager) Resolve(params, args map[string]any) *Context {
	id := jsonx.FirstString([]map[string]any{params, args}, "thread_id", "threadId")
	return m.table.Get(id)
}

// RepoArg extracts an explicit repository argument from a tool call,
// params before arguments.
func RepoArg(params, args map[string]any) string {
	return jsonx.FirstString([]map[string]any{params, args}, "repo_path", "repo", "working_directory")
}

// Bind applies a tool call's repository intent to the thread context:
// an explicit repo argument switches to it; otherwise a thread that
// remembers a different repo than the current binding switches back
// implicitly.
func (m *Manager) Bind(ctx context.Context, tc *Context, params, args map[string]any) error {
	if target := RepoArg(params, args); target != "" {
		return m.SwitchRepo(ctx, tc, target)
	}
	m.mu.Lock()
	remembered := tc.RepoPath
	differs := remembered != "" && remembered != m.currentRepo
	m.mu.Unlock()
	if differs {
		return m.SwitchRepo(ctx, tc, remembered)
	}
	return nil
}

// SwitchRepo changes the process working directory to target, rebinds
// the thread's repo, flushes the metadata cache, re-warms it, and
// re-detects the remote slug. A no-op when target is already current.
func (m *Manager) SwitchRepo(ctx context.Context, tc *Context, target string) error {
	m.mu.Lock()
	if target == m.currentRepo {
		tc.RepoPath = target
		m.mu.Unlock()
		return nil
	}
	if err := m.chdir(target); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w %q: %v", ErrBadRepoPath, target, err)
	}
	m.currentRepo = target
	tc.RepoPath = target
	m.slug = ""
	m.mu.Unlock()

	slog.Debug("switched repository", "path", target, "thread", tc.ID)
	m.cache.Invalidate()
	m.cache.Warm(ctx)
	m.detectSlug(ctx)
	return nil
}

// CurrentRepo returns the process-wide repository binding.
func (m *Manager) CurrentRepo() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRepo
}

// Slug returns the owner/name of the bound repository's origin
// remote, detecting it on first use.
func (m *Manager) Slug(ctx context.Context) string {
	m.mu.Lock()
	if m.slug != "" {
		s := m.slug
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()
	m.detectSlug(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slug
}

func (m *Manager) detectSlug(ctx context.Context) {
	res, err := m.runner.Run(ctx, subprocess.Spec{
		Argv: []string{"git", "remote", "get-url", "origin"},
	})
	if err != nil {
		slog.Debug("slug detection failed", "error", err)
		return
	}
	slug := ParseRemoteSlug(strings.TrimSpace(string(res.Stdout)))
	if slug == "" {
		return
	}
	m.mu.Lock()
	m.slug = slug
	m.mu.Unlock()
}

// ParseRemoteSlug extracts "owner/name" from an https or ssh GitHub
// remote URL. Returns "" for URLs it does not recognize.
func ParseRemoteSlug(url string) string {
	url = strings.TrimSuffix(url, ".git")
	switch {
	case strings.HasPrefix(url, "git@"):
		// git@github.com:owner/name
		if _, after, ok := strings.Cut(url, ":"); ok {
			return slugIfTwoParts(after)
		}
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "ssh://"):
		parts := strings.Split(url, "/")
		if len(parts) >= 2 {
			return slugIfTwoParts(strings.Join(parts[len(parts)-2:], "/"))
		}
	}
	return ""
}

func slugIfTwoParts(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return s
	}
	return ""
}
