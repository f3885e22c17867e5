package tools

import (
	"context"
	"time"

	"github.com/gitcrew/gitcrew/internal/session"
)

func sessionTools() []toolDef {
	return []toolDef{
		{
			name:        "switch_repo",
			description: "Bind this thread (and the server) to a different repository. Pass repo_path with the target.",
			schema: `{
				"type": "object",
				"properties": {}
			}`,
			handler: handleSwitchRepo,
		},
		{
			name:        "repo_info",
			description: "Show the bound repository, its remote slug, and the current branch.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleRepoInfo,
		},
		{
			name:        "rate_limit_status",
			description: "Show the local GitHub rate limit budget.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleRateLimitStatus,
		},
	}
}

// handleSwitchRepo is a confirmation shell: the actual switch already
// happened in the registry's bind step, like for every other tool.
func handleSwitchRepo(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	return map[string]any{
		"thread":    tc.ID,
		"repo_path": d.Sessions.CurrentRepo(),
		"slug":      d.Sessions.Slug(ctx),
	}, nil
}

func handleRepoInfo(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	branch, err := d.Git.CurrentBranch(ctx, "")
	if err != nil {
		branch = ""
	}
	return map[string]any{
		"repo_path":   d.Sessions.CurrentRepo(),
		"slug":        d.Sessions.Slug(ctx),
		"branch":      branch,
		"cache_ready": d.Cache.Ready(),
	}, nil
}

func handleRateLimitStatus(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	if d.Limiter == nil {
		return map[string]any{"enabled": false}, nil
	}
	remaining, capacity, resetAt := d.Limiter.Status()
	return map[string]any{
		"enabled":   true,
		"remaining": remaining,
		"capacity":  capacity,
		"reset_at":  resetAt.UTC().Format(time.RFC3339),
	}, nil
}
