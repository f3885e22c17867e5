package tools

import (
	"context"
	"strconv"

	"github.com/gitcrew/gitcrew/internal/git"
	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

func branchTools() []toolDef {
	return []toolDef{
		{
			name:        "create_branch",
			description: "Create and check out a work branch for an issue. The branch name encodes the issue number.",
			schema: `{
				"type": "object",
				"properties": {
					"issue_number": {"type": "integer", "minimum": 1},
					"title": {"type": "string"}
				},
				"required": ["issue_number"]
			}`,
			handler: handleCreateBranch,
		},
		{
			name:        "checkout_branch",
			description: "Check out an existing branch.",
			schema: `{
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1}
				},
				"required": ["name"]
			}`,
			handler: handleCheckoutBranch,
		},
		{
			name:        "list_branches",
			description: "List local branches.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleListBranches,
		},
		{
			name:        "delete_branch",
			description: "Delete a local branch.",
			schema: `{
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"force": {"type": "boolean"}
				},
				"required": ["name"]
			}`,
			handler: handleDeleteBranch,
		},
		{
			name:        "branch_status",
			description: "Show the current branch, its linked issue, and working tree changes.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleBranchStatus,
		},
	}
}

func handleCreateBranch(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "issue_number", 0)
	title := jsonx.String(args, "title", "")

	if title == "" {
		// Pull the issue title so the branch name is meaningful.
		var issue ghIssue
		if err := ghJSON(ctx, d, &issue, "issue", "view", strconv.Itoa(number), "--json", "number,title"); err != nil {
			return nil, err
		}
		title = issue.Title
	}

	branch := git.BranchName(number, title)
	if err := d.Git.CreateBranch(ctx, "", branch); err != nil {
		return nil, err
	}
	return map[string]any{"branch": branch, "issue_number": number}, nil
}

func handleCheckoutBranch(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	name := jsonx.String(args, "name", "")
	if err := d.Git.Checkout(ctx, "", name); err != nil {
		return nil, err
	}
	return map[string]any{"branch": name, "checked_out": true}, nil
}

func handleListBranches(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	branches, err := d.Git.ListBranches(ctx, "")
	if err != nil {
		return nil, err
	}
	current, err := d.Git.CurrentBranch(ctx, "")
	if err != nil {
		current = ""
	}
	return map[string]any{"branches": branches, "current": current}, nil
}

func handleDeleteBranch(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	name := jsonx.String(args, "name", "")
	if err := d.Git.DeleteBranch(ctx, "", name, jsonx.Bool(args, "force", false)); err != nil {
		return nil, err
	}
	return map[string]any{"branch": name, "deleted": true}, nil
}

func handleBranchStatus(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	branch, err := d.Git.CurrentBranch(ctx, "")
	if err != nil {
		return nil, err
	}
	changes, err := d.Git.StatusPorcelain(ctx, "")
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"branch":  branch,
		"changes": changes,
		"clean":   len(changes) == 0,
	}
	if n := git.ParseIssueNumber(branch); n > 0 {
		result["issue_number"] = n
	}
	return result, nil
}
