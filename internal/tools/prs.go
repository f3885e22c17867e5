package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

type ghPR struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"url"`
	Head   string `json:"headRefName"`
}

func prTools() []toolDef {
	return []toolDef{
		{
			name:        "create_pr",
			description: "Open a pull request for the current branch.",
			schema: `{
				"type": "object",
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"body": {"type": "string"},
					"base": {"type": "string"},
					"draft": {"type": "boolean"}
				},
				"required": ["title"]
			}`,
			handler: handleCreatePR,
		},
		{
			name:        "pr_status",
			description: "Show the state of a pull request, or of the current branch's PR.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1}
				}
			}`,
			handler: handlePRStatus,
		},
		{
			name:        "list_prs",
			description: "List pull requests.",
			schema: `{
				"type": "object",
				"properties": {
					"state": {"type": "string", "enum": ["open", "closed", "merged", "all"]},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100}
				}
			}`,
			handler: handleListPRs,
		},
		{
			name:        "merge_pr",
			description: "Merge a pull request.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"method": {"type": "string", "enum": ["merge", "squash", "rebase"]}
				},
				"required": ["number"]
			}`,
			handler: handleMergePR,
		},
		{
			name:        "pr_checks",
			description: "Show CI check results for a pull request.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1}
				},
				"required": ["number"]
			}`,
			handler: handlePRChecks,
		},
	}
}

func handleCreatePR(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	argv := []string{"pr", "create",
		"--title", jsonx.String(args, "title", ""),
		"--body", jsonx.String(args, "body", ""),
	}
	if base := jsonx.String(args, "base", ""); base != "" {
		argv = append(argv, "--base", base)
	}
	if jsonx.Bool(args, "draft", false) {
		argv = append(argv, "--draft")
	}

	res, err := gh(ctx, d, argv...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": strings.TrimSpace(string(res.Stdout))}, nil
}

func handlePRStatus(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	argv := []string{"pr", "view", "--json", "number,title,state,url,headRefName"}
	if n := jsonx.Int(args, "number", 0); n > 0 {
		argv = []string{"pr", "view", strconv.Itoa(n), "--json", "number,title,state,url,headRefName"}
	}

	var pr ghPR
	if err := ghJSON(ctx, d, &pr, argv...); err != nil {
		return nil, err
	}
	return map[string]any{
		"number": pr.Number,
		"title":  pr.Title,
		"state":  pr.State,
		"url":    pr.URL,
		"branch": pr.Head,
	}, nil
}

func handleListPRs(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	var prs []ghPR
	err := ghJSON(ctx, d, &prs, "pr", "list",
		"--state", jsonx.String(args, "state", "open"),
		"--limit", strconv.Itoa(jsonx.Int(args, "limit", 30)),
		"--json", "number,title,state,url,headRefName",
	)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(prs))
	for _, pr := range prs {
		out = append(out, map[string]any{
			"number": pr.Number,
			"title":  pr.Title,
			"state":  pr.State,
			"url":    pr.URL,
			"branch": pr.Head,
		})
	}
	return map[string]any{"pull_requests": out, "count": len(out)}, nil
}

func handleMergePR(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)
	method := jsonx.String(args, "method", "squash")

	if _, err := gh(ctx, d, "pr", "merge", strconv.Itoa(number), "--"+method); err != nil {
		return nil, err
	}
	return map[string]any{"number": number, "merged": true, "method": method}, nil
}

func handlePRChecks(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)

	var checks []struct {
		Name       string `json:"name"`
		State      string `json:"state"`
		Bucket     string `json:"bucket"`
		DetailsURL string `json:"link"`
	}
	if err := ghJSON(ctx, d, &checks, "pr", "checks", strconv.Itoa(number), "--json", "name,state,bucket,link"); err != nil {
		return nil, err
	}

	passing := 0
	for _, c := range checks {
		if c.Bucket == "pass" {
			passing++
		}
	}
	return map[string]any{
		"number":  number,
		"checks":  checks,
		"passing": passing,
		"total":   len(checks),
	}, nil
}
