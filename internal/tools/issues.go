package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
	"github.com/gitcrew/gitcrew/internal/subprocess"
)

// ghIssue is the subset of issue fields the tools surface.
type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Body   string `json:"body,omitempty"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels,omitempty"`
	URL string `json:"url,omitempty"`
}

func labelNames(issue ghIssue) []string {
	names := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		names = append(names, l.Name)
	}
	return names
}

func gh(ctx context.Context, d *Deps, args ...string) (subprocess.Result, error) {
	if err := acquireGH(d); err != nil {
		return subprocess.Result{}, err
	}
	return d.Runner.Run(ctx, subprocess.Spec{Argv: append([]string{"gh"}, args...)})
}

func ghJSON(ctx context.Context, d *Deps, out any, args ...string) error {
	if err := acquireGH(d); err != nil {
		return err
	}
	return subprocess.RunJSON(ctx, d.Runner, subprocess.Spec{Argv: append([]string{"gh"}, args...)}, out)
}

func issueTools() []toolDef {
	return []toolDef{
		{
			name:        "create_issue",
			description: "Create a GitHub issue with optional labels and milestone.",
			schema: `{
				"type": "object",
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"body": {"type": "string"},
					"labels": {"type": "array", "items": {"type": "string"}},
					"milestone": {"type": "string"}
				},
				"required": ["title"]
			}`,
			handler: handleCreateIssue,
		},
		{
			name:        "update_issue",
			description: "Update the title or body of an existing issue.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"title": {"type": "string"},
					"body": {"type": "string"}
				},
				"required": ["number"]
			}`,
			handler: handleUpdateIssue,
		},
		{
			name:        "close_issue",
			description: "Close an issue, optionally marking it not planned.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"reason": {"type": "string", "enum": ["completed", "not planned"]}
				},
				"required": ["number"]
			}`,
			handler: handleCloseIssue,
		},
		{
			name:        "list_issues",
			description: "List issues filtered by state and label.",
			schema: `{
				"type": "object",
				"properties": {
					"state": {"type": "string", "enum": ["open", "closed", "all"]},
					"label": {"type": "string"},
					"limit": {"type": "integer", "minimum": 1, "maximum": 200}
				}
			}`,
			handler: handleListIssues,
		},
		{
			name:        "add_label",
			description: "Add a label to an issue.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"label": {"type": "string", "minLength": 1}
				},
				"required": ["number", "label"]
			}`,
			handler: handleAddLabel,
		},
		{
			name:        "suggest_labels",
			description: "Suggest existing repository labels matching an issue title and body.",
			schema: `{
				"type": "object",
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"body": {"type": "string"}
				},
				"required": ["title"]
			}`,
			handler: handleSuggestLabels,
		},
	}
}

func handleCreateIssue(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	argv := []string{"issue", "create",
		"--title", jsonx.String(args, "title", ""),
		"--body", jsonx.String(args, "body", ""),
	}
	if labels, ok := args["labels"].([]any); ok {
		for _, l := range labels {
			if name, ok := l.(string); ok && name != "" {
				argv = append(argv, "--label", name)
			}
		}
	}
	if m := jsonx.String(args, "milestone", ""); m != "" {
		argv = append(argv, "--milestone", m)
	}

	res, err := gh(ctx, d, argv...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": strings.TrimSpace(string(res.Stdout))}, nil
}

func handleUpdateIssue(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)
	argv := []string{"issue", "edit", strconv.Itoa(number)}
	edited := false
	if t := jsonx.String(args, "title", ""); t != "" {
		argv = append(argv, "--title", t)
		edited = true
	}
	if b := jsonx.String(args, "body", ""); b != "" {
		argv = append(argv, "--body", b)
		edited = true
	}
	if !edited {
		return nil, fmt.Errorf("update_issue requires a title or body")
	}
	if _, err := gh(ctx, d, argv...); err != nil {
		return nil, err
	}
	return map[string]any{"number": number, "updated": true}, nil
}

func handleCloseIssue(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)
	argv := []string{"issue", "close", strconv.Itoa(number)}
	if r := jsonx.String(args, "reason", ""); r != "" {
		argv = append(argv, "--reason", r)
	}
	if _, err := gh(ctx, d, argv...); err != nil {
		return nil, err
	}
	return map[string]any{"number": number, "state": "closed"}, nil
}

func handleListIssues(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	argv := []string{"issue", "list",
		"--state", jsonx.String(args, "state", "open"),
		"--limit", strconv.Itoa(jsonx.Int(args, "limit", 30)),
		"--json", "number,title,state,labels,url",
	}
	if label := jsonx.String(args, "label", ""); label != "" {
		argv = append(argv, "--label", label)
	}

	var issues []ghIssue
	if err := ghJSON(ctx, d, &issues, argv...); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		out = append(out, map[string]any{
			"number": issue.Number,
			"title":  issue.Title,
			"state":  issue.State,
			"labels": labelNames(issue),
			"url":    issue.URL,
		})
	}
	return map[string]any{"issues": out, "count": len(out)}, nil
}

func handleAddLabel(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)
	label := jsonx.String(args, "label", "")

	known := d.Cache.GetLabel(label) != nil
	if _, err := gh(ctx, d, "issue", "edit", strconv.Itoa(number), "--add-label", label); err != nil {
		return nil, err
	}
	result := map[string]any{"number": number, "label": label, "added": true}
	if d.Cache.Ready() && !known {
		result["note"] = "label did not exist before this call and was created"
	}
	return result, nil
}

func handleSuggestLabels(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	// Pure cache read: degrades to no suggestions before warmup.
	text := strings.ToLower(jsonx.String(args, "title", "") + " " + jsonx.String(args, "body", ""))

	var suggestions []map[string]string
	for _, label := range d.Cache.Labels() {
		name := strings.ToLower(label.Name)
		if name != "" && (strings.Contains(text, name) || strings.Contains(text, strings.ReplaceAll(name, "-", " "))) {
			suggestions = append(suggestions, map[string]string{
				"name":        label.Name,
				"description": label.Description,
			})
		}
	}
	return map[string]any{
		"suggestions": suggestions,
		"cache_ready": d.Cache.Ready(),
	}, nil
}
