package tools

import (
	"context"
	"strconv"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

// priorityOrder ranks the priority labels used by next_task.
var priorityOrder = []string{"P0", "P1", "P2", "P3"}

func planningTools() []toolDef {
	return []toolDef{
		{
			name:        "decompose_task",
			description: "Split a task into parallelizable sub-tasks using the orchestrator agent. Returns the plan without running it.",
			schema: `{
				"type": "object",
				"properties": {
					"task": {"type": "string", "minLength": 1},
					"max_agents": {"type": "integer", "minimum": 1, "maximum": 100}
				},
				"required": ["task"]
			}`,
			handler: handleDecomposeTask,
		},
		{
			name:        "project_snapshot",
			description: "Summarize open issues and pull requests.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleProjectSnapshot,
		},
		{
			name:        "next_task",
			description: "Pick the highest-priority open issue to work on next.",
			schema:      `{"type": "object", "properties": {}}`,
			handler:     handleNextTask,
		},
		{
			name:        "prioritize",
			description: "Set the priority label on an issue, replacing any previous priority.",
			schema: `{
				"type": "object",
				"properties": {
					"number": {"type": "integer", "minimum": 1},
					"priority": {"type": "string", "enum": ["P0", "P1", "P2", "P3"]}
				},
				"required": ["number", "priority"]
			}`,
			handler: handlePrioritize,
		},
	}
}

func handleDecomposeTask(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	assignments, err := d.Swarm.Decompose(ctx,
		jsonx.String(args, "task", ""),
		jsonx.Int(args, "max_agents", 10),
		d.Sessions.CurrentRepo(),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"assignments": assignments, "count": len(assignments)}, nil
}

func handleProjectSnapshot(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	var issues []ghIssue
	if err := ghJSON(ctx, d, &issues, "issue", "list", "--state", "open", "--limit", "100",
		"--json", "number,title,labels"); err != nil {
		return nil, err
	}

	var prs []ghPR
	if err := ghJSON(ctx, d, &prs, "pr", "list", "--state", "open", "--limit", "100",
		"--json", "number,title,state,url,headRefName"); err != nil {
		return nil, err
	}

	byPriority := map[string]int{}
	for _, issue := range issues {
		for _, name := range labelNames(issue) {
			for _, p := range priorityOrder {
				if name == p {
					byPriority[p]++
				}
			}
		}
	}

	return map[string]any{
		"repo":        d.Sessions.Slug(ctx),
		"open_issues": len(issues),
		"open_prs":    len(prs),
		"by_priority": byPriority,
	}, nil
}

func handleNextTask(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	var issues []ghIssue
	if err := ghJSON(ctx, d, &issues, "issue", "list", "--state", "open", "--limit", "100",
		"--json", "number,title,labels,url"); err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return map[string]any{"issue": nil, "reason": "no open issues"}, nil
	}

	// Highest priority label wins; within a tier, the oldest issue
	// (gh lists newest first, so scan from the back).
	for _, p := range priorityOrder {
		for i := len(issues) - 1; i >= 0; i-- {
			for _, name := range labelNames(issues[i]) {
				if name == p {
					return pickedTask(issues[i], "priority "+p), nil
				}
			}
		}
	}
	return pickedTask(issues[len(issues)-1], "oldest open issue"), nil
}

func pickedTask(issue ghIssue, reason string) map[string]any {
	return map[string]any{
		"issue": map[string]any{
			"number": issue.Number,
			"title":  issue.Title,
			"labels": labelNames(issue),
			"url":    issue.URL,
		},
		"reason": reason,
	}
}

func handlePrioritize(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	number := jsonx.Int(args, "number", 0)
	priority := jsonx.String(args, "priority", "")

	argv := []string{"issue", "edit", strconv.Itoa(number), "--add-label", priority}
	for _, p := range priorityOrder {
		if p != priority {
			argv = append(argv, "--remove-label", p)
		}
	}
	if _, err := gh(ctx, d, argv...); err != nil {
		return nil, err
	}
	return map[string]any{"number": number, "priority": priority}, nil
}
