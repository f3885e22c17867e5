package tools

import (
	"context"

	"github.com/gitcrew/gitcrew/internal/agent"
	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

func agentTools() []toolDef {
	return []toolDef{
		{
			name:        "run_agent",
			description: "Run a single agent turn against the bound repository and return its reply.",
			schema: `{
				"type": "object",
				"properties": {
					"prompt": {"type": "string", "minLength": 1},
					"writable": {"type": "boolean"}
				},
				"required": ["prompt"]
			}`,
			handler: handleRunAgent,
		},
		{
			name:        "run_swarm",
			description: "Decompose a task, run parallel agents on the parts, and synthesize one result.",
			schema: `{
				"type": "object",
				"properties": {
					"task": {"type": "string", "minLength": 1},
					"max_agents": {"type": "integer", "minimum": 1, "maximum": 100},
					"writable": {"type": "boolean"}
				},
				"required": ["task"]
			}`,
			handler: handleRunSwarm,
		},
	}
}

func handleRunAgent(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	sandbox := agent.SandboxReadOnly
	if jsonx.Bool(args, "writable", false) {
		sandbox = agent.SandboxUnrestricted
	}

	output, err := d.Agents.Run(ctx, agent.TurnRequest{
		Prompt:  jsonx.String(args, "prompt", ""),
		Cwd:     d.Sessions.CurrentRepo(),
		Sandbox: sandbox,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": output}, nil
}

func handleRunSwarm(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	result, err := d.Swarm.Run(ctx,
		jsonx.String(args, "task", ""),
		jsonx.Int(args, "max_agents", 10),
		jsonx.Bool(args, "writable", false),
		d.Sessions.CurrentRepo(),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": result}, nil
}
