// Package swarm decomposes a task into parallel agent turns and
// synthesizes their results.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gitcrew/gitcrew/internal/agent"
	"github.com/gitcrew/gitcrew/internal/jsonx"
)

// hardCap bounds the fan-out regardless of what the caller asks for.
const hardCap = 100

// launchRate staggers worker starts so a wide swarm does not slam the
// agent binary and the machine all at once.
var launchRate = rate.Limit(4)

// Assignment is one decomposed sub-task.
type Assignment struct {
	Role   string `json:"role"`
	Prompt string `json:"prompt"`
}

// workerResult pairs an assignment with its agent output.
type workerResult struct {
	index  int
	role   string
	output string
}

// Orchestrator runs the decompose → fan out → synthesize pipeline.
type Orchestrator struct {
	agents agent.Runner
}

// New builds an orchestrator over the given agent runner.
func New(agents agent.Runner) *Orchestrator {
	return &Orchestrator{agents: agents}
}

const decomposePrompt = `You are an orchestrator splitting a task across parallel worker agents.
Reply with ONLY a JSON array, no prose, where each element is
{"role": "<short role name>", "prompt": "<complete self-contained instructions>"}.
Produce at most %d elements. Workers cannot see each other or this conversation.

Task:
%s`

const synthesizeHeader = `You are synthesizing the results of parallel worker agents into one coherent answer.
Merge, de-duplicate, and resolve conflicts between the sections below.

`

const synthesizeFooter = `
Write the final consolidated result now.`

// Run executes the full swarm pipeline for task, with at most
// maxAgents workers. writable forwards an unrestricted sandbox to the
// workers so they may modify files.
func (o *Orchestrator) Run(ctx context.Context, task string, maxAgents int, writable bool, cwd string) (string, error) {
	assignments, err := o.Decompose(ctx, task, maxAgents, cwd)
	if err != nil {
		return "", err
	}

	results, err := o.fanOut(ctx, assignments, writable, cwd)
	if err != nil {
		return "", err
	}

	return o.synthesize(ctx, results, cwd)
}

// Decompose asks one agent instance to split the task, and parses the
// JSON array out of its reply.
func (o *Orchestrator) Decompose(ctx context.Context, task string, maxAgents int, cwd string) ([]Assignment, error) {
	limit := maxAgents
	if limit < 1 || limit > hardCap {
		limit = hardCap
	}

	reply, err := o.agents.Run(ctx, agent.TurnRequest{
		Prompt:  fmt.Sprintf(decomposePrompt, limit, task),
		Cwd:     cwd,
		Sandbox: agent.SandboxReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose task: %w", err)
	}

	var assignments []Assignment
	if err := jsonx.ExtractArray(reply, &assignments); err != nil {
		return nil, fmt.Errorf("orchestrator reply was not a task list: %w", err)
	}

	var valid []Assignment
	for _, a := range assignments {
		if a.Prompt == "" {
			continue
		}
		if a.Role == "" {
			a.Role = "worker"
		}
		valid = append(valid, a)
		if len(valid) >= limit {
			break
		}
	}
	if len(valid) == 0 {
		return nil, errors.New("orchestrator produced no usable assignments")
	}
	return valid, nil
}

// fanOut runs every assignment on its own agent instance in parallel.
// Workers that fail to run are skipped; at least one must finish.
func (o *Orchestrator) fanOut(ctx context.Context, assignments []Assignment, writable bool, cwd string) ([]workerResult, error) {
	sandbox := agent.SandboxReadOnly
	if writable {
		sandbox = agent.SandboxUnrestricted
	}

	limiter := rate.NewLimiter(launchRate, 1)

	var (
		mu      sync.Mutex
		results []workerResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range assignments {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return nil
			}
			workerID := uuid.NewString()[:8]
			output, err := o.agents.Run(gctx, agent.TurnRequest{
				Prompt:  a.Prompt,
				Cwd:     cwd,
				Sandbox: sandbox,
			})
			if err != nil {
				// A dead worker costs coverage, not the swarm.
				slog.Warn("swarm worker failed", "worker", workerID, "role", a.Role, "error", err)
				return nil
			}
			mu.Lock()
			results = append(results, workerResult{index: i, role: a.Role, output: output})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("every swarm worker failed")
	}
	return results, nil
}

// synthesize folds all worker outputs into one final agent turn.
func (o *Orchestrator) synthesize(ctx context.Context, results []workerResult, cwd string) (string, error) {
	// Workers land in completion order; the prompt should read in
	// assignment order.
	ordered := make([]workerResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	var prompt strings.Builder
	prompt.WriteString(synthesizeHeader)
	for _, r := range ordered {
		fmt.Fprintf(&prompt, "## Agent %d — %s\n%s\n\n", r.index+1, r.role, r.output)
	}
	prompt.WriteString(synthesizeFooter)

	final, err := o.agents.Run(ctx, agent.TurnRequest{
		Prompt:  prompt.String(),
		Cwd:     cwd,
		Sandbox: agent.SandboxReadOnly,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize swarm results: %w", err)
	}
	return final, nil
}
