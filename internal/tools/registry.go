// Package tools defines the workflow tool catalog served over MCP.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gitcrew/gitcrew/internal/agent"
	"github.com/gitcrew/gitcrew/internal/git"
	"github.com/gitcrew/gitcrew/internal/graph"
	"github.com/gitcrew/gitcrew/internal/mcp"
	"github.com/gitcrew/gitcrew/internal/ratelimit"
	"github.com/gitcrew/gitcrew/internal/repometa"
	"github.com/gitcrew/gitcrew/internal/search"
	"github.com/gitcrew/gitcrew/internal/session"
	"github.com/gitcrew/gitcrew/internal/subprocess"
	"github.com/gitcrew/gitcrew/internal/swarm"
)

// GraphQuerier is the code-graph lookup surface handlers use.
type GraphQuerier interface {
	SymbolAt(ctx context.Context, path string, line int) (*graph.Symbol, error)
	Callers(ctx context.Context, symbolID int64) ([]graph.Symbol, error)
	Callees(ctx context.Context, symbolID int64) ([]graph.Symbol, error)
	Dependents(ctx context.Context, symbolID int64, limit int) ([]graph.Symbol, error)
}

// Deps are the shared collaborators handlers draw on.
type Deps struct {
	Runner   subprocess.Runner
	Git      *git.Git
	Search   *search.Cascade
	Graph    GraphQuerier
	Cache    *repometa.Cache
	Sessions *session.Manager
	Agents   agent.Runner
	Swarm    *swarm.Orchestrator
	Limiter  *ratelimit.Bucket
}

// handlerFunc computes a tool result. The returned value is marshaled
// into the result text; a returned error becomes {"error": ...} text.
type handlerFunc func(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error)

type toolDef struct {
	name        string
	description string
	schema      string
	handler     handlerFunc
}

// Registry is the immutable tool table, built once at startup.
type Registry struct {
	deps     *Deps
	defs     []toolDef
	byName   map[string]*toolDef
	compiled map[string]*jsonschema.Schema
}

// NewRegistry compiles every tool schema and freezes the catalog.
func NewRegistry(deps *Deps) (*Registry, error) {
	r := &Registry{
		deps:     deps,
		defs:     catalog(),
		byName:   make(map[string]*toolDef),
		compiled: make(map[string]*jsonschema.Schema),
	}

	compiler := jsonschema.NewCompiler()
	for i := range r.defs {
		def := &r.defs[i]
		if _, dup := r.byName[def.name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", def.name)
		}
		r.byName[def.name] = def

		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(def.schema))
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", def.name, err)
		}
		url := "tool:///" + def.name + ".json"
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", def.name, err)
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", def.name, err)
		}
		r.compiled[def.name] = sch
	}
	return r, nil
}

// Tools implements mcp.Handler.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, mcp.Tool{
			Name:        def.name,
			Description: def.description,
			InputSchema: json.RawMessage(def.schema),
		})
	}
	return out
}

// Call implements mcp.Handler: resolve the thread, honor any repo
// binding, validate arguments, run the handler. Handler failures are
// encoded into the result text so the dispatch loop never sees them.
func (r *Registry) Call(ctx context.Context, name string, params, args map[string]any) (string, error) {
	def, ok := r.byName[name]
	if !ok {
		return "", mcp.InvalidParams("unknown tool %q", name)
	}

	tc := r.deps.Sessions.Resolve(params, args)
	if err := r.deps.Sessions.Bind(ctx, tc, params, args); err != nil {
		if errors.Is(err, session.ErrBadRepoPath) {
			return "", mcp.InvalidParams("%s", err.Error())
		}
		return "", err
	}

	if err := r.compiled[name].Validate(stripTransportKeys(args)); err != nil {
		return errorText(fmt.Sprintf("invalid arguments for %s: %v", name, err)), nil
	}

	result, err := def.handler(ctx, r.deps, tc, args)
	if err != nil {
		slog.Debug("tool failed", "tool", name, "error", err)
		return errorText(err.Error()), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorText(fmt.Sprintf("encode %s result: %v", name, err)), nil
	}
	return string(data), nil
}

// transportKeys ride alongside every tool's real arguments and are
// consumed before the handler runs.
var transportKeys = map[string]bool{
	"thread_id":         true,
	"threadId":          true,
	"repo_path":         true,
	"repo":              true,
	"working_directory": true,
}

func stripTransportKeys(args map[string]any) map[string]any {
	needsCopy := false
	for k := range args {
		if transportKeys[k] {
			needsCopy = true
			break
		}
	}
	if !needsCopy {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if !transportKeys[k] {
			out[k] = v
		}
	}
	return out
}

func errorText(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(data)
}

// acquireGH takes a rate limit token before a GitHub API bound call.
func acquireGH(d *Deps) error {
	if d.Limiter == nil {
		return nil
	}
	if !d.Limiter.TryAcquire() {
		_, _, resetAt := d.Limiter.Status()
		return fmt.Errorf("GitHub rate limit reached, try again after %s", resetAt.Format("15:04:05"))
	}
	if d.Limiter.ShouldWarn(5) {
		slog.Warn("GitHub rate limit nearly exhausted")
	}
	return nil
}

// catalog assembles the full tool table from the per-family files.
func catalog() []toolDef {
	var defs []toolDef
	defs = append(defs, planningTools()...)
	defs = append(defs, issueTools()...)
	defs = append(defs, branchTools()...)
	defs = append(defs, prTools()...)
	defs = append(defs, analysisTools()...)
	defs = append(defs, searchTools()...)
	defs = append(defs, graphTools()...)
	defs = append(defs, agentTools()...)
	defs = append(defs, sessionTools()...)
	return defs
}
