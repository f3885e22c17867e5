package tools

import (
	"context"

	"github.com/gitcrew/gitcrew/internal/graph"
	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

func graphTools() []toolDef {
	return []toolDef{
		{
			name:        "symbol_at",
			description: "Look up the code-graph symbol spanning a file position.",
			schema: `{
				"type": "object",
				"properties": {
					"path": {"type": "string", "minLength": 1},
					"line": {"type": "integer", "minimum": 1}
				},
				"required": ["path", "line"]
			}`,
			handler: handleSymbolAt,
		},
		{
			name:        "find_callers",
			description: "List symbols that call the given symbol.",
			schema: `{
				"type": "object",
				"properties": {
					"symbol_id": {"type": "integer", "minimum": 1}
				},
				"required": ["symbol_id"]
			}`,
			handler: handleFindCallers,
		},
		{
			name:        "find_callees",
			description: "List symbols the given symbol calls.",
			schema: `{
				"type": "object",
				"properties": {
					"symbol_id": {"type": "integer", "minimum": 1}
				},
				"required": ["symbol_id"]
			}`,
			handler: handleFindCallees,
		},
		{
			name:        "find_dependents",
			description: "List symbols transitively depending on the given symbol, ranked by importance.",
			schema: `{
				"type": "object",
				"properties": {
					"symbol_id": {"type": "integer", "minimum": 1},
					"limit": {"type": "integer", "minimum": 1, "maximum": 200}
				},
				"required": ["symbol_id"]
			}`,
			handler: handleFindDependents,
		},
	}
}

func handleSymbolAt(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	sym, err := d.Graph.SymbolAt(ctx, jsonx.String(args, "path", ""), jsonx.Int(args, "line", 0))
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return map[string]any{"symbol": nil}, nil
	}
	return map[string]any{"symbol": sym}, nil
}

func handleFindCallers(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	return edgeResult(d.Graph.Callers(ctx, int64(jsonx.Int(args, "symbol_id", 0))))
}

func handleFindCallees(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	return edgeResult(d.Graph.Callees(ctx, int64(jsonx.Int(args, "symbol_id", 0))))
}

func handleFindDependents(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	return edgeResult(d.Graph.Dependents(ctx,
		int64(jsonx.Int(args, "symbol_id", 0)),
		jsonx.Int(args, "limit", 25)))
}

func edgeResult(symbols []graph.Symbol, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if symbols == nil {
		symbols = []graph.Symbol{}
	}
	return map[string]any{"symbols": symbols, "count": len(symbols)}, nil
}
