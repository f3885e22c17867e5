package tools

import (
	"context"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/session"
)

func searchTools() []toolDef {
	return []toolDef{
		{
			name:        "search_code",
			description: "Find files containing a whole-word match for a term.",
			schema: `{
				"type": "object",
				"properties": {
					"term": {"type": "string", "minLength": 1}
				},
				"required": ["term"]
			}`,
			handler: handleSearchCode,
		},
		{
			name:        "find_references",
			description: "Find files referencing a symbol, omitting the path given as exclude (such as its defining file).",
			schema: `{
				"type": "object",
				"properties": {
					"symbol": {"type": "string", "minLength": 1},
					"exclude": {"type": "string"}
				},
				"required": ["symbol"]
			}`,
			handler: handleFindReferences,
		},
	}
}

func handleSearchCode(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	term := jsonx.String(args, "term", "")
	refs, err := d.Search.SearchRefs(ctx, "", term, "")
	if err != nil {
		return nil, err
	}
	return map[string]any{"term": term, "files": refs, "count": len(refs)}, nil
}

func handleFindReferences(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	symbol := jsonx.String(args, "symbol", "")
	refs, err := d.Search.SearchRefs(ctx, "", symbol, jsonx.String(args, "exclude", ""))
	if err != nil {
		return nil, err
	}
	return map[string]any{"symbol": symbol, "files": refs, "count": len(refs)}, nil
}
