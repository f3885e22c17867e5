package tools

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/gitcrew/gitcrew/internal/jsonx"
	"github.com/gitcrew/gitcrew/internal/search"
	"github.com/gitcrew/gitcrew/internal/session"
)

func analysisTools() []toolDef {
	return []toolDef{
		{
			name:        "blast_radius",
			description: "List the files referencing symbols defined in the current diff, i.e. everything a change might break.",
			schema: `{
				"type": "object",
				"properties": {
					"base": {"type": "string"}
				}
			}`,
			handler: handleBlastRadius,
		},
		{
			name:        "relevant_context",
			description: "Find the files that reference the definitions in a given file.",
			schema: `{
				"type": "object",
				"properties": {
					"file": {"type": "string", "minLength": 1}
				},
				"required": ["file"]
			}`,
			handler: handleRelevantContext,
		},
		{
			name:        "file_history",
			description: "Show recent commits touching a file, following renames.",
			schema: `{
				"type": "object",
				"properties": {
					"file": {"type": "string", "minLength": 1},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100}
				},
				"required": ["file"]
			}`,
			handler: handleFileHistory,
		},
	}
}

func handleBlastRadius(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	diff, err := d.Git.Diff(ctx, "", jsonx.String(args, "base", ""))
	if err != nil {
		return nil, err
	}

	// Changed files from diff headers; touched definitions from the
	// changed hunk lines.
	var files []string
	symbols := map[string]bool{}
	for _, line := range strings.Split(diff, "\n") {
		if path := search.DiffFilePath(line); path != "" {
			files = append(files, path)
			continue
		}
		if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") {
			continue
		}
		if name := search.DefinitionName(strings.TrimLeft(line, "+-")); name != "" {
			symbols[name] = true
		}
	}

	impact := map[string][]string{}
	for symbol := range symbols {
		refs, err := d.Search.SearchRefs(ctx, "", symbol, "")
		if err != nil {
			continue
		}
		for _, ref := range refs {
			impact[ref] = appendUnique(impact[ref], symbol)
		}
	}

	return map[string]any{
		"changed_files":   files,
		"touched_symbols": sortedKeys(symbols),
		"affected_files":  impact,
		"affected_count":  len(impact),
	}, nil
}

func handleRelevantContext(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	file := jsonx.String(args, "file", "")

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	related := map[string][]string{}
	for _, symbol := range search.HarvestIdentifiers(string(content)) {
		refs, err := d.Search.SearchRefs(ctx, "", symbol, file)
		if err != nil {
			continue
		}
		for _, ref := range refs {
			related[ref] = appendUnique(related[ref], symbol)
		}
	}

	return map[string]any{
		"file":          file,
		"related_files": related,
		"related_count": len(related),
	}, nil
}

func handleFileHistory(ctx context.Context, d *Deps, tc *session.Context, args map[string]any) (any, error) {
	file := jsonx.String(args, "file", "")
	commits, err := d.Git.FileHistory(ctx, "", file, jsonx.Int(args, "limit", 20))
	if err != nil {
		return nil, err
	}
	return map[string]any{"file": file, "commits": commits, "count": len(commits)}, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
