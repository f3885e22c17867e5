// Package search locates symbol references with the best text search
// tool available on the machine.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gitcrew/gitcrew/internal/subprocess"
)

// Tool identifies which searcher the cascade settled on.
type Tool int

const (
	ToolNone Tool = iota
	ToolRipgrep
	ToolSilverSearcher
	ToolGrep
)

func (t Tool) String() string {
	switch t {
	case ToolRipgrep:
		return "rg"
	case ToolSilverSearcher:
		return "ag"
	case ToolGrep:
		return "grep"
	default:
		return "none"
	}
}

// Cascade probes for a search tool on first use and memoizes the
// answer for the rest of the process.
type Cascade struct {
	runner subprocess.Runner

	mu     sync.Mutex
	probed bool
	tool   Tool
}

// NewCascade returns a cascade backed by the given runner.
func NewCascade(runner subprocess.Runner) *Cascade {
	return &Cascade{runner: runner}
}

// probeOrder is the preference order. ripgrep is fastest and respects
// .gitignore; ag is a close second; grep is everywhere.
var probeOrder = []struct {
	tool Tool
	argv []string
}{
	{ToolRipgrep, []string{"rg", "--version"}},
	{ToolSilverSearcher, []string{"ag", "--version"}},
	{ToolGrep, []string{"grep", "--version"}},
}

// Detect returns the chosen tool, probing candidates once.
func (c *Cascade) Detect(ctx context.Context) Tool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probed {
		return c.tool
	}
	c.probed = true
	c.tool = ToolNone
	for _, cand := range probeOrder {
		if _, err := c.runner.Run(ctx, subprocess.Spec{Argv: cand.argv}); err == nil {
			c.tool = cand.tool
			break
		}
	}
	slog.Debug("search tool probe", "tool", c.tool.String())
	return c.tool
}

// SearchRefs finds files containing symbol as a whole word under dir,
// de-duplicated, with leading "./" stripped and excludePath omitted.
// No matches is a normal empty result, not an error.
func (c *Cascade) SearchRefs(ctx context.Context, dir, symbol, excludePath string) ([]string, error) {
	tool := c.Detect(ctx)
	if tool == ToolNone {
		return nil, &subprocess.ExecError{
			Kind:    subprocess.ErrNotFound,
			Message: "no search tool available (tried rg, ag, grep)",
		}
	}

	var argv []string
	switch tool {
	case ToolRipgrep:
		argv = []string{"rg", "-l", "-w", symbol, "."}
	case ToolSilverSearcher:
		argv = []string{"ag", "-l", "-w", symbol, "."}
	case ToolGrep:
		argv = []string{"grep", "-r", "-l", "-w", symbol, "."}
	}

	res, err := c.runner.Run(ctx, subprocess.Spec{Argv: argv, Dir: dir})
	if err != nil {
		// Exit 1 means no matches for the whole grep family.
		if execErr, ok := err.(*subprocess.ExecError); ok && execErr.ExitCode == 1 {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var refs []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		path := strings.TrimSpace(line)
		path = strings.TrimPrefix(path, "./")
		if path == "" || path == excludePath || seen[path] {
			continue
		}
		seen[path] = true
		refs = append(refs, path)
	}
	return refs, nil
}
