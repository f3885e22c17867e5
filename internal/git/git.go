// Package git wraps the git CLI for the workflow tools.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitcrew/gitcrew/internal/subprocess"
)

// Git executes git commands through the shared subprocess runner.
type Git struct {
	runner subprocess.Runner
}

// New returns a Git bound to the runner.
func New(runner subprocess.Runner) *Git {
	return &Git{runner: runner}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, subprocess.Spec{
		Argv: append([]string{"git"}, args...),
		Dir:  dir,
	})
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

// Toplevel returns the repository root containing dir.
func (g *Git) Toplevel(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("discover repository root: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates and checks out a branch from the current HEAD.
func (g *Git) CreateBranch(ctx context.Context, dir, name string) error {
	_, err := g.run(ctx, dir, "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (g *Git) Checkout(ctx context.Context, dir, name string) error {
	_, err := g.run(ctx, dir, "checkout", name)
	return err
}

// DeleteBranch removes a local branch. force uses -D.
func (g *Git) DeleteBranch(ctx context.Context, dir, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, dir, "branch", flag, name)
	return err
}

// ListBranches returns local branch names.
func (g *Git) ListBranches(ctx context.Context, dir string) ([]string, error) {
	out, err := g.run(ctx, dir, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if b := strings.TrimSpace(line); b != "" {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

// Diff returns the unified diff of the working tree against base.
// Empty base diffs against HEAD.
func (g *Git) Diff(ctx context.Context, dir, base string) (string, error) {
	args := []string{"diff"}
	if base != "" {
		args = append(args, base)
	}
	return g.run(ctx, dir, args...)
}

// StatusPorcelain returns machine-readable working tree status lines.
func (g *Git) StatusPorcelain(ctx context.Context, dir string) ([]string, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// FileHistory returns the last n commit lines touching path, following
// renames.
func (g *Git) FileHistory(ctx context.Context, dir, path string, n int) ([]string, error) {
	if n <= 0 {
		n = 20
	}
	out, err := g.run(ctx, dir, "log", "--follow", fmt.Sprintf("-n%d", n), "--format=%h %ad %s", "--date=short", "--", path)
	if err != nil {
		return nil, err
	}
	var commits []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			commits = append(commits, line)
		}
	}
	return commits, nil
}
