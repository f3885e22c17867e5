package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitcrew/gitcrew/internal/agent"
	"github.com/gitcrew/gitcrew/internal/auth"
	"github.com/gitcrew/gitcrew/internal/config"
	"github.com/gitcrew/gitcrew/internal/git"
	"github.com/gitcrew/gitcrew/internal/graph"
	"github.com/gitcrew/gitcrew/internal/mcp"
	"github.com/gitcrew/gitcrew/internal/ratelimit"
	"github.com/gitcrew/gitcrew/internal/repometa"
	"github.com/gitcrew/gitcrew/internal/search"
	"github.com/gitcrew/gitcrew/internal/session"
	"github.com/gitcrew/gitcrew/internal/subprocess"
	"github.com/gitcrew/gitcrew/internal/swarm"
	"github.com/gitcrew/gitcrew/internal/tools"
	"github.com/gitcrew/gitcrew/internal/version"
)

// runServer wires the components and runs the dispatch loop until the
// client closes its end of the pipe.
func runServer(cmd *cobra.Command) error {
	home, _ := os.UserHomeDir()

	cfg, err := config.Load(home)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	setupLogging(cfg.LogLevel)

	// A closed client pipe must surface as a write error, not kill
	// the process. Best-effort: Ignore cannot fail.
	signal.Ignore(syscall.SIGPIPE)

	warnAuth(home)

	runner := subprocess.NewExecRunner()

	repoPath, err := bindRepository(cfg, runner)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewBucket(cfg.RateLimitCapacity, time.Hour)
	cache := repometa.NewCache(runner, limiter)
	sessions := session.NewManager(session.NewTable(), cache, runner, repoPath)
	launcher := agent.NewLauncher(cfg.AgentBinary, cfg.AgentToolsDirs)

	registry, err := tools.NewRegistry(&tools.Deps{
		Runner:   runner,
		Git:      git.New(runner),
		Search:   search.NewCascade(runner),
		Graph:    graph.NewStore("."),
		Cache:    cache,
		Sessions: sessions,
		Agents:   launcher,
		Swarm:    swarm.New(launcher),
		Limiter:  limiter,
	})
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	server := mcp.NewServer(os.Stdin, os.Stdout, registry,
		mcp.ServerInfo{Name: "gitcrew", Version: version.Version},
		cache.Warm,
	)

	slog.Info("serving MCP", "repo", repoPath, "tools", len(registry.Tools()))
	return server.Serve(context.Background())
}

// bindRepository resolves the startup repository from REPO_PATH or
// git discovery and makes it the working directory. Starting outside
// a repository is allowed; tools that need one will say so.
func bindRepository(cfg config.Config, runner subprocess.Runner) (string, error) {
	if cfg.RepoPath != "" {
		if err := os.Chdir(cfg.RepoPath); err != nil {
			return "", fmt.Errorf("REPO_PATH %q: %w", cfg.RepoPath, err)
		}
		return cfg.RepoPath, nil
	}

	top, err := git.New(runner).Toplevel(context.Background(), "")
	if err != nil {
		slog.Warn("not inside a git repository; bind one with repo_path on any tool call")
		return "", nil
	}
	if err := os.Chdir(top); err != nil {
		return "", fmt.Errorf("enter repository %q: %w", top, err)
	}
	return top, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// warnAuth surfaces trial or activation problems without blocking the
// session.
func warnAuth(home string) {
	status, err := auth.Load(home)
	if err != nil {
		slog.Warn("auth state unreadable", "error", err)
		return
	}
	if status.Activated {
		return
	}
	if !status.TrialStarted {
		if err := auth.StartTrial(home); err != nil {
			slog.Debug("could not start trial", "error", err)
		}
		return
	}
	if status.TrialExpired {
		color.New(color.FgYellow).Fprintln(os.Stderr,
			"gitcrew trial has expired; see https://gitcrew.dev/activate")
	}
}
