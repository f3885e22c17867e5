// Package repometa caches per-repository GitHub metadata (labels and
// milestones) for the lifetime of a client session.
package repometa

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gitcrew/gitcrew/internal/ratelimit"
	"github.com/gitcrew/gitcrew/internal/subprocess"
)

// Label is one repository label as returned by gh.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Milestone is one open milestone as returned by the GitHub API.
type Milestone struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

// Cache is the session metadata store. It is populated at most once
// per client-ready event; readers before warmup (or after a failed
// warmup) see an empty cache and degrade.
type Cache struct {
	runner  subprocess.Runner
	limiter *ratelimit.Bucket

	mu         sync.Mutex
	ready      bool
	warming    bool
	labels     map[string]Label
	milestones map[string]Milestone
}

// NewCache builds an unwarmed cache. limiter may be nil.
func NewCache(runner subprocess.Runner, limiter *ratelimit.Bucket) *Cache {
	return &Cache{runner: runner, limiter: limiter}
}

// Warm loads labels and milestones through gh. It runs the upstream
// queries outside the lock and publishes the finished maps atomically,
// so readers never observe a half-built cache. Failures are swallowed:
// the cache stays empty and callers work without suggestions.
func (c *Cache) Warm(ctx context.Context) {
	c.mu.Lock()
	if c.ready || c.warming {
		c.mu.Unlock()
		return
	}
	c.warming = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.warming = false
		c.mu.Unlock()
	}()

	if c.limiter != nil && !c.limiter.TryAcquire() {
		slog.Debug("metadata warmup skipped, rate limited")
		return
	}

	var labels []Label
	if err := subprocess.RunJSON(ctx, c.runner, subprocess.Spec{
		Argv: []string{"gh", "label", "list", "--json", "name,color,description", "--limit", "200"},
	}, &labels); err != nil {
		slog.Debug("label warmup failed", "error", err)
		return
	}

	var milestones []Milestone
	if err := subprocess.RunJSON(ctx, c.runner, subprocess.Spec{
		Argv: []string{"gh", "api", "repos/{owner}/{repo}/milestones", "--paginate"},
	}, &milestones); err != nil {
		// Labels loaded fine; keep them and serve without milestones.
		slog.Debug("milestone warmup failed", "error", err)
		milestones = nil
	}

	labelMap := make(map[string]Label, len(labels))
	for _, l := range labels {
		labelMap[l.Name] = l
	}
	milestoneMap := make(map[string]Milestone, len(milestones))
	for _, m := range milestones {
		milestoneMap[m.Title] = m
	}

	c.mu.Lock()
	c.labels = labelMap
	c.milestones = milestoneMap
	c.ready = true
	c.mu.Unlock()
	slog.Debug("metadata cache warmed", "labels", len(labelMap), "milestones", len(milestoneMap))
}

// GetLabel returns the named label, or nil when the cache is not
// ready or the label does not exist.
func (c *Cache) GetLabel(name string) *Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil
	}
	if l, ok := c.labels[name]; ok {
		return &l
	}
	return nil
}

// GetMilestone returns the milestone with the given title, or nil.
func (c *Cache) GetMilestone(title string) *Milestone {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil
	}
	if m, ok := c.milestones[title]; ok {
		return &m
	}
	return nil
}

// Labels returns every cached label. Nil when not ready.
func (c *Cache) Labels() []Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil
	}
	out := make([]Label, 0, len(c.labels))
	for _, l := range c.labels {
		out = append(out, l)
	}
	return out
}

// Ready reports whether a warmup has completed since the last
// invalidation.
func (c *Cache) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Invalidate drops the cached maps. The garbage collector owns entry
// reclamation; the next Warm repopulates.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.labels = nil
	c.milestones = nil
}
