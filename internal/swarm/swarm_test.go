package swarm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gitcrew/gitcrew/internal/agent"
)

// stubAgents scripts the orchestrator, worker, and synthesis turns.
type stubAgents struct {
	mu          sync.Mutex
	decompose   string
	workerErrs  map[string]error
	calls       []agent.TurnRequest
	activeNow   int
	maxParallel int

	// workerGate, when set, holds each worker turn until every worker
	// counted in it has started.
	workerGate *sync.WaitGroup
}

func (s *stubAgents) Run(ctx context.Context, req agent.TurnRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.activeNow++
	if s.activeNow > s.maxParallel {
		s.maxParallel = s.activeNow
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.activeNow--
		s.mu.Unlock()
	}()

	switch {
	case strings.Contains(req.Prompt, "orchestrator splitting a task"):
		return s.decompose, nil
	case strings.Contains(req.Prompt, "synthesizing the results"):
		return "SYNTHESIS:\n" + req.Prompt, nil
	default:
		if s.workerGate != nil {
			s.workerGate.Done()
			s.workerGate.Wait()
		}
		if err, ok := s.workerErrs[req.Prompt]; ok {
			return "", err
		}
		return "output for " + req.Prompt, nil
	}
}

func TestSwarmHappyPath(t *testing.T) {
	stub := &stubAgents{
		decompose: `Here you go: [{"role":"x","prompt":"p1"},{"role":"y","prompt":"p2"}] done.`,
	}
	o := New(stub)

	final, err := o.Run(context.Background(), "build the thing", 5, false, "/repo")
	require.NoError(t, err)

	assert.Contains(t, final, "## Agent 1 — x")
	assert.Contains(t, final, "output for p1")
	assert.Contains(t, final, "## Agent 2 — y")
	assert.Contains(t, final, "output for p2")

	// decompose + 2 workers + synthesis
	assert.Len(t, stub.calls, 4)
}

func TestSwarmForwardsWritableSandbox(t *testing.T) {
	stub := &stubAgents{
		decompose: `[{"role":"w","prompt":"edit files"}]`,
	}
	o := New(stub)

	_, err := o.Run(context.Background(), "task", 3, true, "/repo")
	require.NoError(t, err)

	var workerSandbox agent.Sandbox
	for _, c := range stub.calls {
		if c.Prompt == "edit files" {
			workerSandbox = c.Sandbox
		}
	}
	assert.Equal(t, agent.SandboxUnrestricted, workerSandbox)
}

func TestSwarmRespectsMaxAgents(t *testing.T) {
	stub := &stubAgents{
		decompose: `[{"role":"a","prompt":"p1"},{"role":"b","prompt":"p2"},{"role":"c","prompt":"p3"}]`,
	}
	o := New(stub)

	assignments, err := o.Decompose(context.Background(), "task", 2, "")
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
}

func TestSwarmMalformedDecomposition(t *testing.T) {
	stub := &stubAgents{decompose: "I could not split this task, sorry."}
	o := New(stub)

	_, err := o.Run(context.Background(), "task", 5, false, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a task list")
}

func TestSwarmSkipsFailedWorkers(t *testing.T) {
	stub := &stubAgents{
		decompose:  `[{"role":"ok","prompt":"good"},{"role":"bad","prompt":"doomed"}]`,
		workerErrs: map[string]error{"doomed": errors.New("agent crashed")},
	}
	o := New(stub)

	final, err := o.Run(context.Background(), "task", 5, false, "")
	require.NoError(t, err, "one dead worker must not sink the swarm")
	assert.Contains(t, final, "output for good")
	assert.NotContains(t, final, "doomed\n")
}

func TestSwarmAllWorkersFailed(t *testing.T) {
	stub := &stubAgents{
		decompose:  `[{"role":"a","prompt":"x"}]`,
		workerErrs: map[string]error{"x": errors.New("boom")},
	}
	o := New(stub)

	_, err := o.Run(context.Background(), "task", 5, false, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every swarm worker failed")
}

func TestSwarmWorkersRunInParallel(t *testing.T) {
	prev := launchRate
	launchRate = rate.Inf
	defer func() { launchRate = prev }()

	gate := &sync.WaitGroup{}
	gate.Add(3)
	stub := &stubAgents{
		decompose:  `[{"role":"a","prompt":"p1"},{"role":"b","prompt":"p2"},{"role":"c","prompt":"p3"}]`,
		workerGate: gate,
	}
	o := New(stub)

	_, err := o.Run(context.Background(), "task", 5, false, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stub.maxParallel, "all three workers active at once")
}

func TestDecomposeDropsEmptyPrompts(t *testing.T) {
	stub := &stubAgents{
		decompose: `[{"role":"a","prompt":""},{"role":"","prompt":"real work"}]`,
	}
	o := New(stub)

	assignments, err := o.Decompose(context.Background(), "task", 10, "")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "worker", assignments[0].Role, "missing role gets a default")
}
