package secret

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// runCLI executes a provider CLI and returns trimmed stdout.
//
// Secrets are passed through env or stdin only; argv is visible in
// process listings and must never carry a raw secret. A non-zero exit
// maps to ErrConnectionFailed with the provider's stderr attached.
func runCLI(ctx context.Context, name string, args []string, env []string, stdin []byte) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: %s: %s", ErrConnectionFailed, name, msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// binaryInstalled probes for the provider CLI with its version flag.
func binaryInstalled(ctx context.Context, name string, versionArg string) bool {
	cmd := exec.CommandContext(ctx, name, versionArg)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// probeGate throttles availability probes. Each probe spawns at least
// one provider process, so repeated checks within the interval reuse
// the last observed result instead of spawning again.
type probeGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	last    bool
}

func newProbeGate(interval time.Duration) *probeGate {
	return &probeGate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// check runs probe if the limiter permits, otherwise returns the cached
// result from the last permitted probe.
func (g *probeGate) check(probe func() bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.limiter.Allow() {
		return g.last
	}
	g.last = probe()
	return g.last
}
