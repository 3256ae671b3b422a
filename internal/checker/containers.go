package checker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// ContainerChecker verifies a group of containers against a runtime
// snapshot. All up is healthy, some up is degraded, none up is down.
type ContainerChecker struct {
	name     string
	names    []string
	timeout  time.Duration
	snapshot SnapshotFunc
}

func NewContainerChecker(t models.Target, timeout time.Duration, snapshot SnapshotFunc) *ContainerChecker {
	var names []string
	if t.Containers != nil {
		names = t.Containers.Names
	}

	return &ContainerChecker{
		name:     t.Name,
		names:    names,
		timeout:  timeout,
		snapshot: snapshot,
	}
}

func (c *ContainerChecker) Name() string {
	return c.name
}

func (c *ContainerChecker) Check(ctx context.Context) *models.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	running, err := c.snapshot(ctx)
	latency := time.Since(start)
	if err != nil {
		return failure(fmt.Sprintf("Container runtime unavailable: %v", err), latency)
	}

	var up, down []string
	for _, name := range c.names {
		if running[name] {
			up = append(up, name)
		} else {
			down = append(down, name)
		}
	}

	result := &models.CheckResult{
		LatencyMs: latency.Milliseconds(),
		Details: map[string]any{
			"running": up,
			"stopped": down,
		},
	}

	switch {
	case len(down) == 0:
		result.Healthy = true
		result.Message = fmt.Sprintf("All %d containers running", len(up))
	case len(up) > 0:
		result.Healthy = true
		result.Degraded = true
		result.Message = fmt.Sprintf("%d/%d containers running (down: %s)",
			len(up), len(c.names), strings.Join(down, ", "))
	default:
		result.Message = fmt.Sprintf("No containers running (down: %s)", strings.Join(down, ", "))
	}

	return result
}

// DockerPS lists containers with a single docker invocation so that
// container targets share one snapshot per check round.
func DockerPS(ctx context.Context) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, "docker", "ps", "-a",
		"--format", "{{.Names}}\t{{.Status}}").Output()
	if err != nil {
		return nil, fmt.Errorf("docker ps: %w", err)
	}

	running := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		running[parts[0]] = strings.HasPrefix(parts[1], "Up")
	}
	return running, nil
}
