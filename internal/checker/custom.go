package checker

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// maxOutputBytes caps how much command output is kept in a result.
const maxOutputBytes = 500

// CustomChecker runs a shell command and treats exit status zero as
// healthy.
type CustomChecker struct {
	name    string
	command string
	timeout time.Duration
}

func NewCustomChecker(t models.Target, timeout time.Duration) *CustomChecker {
	command := ""
	if t.Custom != nil {
		command = t.Custom.Command
	}

	return &CustomChecker{
		name:    t.Name,
		command: command,
		timeout: timeout,
	}
}

func (c *CustomChecker) Name() string {
	return c.name
}

func (c *CustomChecker) Check(ctx context.Context) *models.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", c.command)
	out, err := cmd.CombinedOutput()
	latency := time.Since(start)

	output := truncate(strings.TrimSpace(string(out)), maxOutputBytes)

	if ctx.Err() == context.DeadlineExceeded {
		return failure("Timeout", latency)
	}
	if err != nil {
		msg := "Command failed"
		if output != "" {
			msg = "Command failed: " + output
		}
		result := failure(truncate(msg, maxOutputBytes), latency)
		result.Details = map[string]any{"output": output}
		return result
	}

	return &models.CheckResult{
		Healthy:   true,
		LatencyMs: latency.Milliseconds(),
		Message:   "OK",
		Details:   map[string]any{"output": output},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
