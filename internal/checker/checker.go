package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// Checker defines the interface for health probes
type Checker interface {
	// Check probes the target and reports its current state
	Check(ctx context.Context) *models.CheckResult

	// Name returns the target name
	Name() string
}

// SnapshotFunc supplies a container runtime snapshot (name -> running).
// The scheduler shares one snapshot across all container targets.
type SnapshotFunc func(ctx context.Context) (map[string]bool, error)

// Options carries cross-target checker settings.
type Options struct {
	Timeout  time.Duration
	Snapshot SnapshotFunc
}

// New builds a checker for the target based on its check type.
func New(t models.Target, opts Options) (Checker, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	switch t.Kind {
	case models.KindHTTP:
		return NewHTTPChecker(t, timeout), nil
	case models.KindTCP:
		return NewTCPChecker(t, timeout), nil
	case models.KindPing:
		return NewPingChecker(t, timeout), nil
	case models.KindCustom:
		return NewCustomChecker(t, timeout), nil
	case models.KindContainers:
		snapshot := opts.Snapshot
		if snapshot == nil {
			snapshot = DockerPS
		}
		return NewContainerChecker(t, timeout, snapshot), nil
	default:
		return nil, fmt.Errorf("unknown check type '%s' for target '%s'", t.Kind, t.Name)
	}
}

// classifyNetErr maps a transport error to a short user-facing message.
func classifyNetErr(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS failed"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Connection failed"
	}

	return "Network error"
}

func failure(message string, latency time.Duration) *models.CheckResult {
	return &models.CheckResult{
		Healthy:   false,
		LatencyMs: latency.Milliseconds(),
		Message:   message,
	}
}
