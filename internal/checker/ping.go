package checker

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/jiin/lookout/internal/models"
)

// PingChecker probes a host with ICMP echo. It tries unprivileged UDP
// ping first and falls back to raw sockets, which covers both plain
// user sessions and root.
type PingChecker struct {
	name    string
	host    string
	count   int
	timeout time.Duration
}

func NewPingChecker(t models.Target, timeout time.Duration) *PingChecker {
	count := 1
	if t.Ping != nil && t.Ping.Count > 0 {
		count = t.Ping.Count
	}

	return &PingChecker{
		name:    t.Name,
		host:    t.Host,
		count:   count,
		timeout: timeout,
	}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) *models.CheckResult {
	stats, err := c.run(ctx, false)
	if err != nil {
		stats, err = c.run(ctx, true)
	}
	if err != nil {
		return failure(fmt.Sprintf("Ping failed: %v", err), 0)
	}

	if stats.PacketsRecv == 0 {
		return &models.CheckResult{
			Message: "No reply",
			Details: map[string]any{"packets_sent": stats.PacketsSent},
		}
	}

	return &models.CheckResult{
		Healthy:   true,
		LatencyMs: stats.AvgRtt.Milliseconds(),
		Message:   fmt.Sprintf("%d/%d replies", stats.PacketsRecv, stats.PacketsSent),
		Details: map[string]any{
			"packets_sent": stats.PacketsSent,
			"packets_recv": stats.PacketsRecv,
			"packet_loss":  stats.PacketLoss,
		},
	}
}

func (c *PingChecker) run(ctx context.Context, privileged bool) (*probing.Statistics, error) {
	pinger, err := probing.NewPinger(c.host)
	if err != nil {
		return nil, err
	}
	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return pinger.Statistics(), nil
}
