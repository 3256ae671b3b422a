package checker

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// TCPChecker probes a plain TCP port. A payload exchange can be
// configured; it is best effort and never fails an already-established
// connection.
type TCPChecker struct {
	name    string
	address string
	params  models.TCPParams
	timeout time.Duration
}

func NewTCPChecker(t models.Target, timeout time.Duration) *TCPChecker {
	var params models.TCPParams
	if t.TCP != nil {
		params = *t.TCP
	}
	port := params.Port
	if port <= 0 {
		port = 80
	}

	return &TCPChecker{
		name:    t.Name,
		address: net.JoinHostPort(t.Host, fmt.Sprintf("%d", port)),
		params:  params,
		timeout: timeout,
	}
}

func (c *TCPChecker) Name() string {
	return c.name
}

func (c *TCPChecker) Check(ctx context.Context) *models.CheckResult {
	dialer := &net.Dialer{Timeout: c.timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	latency := time.Since(start)
	if err != nil {
		return failure(classifyNetErr(err), latency)
	}
	defer conn.Close()

	result := &models.CheckResult{
		Healthy:   true,
		LatencyMs: latency.Milliseconds(),
		Message:   "Port open",
		Details:   map[string]any{"address": c.address},
	}

	if c.params.SendData != "" {
		conn.SetDeadline(time.Now().Add(c.timeout))
		if _, err := conn.Write([]byte(c.params.SendData)); err != nil {
			return result
		}
		if c.params.ExpectData != "" {
			buf := make([]byte, 256)
			n, err := conn.Read(buf)
			if err != nil {
				return result
			}
			if !strings.Contains(string(buf[:n]), c.params.ExpectData) {
				result.Healthy = false
				result.Message = fmt.Sprintf("Unexpected response (expected %q)", c.params.ExpectData)
			}
		}
	}

	return result
}
