package checker

import (
	"context"
	"net"
	"time"
)

const internetProbeTimeout = 3 * time.Second

// Probe seams, replaced in tests.
var (
	resolveProbe = func(ctx context.Context) error {
		_, err := net.DefaultResolver.LookupHost(ctx, "google.com")
		return err
	}
	dialProbe = func(ctx context.Context) error {
		dialer := &net.Dialer{Timeout: internetProbeTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", "8.8.8.8:53")
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}
)

// CheckInternet reports whether the machine has working connectivity.
// DNS resolution of a well-known name is enough to call the network
// up; when it fails, a raw connect to a public resolver covers
// DNS-only outages with working routing.
func CheckInternet(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, internetProbeTimeout)
	defer cancel()

	if err := resolveProbe(probeCtx); err == nil {
		return true
	}
	return dialProbe(ctx) == nil
}
