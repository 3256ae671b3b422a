package alerter

import (
	"context"
	"os/exec"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/models"
)

const desktopSendTimeout = 5 * time.Second

// DesktopChannel shows notifications through the desktop notification
// daemon (notify-send by default).
type DesktopChannel struct {
	cfg config.DesktopConfig
}

// NewDesktopChannel creates a new desktop channel
func NewDesktopChannel(cfg config.DesktopConfig) *DesktopChannel {
	return &DesktopChannel{cfg: cfg}
}

func (d *DesktopChannel) Name() string {
	return "desktop"
}

func (d *DesktopChannel) IsEnabled() bool {
	return d.cfg.Enabled
}

func (d *DesktopChannel) Send(n *Notification) error {
	if !d.IsEnabled() {
		return nil
	}

	command := d.cfg.Command
	if command == "" {
		command = "notify-send"
	}

	args := []string{"-u", d.urgency(n.Severity)}
	if d.cfg.IconName != "" {
		args = append(args, "-i", d.cfg.IconName)
	}
	args = append(args, n.Title, n.Body)

	ctx, cancel := context.WithTimeout(context.Background(), desktopSendTimeout)
	defer cancel()
	return exec.CommandContext(ctx, command, args...).Run()
}

func (d *DesktopChannel) urgency(severity string) string {
	if d.cfg.Urgency != "" {
		return d.cfg.Urgency
	}
	switch severity {
	case models.SeverityCritical:
		return "critical"
	case models.SeverityWarning:
		return "normal"
	default:
		return "low"
	}
}
