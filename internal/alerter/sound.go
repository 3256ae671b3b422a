package alerter

import (
	"context"
	"os/exec"
	"time"

	"github.com/jiin/lookout/internal/config"
)

const defaultSoundFile = "/usr/share/sounds/freedesktop/stereo/dialog-warning.oga"

// SoundChannel plays an audible alert. It only reacts to notifications
// flagged with Sound, which the manager sets for failure groups.
type SoundChannel struct {
	cfg config.SoundConfig
}

// NewSoundChannel creates a new sound channel
func NewSoundChannel(cfg config.SoundConfig) *SoundChannel {
	return &SoundChannel{cfg: cfg}
}

func (s *SoundChannel) Name() string {
	return "sound"
}

func (s *SoundChannel) IsEnabled() bool {
	return s.cfg.Enabled
}

func (s *SoundChannel) Send(n *Notification) error {
	if !s.IsEnabled() || !n.Sound {
		return nil
	}

	player := s.cfg.Player
	if player == "" {
		player = "paplay"
	}
	file := s.cfg.File
	if file == "" {
		file = defaultSoundFile
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, player, file).Run()
}
