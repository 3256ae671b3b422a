package config

import (
	"crypto/md5"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jiin/lookout/internal/models"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging,omitempty"`
	Retention     RetentionConfig    `mapstructure:"retention" yaml:"retention,omitempty"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring,omitempty"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications,omitempty"`
	Healing       HealingConfig      `mapstructure:"healing" yaml:"healing,omitempty"`
	Targets       []models.Target    `mapstructure:"targets" yaml:"targets"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`   // debug, info, warn, error (default: info)
	Format string `mapstructure:"format" yaml:"format,omitempty"` // text, json (default: text)
	Output string `mapstructure:"output" yaml:"output,omitempty"` // stdout, stderr, or file path
}

type RetentionConfig struct {
	MaxAge          string `mapstructure:"max_age" yaml:"max_age,omitempty"`
	CleanupInterval string `mapstructure:"cleanup_interval" yaml:"cleanup_interval,omitempty"`
}

func (r *RetentionConfig) GetMaxAge() time.Duration {
	return parseDurationWithDays(r.MaxAge, 30*24*time.Hour)
}

func (r *RetentionConfig) GetCleanupInterval() time.Duration {
	return parseDurationWithDays(r.CleanupInterval, time.Hour)
}

// MonitoringConfig tunes the check scheduler.
type MonitoringConfig struct {
	DefaultInterval      time.Duration `mapstructure:"default_interval" yaml:"default_interval,omitempty"`
	DefaultTimeout       time.Duration `mapstructure:"default_timeout" yaml:"default_timeout,omitempty"`
	MinInterval          time.Duration `mapstructure:"min_interval" yaml:"min_interval,omitempty"`
	MaxInterval          time.Duration `mapstructure:"max_interval" yaml:"max_interval,omitempty"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl,omitempty"`
	MaxWorkers           int           `mapstructure:"max_workers" yaml:"max_workers,omitempty"`
	SummaryInterval      time.Duration `mapstructure:"summary_interval" yaml:"summary_interval,omitempty"`
	ConnectivityInterval time.Duration `mapstructure:"connectivity_interval" yaml:"connectivity_interval,omitempty"`
	AdaptiveIntervals    *bool         `mapstructure:"adaptive_intervals" yaml:"adaptive_intervals,omitempty"`
}

func (m *MonitoringConfig) GetDefaultInterval() time.Duration {
	if m.DefaultInterval <= 0 {
		return 30 * time.Second
	}
	return m.DefaultInterval
}

func (m *MonitoringConfig) GetDefaultTimeout() time.Duration {
	if m.DefaultTimeout <= 0 {
		return 5 * time.Second
	}
	return m.DefaultTimeout
}

func (m *MonitoringConfig) GetMinInterval() time.Duration {
	if m.MinInterval <= 0 {
		return 10 * time.Second
	}
	return m.MinInterval
}

func (m *MonitoringConfig) GetMaxInterval() time.Duration {
	if m.MaxInterval <= 0 {
		return 60 * time.Second
	}
	return m.MaxInterval
}

func (m *MonitoringConfig) GetCacheTTL() time.Duration {
	if m.CacheTTL <= 0 {
		return 5 * time.Second
	}
	return m.CacheTTL
}

func (m *MonitoringConfig) GetMaxWorkers() int {
	if m.MaxWorkers <= 0 {
		return 8
	}
	return m.MaxWorkers
}

func (m *MonitoringConfig) GetSummaryInterval() time.Duration {
	if m.SummaryInterval <= 0 {
		return 30 * time.Second
	}
	return m.SummaryInterval
}

func (m *MonitoringConfig) GetConnectivityInterval() time.Duration {
	if m.ConnectivityInterval <= 0 {
		return time.Minute
	}
	return m.ConnectivityInterval
}

func (m *MonitoringConfig) AdaptiveEnabled() bool {
	if m.AdaptiveIntervals == nil {
		return true
	}
	return *m.AdaptiveIntervals
}

// NotificationConfig holds alerting and notification settings.
type NotificationConfig struct {
	Enabled        bool            `mapstructure:"enabled" yaml:"enabled"`
	Cooldown       time.Duration   `mapstructure:"cooldown" yaml:"cooldown,omitempty"`
	DebounceWindow time.Duration   `mapstructure:"debounce_window" yaml:"debounce_window,omitempty"`
	FlapWindow     time.Duration   `mapstructure:"flap_window" yaml:"flap_window,omitempty"`
	FlapThreshold  int             `mapstructure:"flap_threshold" yaml:"flap_threshold,omitempty"`
	AckTTL         time.Duration   `mapstructure:"ack_ttl" yaml:"ack_ttl,omitempty"`
	MinGap         time.Duration   `mapstructure:"min_gap" yaml:"min_gap,omitempty"`
	Channels       ChannelsConfig  `mapstructure:"channels" yaml:"channels,omitempty"`
	SlowAlerts     SlowAlertConfig `mapstructure:"slow_alerts" yaml:"slow_alerts,omitempty"`
}

func (n *NotificationConfig) GetCooldown() time.Duration {
	if n.Cooldown <= 0 {
		return 5 * time.Minute
	}
	return n.Cooldown
}

func (n *NotificationConfig) GetDebounceWindow() time.Duration {
	if n.DebounceWindow <= 0 {
		return 5 * time.Second
	}
	return n.DebounceWindow
}

func (n *NotificationConfig) GetFlapWindow() time.Duration {
	if n.FlapWindow <= 0 {
		return 10 * time.Minute
	}
	return n.FlapWindow
}

func (n *NotificationConfig) GetFlapThreshold() int {
	if n.FlapThreshold <= 0 {
		return 3
	}
	return n.FlapThreshold
}

func (n *NotificationConfig) GetAckTTL() time.Duration {
	if n.AckTTL <= 0 {
		return time.Hour
	}
	return n.AckTTL
}

// GetMinGap returns the minimum gap between identical notifications.
func (n *NotificationConfig) GetMinGap() time.Duration {
	if n.MinGap <= 0 {
		return time.Minute
	}
	return n.MinGap
}

// SlowAlertConfig controls degraded alerts for slow but healthy targets.
type SlowAlertConfig struct {
	Enabled     bool  `mapstructure:"enabled" yaml:"enabled"`
	ThresholdMs int64 `mapstructure:"threshold_ms" yaml:"threshold_ms,omitempty"`
}

func (s *SlowAlertConfig) GetThresholdMs() int64 {
	if s.ThresholdMs <= 0 {
		return 2000
	}
	return s.ThresholdMs
}

// ChannelsConfig holds all notification channel configurations
type ChannelsConfig struct {
	Desktop  DesktopConfig   `mapstructure:"desktop" yaml:"desktop,omitempty"`
	Sound    SoundConfig     `mapstructure:"sound" yaml:"sound,omitempty"`
	Webhooks []WebhookConfig `mapstructure:"webhooks" yaml:"webhooks,omitempty"`
	Email    EmailConfig     `mapstructure:"email" yaml:"email,omitempty"`
}

// EmailConfig holds email notification settings
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host" yaml:"smtp_host,omitempty"`
	SMTPPort int      `mapstructure:"smtp_port" yaml:"smtp_port,omitempty"`
	Username string   `mapstructure:"username" yaml:"username,omitempty"`
	Password string   `mapstructure:"password" yaml:"password,omitempty"`
	From     string   `mapstructure:"from" yaml:"from,omitempty"`
	To       []string `mapstructure:"to" yaml:"to,omitempty"`
	UseTLS   bool     `mapstructure:"use_tls" yaml:"use_tls,omitempty"`
}

// DesktopConfig holds desktop notification settings
type DesktopConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Command  string `mapstructure:"command" yaml:"command,omitempty"`   // defaults to notify-send
	Urgency  string `mapstructure:"urgency" yaml:"urgency,omitempty"`   // low, normal, critical
	IconName string `mapstructure:"icon" yaml:"icon,omitempty"`
}

// SoundConfig holds audible alert settings
type SoundConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Player  string `mapstructure:"player" yaml:"player,omitempty"` // defaults to paplay
	File    string `mapstructure:"file" yaml:"file,omitempty"`
}

// WebhookConfig holds one webhook notification endpoint. The payload
// format is derived from the URL (Slack and Discord get native shapes).
type WebhookConfig struct {
	Name    string            `mapstructure:"name" yaml:"name,omitempty"`
	Enabled bool              `mapstructure:"enabled" yaml:"enabled"`
	URL     string            `mapstructure:"url" yaml:"url,omitempty"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Timeout time.Duration     `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

func (w *WebhookConfig) GetTimeout() time.Duration {
	if w.Timeout <= 0 {
		return 10 * time.Second
	}
	return w.Timeout
}

// HealingConfig holds self-healing settings.
type HealingConfig struct {
	Enabled            bool                `mapstructure:"enabled" yaml:"enabled"`
	MaxAttempts        int                 `mapstructure:"max_attempts" yaml:"max_attempts,omitempty"`
	MaxFailuresPerHour int                 `mapstructure:"max_failures_per_hour" yaml:"max_failures_per_hour,omitempty"`
	BaseBackoff        time.Duration       `mapstructure:"base_backoff" yaml:"base_backoff,omitempty"`
	MaxBackoff         time.Duration       `mapstructure:"max_backoff" yaml:"max_backoff,omitempty"`
	BoostDuration      time.Duration       `mapstructure:"boost_duration" yaml:"boost_duration,omitempty"`
	Dependencies       map[string][]string `mapstructure:"dependencies" yaml:"dependencies,omitempty"`
	Maintenance        MaintenanceConfig   `mapstructure:"maintenance" yaml:"maintenance,omitempty"`
}

func (h *HealingConfig) GetMaxAttempts() int {
	if h.MaxAttempts <= 0 {
		return 3
	}
	return h.MaxAttempts
}

func (h *HealingConfig) GetMaxFailuresPerHour() int {
	if h.MaxFailuresPerHour <= 0 {
		return 5
	}
	return h.MaxFailuresPerHour
}

func (h *HealingConfig) GetBaseBackoff() time.Duration {
	if h.BaseBackoff <= 0 {
		return 30 * time.Second
	}
	return h.BaseBackoff
}

func (h *HealingConfig) GetMaxBackoff() time.Duration {
	if h.MaxBackoff <= 0 {
		return 5 * time.Minute
	}
	return h.MaxBackoff
}

func (h *HealingConfig) GetBoostDuration() time.Duration {
	if h.BoostDuration <= 0 {
		return 10 * time.Minute
	}
	return h.BoostDuration
}

// MaintenanceConfig holds the global maintenance switch plus scheduled
// windows during which alerting and healing are suppressed.
type MaintenanceConfig struct {
	Enabled bool                `mapstructure:"enabled" yaml:"enabled"`
	Windows []MaintenanceWindow `mapstructure:"windows" yaml:"windows,omitempty"`
}

// MaintenanceWindow is a recurring daily window, e.g. Start "02:00",
// End "04:00", Days ["sat", "sun"]. Empty Days means every day.
type MaintenanceWindow struct {
	Start string   `mapstructure:"start" yaml:"start"`
	End   string   `mapstructure:"end" yaml:"end"`
	Days  []string `mapstructure:"days" yaml:"days,omitempty"`
}

// Contains reports whether t falls inside the window.
func (w *MaintenanceWindow) Contains(t time.Time) bool {
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}

	if len(w.Days) > 0 {
		day := dayAbbrev(t.Weekday())
		found := false
		for _, d := range w.Days {
			if normalizeDay(d) == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	minutes := t.Hour()*60 + t.Minute()
	if start <= end {
		return minutes >= start && minutes < end
	}
	// Window crosses midnight
	return minutes >= start || minutes < end
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

func dayAbbrev(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "mon"
	case time.Tuesday:
		return "tue"
	case time.Wednesday:
		return "wed"
	case time.Thursday:
		return "thu"
	case time.Friday:
		return "fri"
	case time.Saturday:
		return "sat"
	default:
		return "sun"
	}
}

func normalizeDay(s string) string {
	if len(s) >= 3 {
		s = s[:3]
	}
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func parseDurationWithDays(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

type ServerConfig struct {
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Port    int   `mapstructure:"port" yaml:"port"`
}

func (s *ServerConfig) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

type StorageConfig struct {
	StatusPath  string `mapstructure:"status_path" yaml:"status_path"`
	AlertDBPath string `mapstructure:"alert_db_path" yaml:"alert_db_path"`
}

// Validate checks structural target errors that would otherwise surface
// only at check time.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name '%s'", t.Name)
		}
		seen[t.Name] = true

		switch t.Kind {
		case models.KindHTTP, models.KindTCP, models.KindPing:
			if t.Host == "" {
				return fmt.Errorf("target '%s': host is required for %s checks", t.Name, t.Kind)
			}
		case models.KindCustom:
			if t.Custom == nil || t.Custom.Command == "" {
				return fmt.Errorf("target '%s': custom checks require a command", t.Name)
			}
		case models.KindContainers:
			if t.Containers == nil || len(t.Containers.Names) == 0 {
				return fmt.Errorf("target '%s': container checks require container names", t.Name)
			}
		default:
			return fmt.Errorf("target '%s': unknown check type '%s'", t.Name, t.Kind)
		}
	}
	return nil
}

// Manager handles configuration with hot reload support
type Manager struct {
	mu           sync.RWMutex
	config       *Config
	callbacks    []func(*Config)
	configPath   string
	lastHash     string
	pollInterval time.Duration
	stopPolling  chan struct{}
}

// NewManager creates a new config manager with hot reload
func NewManager(path string) (*Manager, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Calculate initial hash
	initialHash, _ := fileHash(path)

	m := &Manager{
		config:       &cfg,
		callbacks:    make([]func(*Config), 0),
		configPath:   path,
		lastHash:     initialHash,
		pollInterval: 5 * time.Second, // Poll every 5 seconds
		stopPolling:  make(chan struct{}),
	}

	// Watch for config changes (fsnotify - works on native filesystems)
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed (fsnotify): %s", e.Name)
		m.reload()
		m.updateHash()
	})
	viper.WatchConfig()

	// Start polling for Docker/mounted volume environments
	go m.pollForChanges()

	log.Printf("Config hot-reload enabled (fsnotify + polling every %v)", m.pollInterval)

	return m, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("storage.status_path", "./data/status.json")
	viper.SetDefault("storage.alert_db_path", "./data/alerts.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// fileHash calculates MD5 hash of a file
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// pollForChanges polls the config file for changes (Docker-friendly)
func (m *Manager) pollForChanges() {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			currentHash, err := fileHash(m.configPath)
			if err != nil {
				log.Printf("Config polling: failed to hash file: %v", err)
				continue
			}

			m.mu.RLock()
			lastHash := m.lastHash
			m.mu.RUnlock()

			if currentHash != lastHash {
				log.Printf("Config file changed (polling detected)")
				m.reload()
				m.updateHash()
			}
		case <-m.stopPolling:
			return
		}
	}
}

// updateHash updates the stored file hash
func (m *Manager) updateHash() {
	hash, err := fileHash(m.configPath)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.lastHash = hash
	m.mu.Unlock()
}

// Stop stops the config manager polling
func (m *Manager) Stop() {
	close(m.stopPolling)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers a callback for config changes
func (m *Manager) OnReload(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) reload() {
	// Re-read config file first (viper caches values)
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Failed to re-read config file: %v", err)
		return
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Printf("Failed to unmarshal config: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Rejecting invalid config reload: %v", err)
		return
	}

	log.Printf("Config reloaded: %d targets", len(cfg.Targets))

	m.mu.Lock()
	m.config = &cfg
	callbacks := m.callbacks
	m.mu.Unlock()

	// Notify callbacks
	for _, cb := range callbacks {
		cb(&cfg)
	}
}

// Load reads a config file once, without hot reload.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveConfig saves the current configuration to file
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	cfg := m.config
	callbacks := m.callbacks
	m.mu.RUnlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Update hash to prevent duplicate reload from file watcher
	m.updateHash()

	log.Printf("Config saved to %s", m.configPath)

	// Immediately notify callbacks about the config change
	// (file watcher won't trigger because hash was updated)
	for _, cb := range callbacks {
		cb(cfg)
	}

	return nil
}

// AddTarget adds a new target to the configuration and persists it.
func (m *Manager) AddTarget(target models.Target) error {
	m.mu.Lock()

	// Check for duplicate name
	for _, t := range m.config.Targets {
		if t.Name == target.Name {
			m.mu.Unlock()
			return fmt.Errorf("target with name '%s' already exists", target.Name)
		}
	}

	m.config.Targets = append(m.config.Targets, target)
	m.mu.Unlock()

	return m.SaveConfig()
}

// UpdateTarget updates an existing target and persists the change.
func (m *Manager) UpdateTarget(name string, target models.Target) error {
	m.mu.Lock()

	for i, t := range m.config.Targets {
		if t.Name == name {
			// If name changed, check for duplicates
			if target.Name != name {
				for _, other := range m.config.Targets {
					if other.Name == target.Name {
						m.mu.Unlock()
						return fmt.Errorf("target with name '%s' already exists", target.Name)
					}
				}
			}
			m.config.Targets[i] = target
			m.mu.Unlock()
			return m.SaveConfig()
		}
	}

	m.mu.Unlock()
	return fmt.Errorf("target '%s' not found", name)
}

// DeleteTarget removes a target from the configuration and persists
// the change.
func (m *Manager) DeleteTarget(name string) error {
	m.mu.Lock()

	for i, t := range m.config.Targets {
		if t.Name == name {
			m.config.Targets = append(m.config.Targets[:i], m.config.Targets[i+1:]...)
			m.mu.Unlock()
			return m.SaveConfig()
		}
	}

	m.mu.Unlock()
	return fmt.Errorf("target '%s' not found", name)
}

// GetTarget returns a target by name
func (m *Manager) GetTarget(name string) (*models.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.config.Targets {
		if t.Name == name {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("target '%s' not found", name)
}

// GetAllTargets returns all targets
func (m *Manager) GetAllTargets() []models.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Target, len(m.config.Targets))
	copy(result, m.config.Targets)
	return result
}

// SetMaintenanceMode flips the global maintenance switch in memory.
func (m *Manager) SetMaintenanceMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Healing.Maintenance.Enabled = enabled
}

// InMaintenance reports whether alerting and healing are currently
// suppressed, either by the global switch or a scheduled window.
func (m *Manager) InMaintenance(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mw := m.config.Healing.Maintenance
	if mw.Enabled {
		return true
	}
	for i := range mw.Windows {
		if mw.Windows[i].Contains(now) {
			return true
		}
	}
	return false
}
