package models

import "time"

// Check kinds
const (
	KindHTTP       = "http"
	KindTCP        = "tcp"
	KindPing       = "ping"
	KindCustom     = "custom"
	KindContainers = "containers"
)

// DefaultExpectedStatusCodes are the HTTP codes treated as healthy when a
// target does not configure its own set. 401 is included for auth-gated APIs.
var DefaultExpectedStatusCodes = []int{200, 201, 202, 204, 301, 302, 304, 401}

// Target is one monitored entity. The envelope fields are common to every
// protocol; exactly one params struct matching Kind carries the
// protocol-specific settings.
type Target struct {
	Name     string        `json:"name" mapstructure:"name" yaml:"name"`
	Host     string        `json:"host" mapstructure:"host" yaml:"host"`
	Kind     string        `json:"type" mapstructure:"type" yaml:"type"`
	Interval time.Duration `json:"interval" mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
	Group    string        `json:"group,omitempty" mapstructure:"group" yaml:"group,omitempty"`
	Enabled  *bool         `json:"enabled,omitempty" mapstructure:"enabled" yaml:"enabled,omitempty"`

	HTTP       *HTTPParams       `json:"http,omitempty" mapstructure:"http" yaml:"http,omitempty"`
	TCP        *TCPParams        `json:"tcp,omitempty" mapstructure:"tcp" yaml:"tcp,omitempty"`
	Ping       *PingParams       `json:"ping,omitempty" mapstructure:"ping" yaml:"ping,omitempty"`
	Custom     *CustomParams     `json:"custom,omitempty" mapstructure:"custom" yaml:"custom,omitempty"`
	Containers *ContainerParams  `json:"containers,omitempty" mapstructure:"containers" yaml:"containers,omitempty"`
	Healing    *HealingOverrides `json:"healing,omitempty" mapstructure:"healing" yaml:"healing,omitempty"`
}

// IsEnabled returns whether the target is enabled (defaults to true).
func (t *Target) IsEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// HTTPParams holds HTTP/HTTPS probe settings.
type HTTPParams struct {
	Port                int               `json:"port,omitempty" mapstructure:"port" yaml:"port,omitempty"`
	Endpoint            string            `json:"endpoint,omitempty" mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ExpectedStatusCodes []int             `json:"expected_status_codes,omitempty" mapstructure:"expected_status_codes" yaml:"expected_status_codes,omitempty"`
	ExpectedContent     string            `json:"expected_content,omitempty" mapstructure:"expected_content" yaml:"expected_content,omitempty"`
	Headers             map[string]string `json:"headers,omitempty" mapstructure:"headers" yaml:"headers,omitempty"`
}

// ExpectedCodes returns the configured code set or the default.
func (p *HTTPParams) ExpectedCodes() []int {
	if p != nil && len(p.ExpectedStatusCodes) > 0 {
		return p.ExpectedStatusCodes
	}
	return DefaultExpectedStatusCodes
}

// TCPParams holds TCP connect probe settings.
type TCPParams struct {
	Port       int    `json:"port,omitempty" mapstructure:"port" yaml:"port,omitempty"`
	SendData   string `json:"send_data,omitempty" mapstructure:"send_data" yaml:"send_data,omitempty"`
	ExpectData string `json:"expect_data,omitempty" mapstructure:"expect_data" yaml:"expect_data,omitempty"`
}

// PingParams holds ICMP probe settings.
type PingParams struct {
	Count int `json:"count,omitempty" mapstructure:"count" yaml:"count,omitempty"`
}

// CustomParams holds a command-based probe.
type CustomParams struct {
	Command string `json:"command" mapstructure:"command" yaml:"command"`
}

// ContainerParams names the containers that make up a container-group target.
// The group is satisfied by one shared enumeration per scheduler cycle.
type ContainerParams struct {
	Names []string `json:"names" mapstructure:"names" yaml:"names"`
}

// HealingOverrides are per-target self-healing settings.
type HealingOverrides struct {
	AutoRestart    *bool  `json:"auto_restart,omitempty" mapstructure:"auto_restart" yaml:"auto_restart,omitempty"`
	RestartCommand string `json:"restart_command,omitempty" mapstructure:"restart_command" yaml:"restart_command,omitempty"`
}

// AutoRestartEnabled returns whether auto restart is allowed for the target
// (defaults to true when unset).
func (h *HealingOverrides) AutoRestartEnabled() bool {
	if h == nil || h.AutoRestart == nil {
		return true
	}
	return *h.AutoRestart
}
