package alerter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// Common constants for notification channels
const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultUsername    = "Lookout"
	FooterText         = "Lookout Monitor"

	// maxNamedTargets caps how many target names appear in a grouped
	// notification body before "+N more".
	maxNamedTargets = 3
)

// Emojis for different severity levels
const (
	EmojiCritical = "🚨"
	EmojiWarning  = "⚠️"
	EmojiInfo     = "ℹ️"
	EmojiResolved = "✅"
)

// Severity colors (hex strings for Slack/Mattermost)
const (
	ColorCritical = "#E74C3C"
	ColorWarning  = "#F39C12"
	ColorInfo     = "#3498DB"
	ColorResolved = "#2ECC71"
)

// Severity colors (int for Discord)
const (
	ColorCriticalInt = 0xE74C3C
	ColorWarningInt  = 0xF39C12
	ColorInfoInt     = 0x3498DB
	ColorResolvedInt = 0x2ECC71
)

// GetEmoji returns an emoji based on severity
func GetEmoji(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return EmojiCritical
	case models.SeverityWarning:
		return EmojiWarning
	default:
		return EmojiInfo
	}
}

// GetColorString returns a hex color string based on severity
func GetColorString(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return ColorCritical
	case models.SeverityWarning:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// GetColorInt returns an int color for Discord based on severity
func GetColorInt(severity string) int {
	switch severity {
	case models.SeverityCritical:
		return ColorCriticalInt
	case models.SeverityWarning:
		return ColorWarningInt
	default:
		return ColorInfoInt
	}
}

// GetSlackColor returns Slack-specific color names
func GetSlackColor(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityWarning:
		return "warning"
	default:
		return ColorInfo
	}
}

// NewHTTPClient creates a standard HTTP client for notification channels
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultHTTPTimeout,
	}
}

// PostJSON sends a JSON payload to a URL
func PostJSON(client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain body for connection reuse
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil
}

// FormatTargetList renders the names of affected targets, capping the
// list at maxNamedTargets with a "+N more" suffix.
func FormatTargetList(names []string) string {
	if len(names) <= maxNamedTargets {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s +%d more",
		strings.Join(names[:maxNamedTargets], ", "), len(names)-maxNamedTargets)
}

// FormatGroupTitle builds a title such as "🚨 3 services down".
func FormatGroupTitle(status string, count int) string {
	noun := "service"
	if count != 1 {
		noun = "services"
	}

	switch status {
	case models.StatusDown:
		return fmt.Sprintf("%s %d %s down", EmojiCritical, count, noun)
	case models.StatusDegraded:
		return fmt.Sprintf("%s %d %s degraded", EmojiWarning, count, noun)
	case models.StatusOperational:
		return fmt.Sprintf("%s %d %s recovered", EmojiResolved, count, noun)
	default:
		return fmt.Sprintf("%s %d %s %s", EmojiInfo, count, noun, status)
	}
}
