package alerter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/config"
)

// WebhookChannel posts notifications to an HTTP endpoint. The payload
// shape is picked from the URL: Slack and Discord webhooks get their
// native message formats, everything else a generic JSON document.
type WebhookChannel struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewWebhookChannel creates a new webhook channel
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

func (w *WebhookChannel) Name() string {
	if w.cfg.Name != "" {
		return "webhook:" + w.cfg.Name
	}
	return "webhook"
}

func (w *WebhookChannel) IsEnabled() bool {
	return w.cfg.Enabled && w.cfg.URL != ""
}

func (w *WebhookChannel) Send(n *Notification) error {
	if !w.IsEnabled() {
		return nil
	}

	var payload interface{}
	switch {
	case strings.Contains(w.cfg.URL, "hooks.slack.com"),
		strings.Contains(w.cfg.URL, "mattermost"):
		payload = slackPayload(n)
	case strings.Contains(w.cfg.URL, "discord.com/api/webhooks"),
		strings.Contains(w.cfg.URL, "discordapp.com/api/webhooks"):
		payload = discordPayload(n)
	default:
		payload = genericPayload(n)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SlackMessage is the Slack webhook payload
type SlackMessage struct {
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments"`
}

// SlackAttachment is a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField is a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func slackPayload(n *Notification) SlackMessage {
	return SlackMessage{
		Username:  DefaultUsername,
		IconEmoji: ":warning:",
		Attachments: []SlackAttachment{
			{
				Color: GetSlackColor(n.Severity),
				Title: n.Title,
				Text:  n.Body,
				Fields: []SlackField{
					{Title: "Targets", Value: FormatTargetList(n.Targets), Short: false},
					{Title: "Severity", Value: n.Severity, Short: true},
				},
				Footer:    FooterText,
				Timestamp: n.SentAt.Unix(),
			},
		},
	}
}

// DiscordMessage is the Discord webhook payload
type DiscordMessage struct {
	Username string         `json:"username,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed is a Discord embed
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

// DiscordEmbedFooter is a footer in a Discord embed
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

func discordPayload(n *Notification) DiscordMessage {
	return DiscordMessage{
		Username: DefaultUsername,
		Embeds: []DiscordEmbed{
			{
				Title:       n.Title,
				Description: n.Body,
				Color:       GetColorInt(n.Severity),
				Footer:      &DiscordEmbedFooter{Text: FooterText},
				Timestamp:   n.SentAt.Format(time.RFC3339),
			},
		},
	}
}

// GenericPayload is the JSON document posted to plain webhooks.
type GenericPayload struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	Targets   []string  `json:"targets"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

func genericPayload(n *Notification) GenericPayload {
	return GenericPayload{
		Title:     n.Title,
		Body:      n.Body,
		Severity:  n.Severity,
		Targets:   n.Targets,
		Timestamp: n.SentAt,
		Source:    DefaultUsername,
	}
}
