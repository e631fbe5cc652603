// Package notification fans alerts out to external channels. Every provider
// implements alerts.Sink; the Manager is itself a Sink aggregating them.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"futures-sentinel/internal/alerts"
)

// Notifier is a single delivery channel
type Notifier interface {
	Send(alert *alerts.Alert) error
	Name() string
	IsEnabled() bool
}

// Manager fans a single alert out to all enabled providers. Delivery
// failures are aggregated; one failing channel never blocks the others.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates an empty notification manager
func NewManager() *Manager {
	return &Manager{notifiers: make([]Notifier, 0)}
}

// AddNotifier registers a delivery channel
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// HasNotifiers reports whether any enabled channel is registered
func (m *Manager) HasNotifiers() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// Send delivers the alert to all enabled providers, returning the last error
func (m *Manager) Send(alert *alerts.Alert) error {
	var lastErr error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(alert); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}
	return lastErr
}

func severityEmoji(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "🚨"
	case alerts.SeverityWarn:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// TelegramNotifier sends alerts via the Telegram bot API
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(alert *alerts.Alert) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("%s *%s*\n\n%s", severityEmoji(alert.Severity), alert.Title, alert.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// DiscordNotifier sends alerts via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(alert *alerts.Alert) error {
	if !d.enabled {
		return nil
	}

	color := 0x3498DB // blue
	switch alert.Severity {
	case alerts.SeverityWarn:
		color = 0xF1C40F // yellow
	case alerts.SeverityCritical:
		color = 0xFF0000 // red
	}

	embed := map[string]interface{}{
		"title":       fmt.Sprintf("%s %s", severityEmoji(alert.Severity), alert.Title),
		"description": alert.Message,
		"color":       color,
		"timestamp":   alert.CreatedAt.Format(time.RFC3339),
	}

	var fields []map[string]interface{}
	if alert.Symbol != "" {
		fields = append(fields, map[string]interface{}{
			"name": "Symbol", "value": alert.Symbol, "inline": true,
		})
	}
	fields = append(fields, map[string]interface{}{
		"name": "Type", "value": string(alert.Type), "inline": true,
	})
	embed["fields"] = fields

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
