package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embed colours.
const (
	discordGreen = 0x2EB67D
	discordRed   = 0xE01E5A
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender delivers notifications as webhook embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
}

// Send posts one embed, red for rejections and failures. Discord answers 204.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	color := discordGreen
	if isFailure(title) {
		color = discordRed
	}
	err := postJSON(ctx, d.client, d.webhookURL, discordPayload{
		Username: "Averix",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       color,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func isFailure(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "rejected") || strings.Contains(t, "failed") || strings.Contains(t, "expired")
}
