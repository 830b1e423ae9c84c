package notify

import (
	"context"
	"fmt"
	"net/http"
)

const (
	discordUsername = "auctionhouse"
	// discordAlertColor is the embed sidebar colour, a dark red.
	discordAlertColor = 0xB00020
	// Discord rejects embed descriptions longer than this.
	discordMaxDescription = 4096
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordMentions struct {
	Parse []string `json:"parse"`
}

type discordPayload struct {
	Username        string          `json:"username"`
	Embeds          []discordEmbed  `json:"embeds"`
	AllowedMentions discordMentions `json:"allowed_mentions"`
}

// DiscordSender posts alerts to a Discord webhook as a single embed.
// Mentions are disabled: alert text carries actor ids, and an actor named
// "@everyone" must not page the whole channel.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: defaultHTTPClient()}
}

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	if len(message) > discordMaxDescription {
		message = message[:discordMaxDescription-3] + "..."
	}
	payload := discordPayload{
		Username: discordUsername,
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       discordAlertColor,
		}},
		AllowedMentions: discordMentions{Parse: []string{}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }
