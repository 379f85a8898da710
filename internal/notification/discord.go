// Package notification posts run summaries to Discord webhooks.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
	// Discord rejects embed descriptions longer than this.
	maxDescription = 4096
)

// Discord sends error and success embeds. An empty webhook URL disables that kind of message.
type Discord struct {
	errorURL   string
	successURL string
	client     *http.Client
}

func NewDiscord(errorURL, successURL string) *Discord {
	return &Discord{
		errorURL:   errorURL,
		successURL: successURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *Discord) Error(ctx context.Context, errorMessage string) error {
	return d.send(ctx, d.errorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("So weird… must be your problem.\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) Success(ctx context.Context, successMessage string) error {
	return d.send(ctx, d.successURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: fmt.Sprintf("Not sure how, but it worked...\n\n%s", successMessage),
		Color:       colorGreen,
	})
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	if len(embed.Description) > maxDescription {
		embed.Description = embed.Description[:maxDescription-3] + "..."
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
