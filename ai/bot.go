// Package ai provides HTTP clients for the assistant bot and the
// translation backend. Both are best-effort collaborators: callers treat
// failures as degraded service, never as fatal errors.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"educhat/errors"
)

const systemPrompt = "You are a helpful educational assistant embedded in a " +
	"school messaging app. Answer briefly and in the language of the question."

// BotConfig configures the chat-completions backend.
type BotConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Bot talks to an OpenAI-compatible chat-completions endpoint.
type Bot struct {
	cfg    BotConfig
	client *http.Client
	log    *slog.Logger
}

func NewBot(cfg BotConfig, log *slog.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply asks the backend for an answer to the user's message. The language
// hint is appended to the system prompt so short inputs do not get answered
// in the wrong language.
func (b *Bot) Reply(ctx context.Context, message, language string) (string, error) {
	prompt := systemPrompt
	if language != "" {
		prompt = fmt.Sprintf("%s The user writes in %q.", systemPrompt, language)
	}

	body, err := json.Marshal(chatRequest{
		Model: b.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: message},
		},
		MaxTokens: 150,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrBotUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errors.ErrBotUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrBotUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", errors.ErrBotUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}
