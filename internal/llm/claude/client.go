// Package claude implements the classify.Completer interface against the
// Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// systemPrompt frames the model as a classifier for every call.
	systemPrompt = "You are an email priority classifier."

	// responseTokens caps the answer; a label plus a short reason fits
	// comfortably.
	responseTokens = 256

	callTimeout = 60 * time.Second
)

// Client is a single-shot completion client. It makes exactly one API
// call per Complete and never retries or falls back; recovery is the
// caller's concern.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude completion client for the given API key and model.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(callTimeout),
		option.WithMaxRetries(0),
	}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete sends the prompt as a single user message and returns the
// concatenated text blocks of the answer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: messages.new: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("claude: response contained no text (stop_reason=%s)", msg.StopReason)
	}
	return out, nil
}
