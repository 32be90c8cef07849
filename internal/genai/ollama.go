package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient sends the repair request to a local Ollama server. Vision models
// served by Ollama answer in text only, so results never carry an image; it is
// still useful for describing what would be changed.
type OllamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

func NewOllamaClient(serverURL, model string, timeout time.Duration) (*OllamaClient, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", serverURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaClient{
		client:  api.NewClient(base, http.DefaultClient),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *OllamaClient) Name() string { return "ollama:" + c.model }

func (c *OllamaClient) Repair(ctx context.Context, req Request) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stream := false
	chat := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []api.ImageData{api.ImageData(req.Image)},
		}},
		Stream: &stream,
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, classifyOllama(err)
	}
	return &Result{Text: strings.TrimSpace(sb.String()), Model: c.model}, nil
}

func classifyOllama(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: ollama: %v", ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: ollama: %v", ErrAuth, err)
		}
	}
	return fmt.Errorf("ollama chat: %w", err)
}
