package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gemini "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash-image-preview"

// GeminiClient calls generateContent through the Google Gen AI SDK.
type GeminiClient struct {
	client *gemini.Client
	model  string
}

// NewGeminiClient builds a Gemini API client. An empty endpoint uses the SDK's
// default base URL.
func NewGeminiClient(ctx context.Context, endpoint, model, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:      apiKey,
		Backend:     gemini.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: gemini.HTTPOptions{BaseURL: endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Name() string { return "gemini:" + c.model }

// Finish reasons that mean the model refused rather than failed.
var policyFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"IMAGE_SAFETY":       true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

func (c *GeminiClient) Repair(ctx context.Context, req Request) (*Result, error) {
	contents := []*gemini.Content{
		gemini.NewContentFromParts([]*gemini.Part{
			gemini.NewPartFromText(req.Prompt),
			gemini.NewPartFromBytes(req.Image, req.MIME),
		}, gemini.RoleUser),
	}
	config := &gemini.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, apiError(err)
	}
	slog.Debug("gemini response", "candidates", len(resp.Candidates), "duration", time.Since(start))

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", ErrPolicy, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrNoImage)
	}

	cand := resp.Candidates[0]
	result := &Result{Model: c.model}
	var texts []string
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
			if part.InlineData == nil || len(part.InlineData.Data) == 0 || result.Image != nil {
				continue
			}
			result.Image = part.InlineData.Data
			result.MIME = part.InlineData.MIMEType
		}
	}
	result.Text = strings.Join(texts, "\n")

	if reason := string(cand.FinishReason); !result.HasImage() && policyFinishReasons[reason] {
		return nil, fmt.Errorf("%w: finish reason %s", ErrPolicy, reason)
	}
	return result, nil
}

// apiError maps SDK errors onto the package's sentinel errors.
func apiError(err error) error {
	var value gemini.APIError
	if errors.As(err, &value) {
		return httpError(value)
	}
	var ptr *gemini.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return httpError(*ptr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBadResponse, err)
}

func httpError(e gemini.APIError) error {
	detail := fmt.Sprintf("HTTP %d %s: %s", e.Code, e.Status, e.Message)

	switch {
	case e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden ||
		e.Status == "PERMISSION_DENIED" || e.Status == "UNAUTHENTICATED" ||
		strings.Contains(strings.ToLower(e.Message), "api key"):
		return fmt.Errorf("%w: %s", ErrAuth, detail)
	default:
		return fmt.Errorf("gemini error: %s", detail)
	}
}
