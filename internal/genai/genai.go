// Package genai talks to the generative image models that perform the repair.
package genai

import (
	"context"
	"errors"
)

var (
	ErrRateLimited = errors.New("generative backend rate limited")
	ErrAuth        = errors.New("generative backend rejected the credentials")
	ErrPolicy      = errors.New("request refused by content policy")
	ErrNoImage     = errors.New("model returned no image")
	ErrBadResponse = errors.New("malformed model response")
)

// Request is one repair call: the source image and the full text prompt.
type Request struct {
	Image  []byte
	MIME   string
	Prompt string
}

// Result carries whatever the model sent back. Image is nil when the model
// only answered with text.
type Result struct {
	Image []byte
	MIME  string
	Text  string
	Model string
}

// HasImage reports whether the model produced an image.
func (r *Result) HasImage() bool {
	return r != nil && len(r.Image) > 0
}

// Generator is implemented by every model backend.
type Generator interface {
	Repair(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Category groups failures into the cases the user is told about separately.
type Category string

const (
	CategoryNone        Category = ""
	CategoryRateLimited Category = "rate_limited"
	CategoryAuth        Category = "auth"
	CategoryPolicy      Category = "policy"
	CategoryNoImage     Category = "no_image"
	CategoryTimeout     Category = "timeout"
	CategoryFailed      Category = "failed"
)

// Classify maps an error returned by a Generator to its Category.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	case errors.Is(err, ErrAuth):
		return CategoryAuth
	case errors.Is(err, ErrPolicy):
		return CategoryPolicy
	case errors.Is(err, ErrNoImage):
		return CategoryNoImage
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return CategoryFailed
	}
}

// Message returns the text shown to the user for a failure category.
func (c Category) Message() string {
	switch c {
	case CategoryRateLimited:
		return "The image service is busy or the quota is used up. Please wait a moment and try again."
	case CategoryAuth:
		return "The image service rejected the server's API key. Ask the administrator to check the configuration."
	case CategoryPolicy:
		return "The request was declined by the image service's content policy. Try different regions or wording."
	case CategoryNoImage:
		return "The model answered without an edited image."
	case CategoryTimeout:
		return "The image service took too long to respond."
	case CategoryFailed:
		return "The repair failed. Please try again."
	default:
		return ""
	}
}
