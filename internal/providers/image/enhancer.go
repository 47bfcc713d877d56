// Package image adapts model providers to the photo enhancement action.
package image

import (
	"context"
	"errors"
	"sync"

	"ravelon/internal/providers/genai"
)

// Source is an uploaded photo.
type Source struct {
	Data      []byte
	MIME      string
	Filename  string
	RequestID string
}

// Enhanced is the provider's output.
type Enhanced struct {
	Data      []byte
	MIME      string
	Width     int
	Height    int
	Provider  string
	Synthetic bool
}

// Enhancer is the contract implemented by enhancement providers.
type Enhancer interface {
	Enhance(ctx context.Context, src Source) (*Enhanced, error)
}

// KeyResolver yields the Gemini API key to use for the next call.
type KeyResolver interface {
	ResolveGeminiKey(ctx context.Context, fallback string) (string, error)
}

// GeminiEnhancer calls Gemini with the key currently on record. The client is
// rebuilt only when the key rotates.
type GeminiEnhancer struct {
	opts genai.Options
	keys KeyResolver

	mu     sync.Mutex
	key    string
	client *genai.Client
}

// NewGeminiEnhancer returns an enhancer. keys may be nil, in which case
// opts.APIKey is used as-is.
func NewGeminiEnhancer(opts genai.Options, keys KeyResolver) *GeminiEnhancer {
	return &GeminiEnhancer{opts: opts, keys: keys}
}

func (g *GeminiEnhancer) Enhance(ctx context.Context, src Source) (*Enhanced, error) {
	if len(src.Data) == 0 {
		return nil, errors.New("image: empty source")
	}
	client, err := g.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	res, err := client.EnhanceImage(ctx, genai.EnhanceRequest{
		Data:      src.Data,
		MimeType:  src.MIME,
		RequestID: src.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Enhanced{
		Data:      res.Data,
		MIME:      res.MimeType,
		Width:     res.Width,
		Height:    res.Height,
		Provider:  "gemini:" + client.Model(),
		Synthetic: res.Synthetic,
	}, nil
}

func (g *GeminiEnhancer) clientFor(ctx context.Context) (*genai.Client, error) {
	key := g.opts.APIKey
	if g.keys != nil {
		resolved, err := g.keys.ResolveGeminiKey(ctx, g.opts.APIKey)
		if err != nil {
			return nil, err
		}
		key = resolved
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil && g.key == key {
		return g.client, nil
	}
	opts := g.opts
	opts.APIKey = key
	client, err := genai.NewClient(opts)
	if err != nil {
		return nil, err
	}
	g.client = client
	g.key = key
	return client, nil
}

var _ Enhancer = (*GeminiEnhancer)(nil)
