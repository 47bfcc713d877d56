package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ravelon/internal/infra"
)

// EnhancePrompt is the instruction sent with every enhancement request.
const EnhancePrompt = "Enhance photo quality, sharpen image, improve lighting, smooth skin lightly, keep natural and realistic. Output the result as an image."

var (
	// ErrNoImage is returned when the model answers without an image part.
	ErrNoImage = errors.New("The AI enhanced the image but did not return a visual output. Please try again.")
	// ErrBlocked is returned when the model refused the image on safety grounds.
	ErrBlocked = errors.New("genai: image blocked by safety filters")
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a small facade over the Gemini generateContent endpoint. Without
// an API key it runs in synthetic mode and echoes the input re-encoded as PNG,
// which keeps local and CI environments usable.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// EnhanceRequest carries the source image.
type EnhanceRequest struct {
	Data      []byte
	MimeType  string
	RequestID string
}

// EnhanceResult is the enhanced image returned by the model.
type EnhanceResult struct {
	Data      []byte
	MimeType  string
	Width     int
	Height    int
	Synthetic bool
}

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-3-pro-image-preview"
)

// NewClient applies defaults for every zero option. A nil HTTP client gets a
// 90 second timeout, long enough for image generation.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		model:      strings.TrimSpace(opts.Model),
		httpClient: opts.HTTPClient,
		logger:     zerolog.Nop(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(c.baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("genai: invalid base url %q", c.baseURL)
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if opts.Logger != nil {
		c.logger = infra.Component(*opts.Logger, "genai")
	}
	return c, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client runs without an API key.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// EnhanceImage sends the image with the enhancement prompt and returns the
// first inline image of the first candidate.
func (c *Client) EnhanceImage(ctx context.Context, req EnhanceRequest) (*EnhanceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, errors.New("genai: empty image")
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if c.Synthetic() {
		return c.syntheticEnhance(req)
	}

	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: EnhancePrompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(req.Data)}},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: "1:1", ImageSize: "1K"},
		},
	}

	var response generateResponse
	if err := c.generate(ctx, payload, &response); err != nil {
		return nil, err
	}
	data, mime, err := response.firstImage()
	if err != nil {
		return nil, err
	}
	w, h := decodeImageDimensions(data)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("bytes", len(data)).
		Msg("genai: enhanced image")
	return &EnhanceResult{Data: data, MimeType: mime, Width: w, Height: h}, nil
}

func (c *Client) syntheticEnhance(req EnhanceRequest) (*EnhanceResult, error) {
	img, _, err := image.Decode(bytes.NewReader(req.Data))
	if err != nil {
		return nil, fmt.Errorf("genai: decode source image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("genai: encode png: %w", err)
	}
	b := img.Bounds()
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: synthetic enhancement")
	return &EnhanceResult{Data: buf.Bytes(), MimeType: "image/png", Width: b.Dx(), Height: b.Dy(), Synthetic: true}, nil
}

// generate posts payload to the model's generateContent endpoint. The key
// travels in a header so it never shows up in logged URLs.
func (c *Client) generate(ctx context.Context, payload generateRequest, out *generateResponse) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("genai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: invoke %s: %w", c.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp.StatusCode, io.LimitReader(resp.Body, 64<<10))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode response: %w", err)
	}
	return nil
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
