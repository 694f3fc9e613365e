package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://us-central1-aiplatform.googleapis.com/v1/publishers/google/models"
	DefaultModel    = "gemini-2.5-flash-lite"
	DefaultTimeout  = 30 * time.Second

	// maxDumpLen bounds the raw-response text returned when no candidate
	// text can be found.
	maxDumpLen = 2000
)

// ErrNoCredential is returned when Generate is called without an API key.
var ErrNoCredential = errors.New("genai: api key not configured")

// Config captures the settings for the hosted generateContent endpoint.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client calls a hosted generateContent endpoint authenticated by an API
// key query parameter. Calls are never retried.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a model client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			APIKey:   strings.TrimSpace(cfg.APIKey),
			Endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
			Model:    strings.TrimSpace(cfg.Model),
			Timeout:  cfg.Timeout,
		},
		httpClient: &http.Client{},
	}
	if c.cfg.Endpoint == "" {
		c.cfg.Endpoint = DefaultEndpoint
	}
	if c.cfg.Model == "" {
		c.cfg.Model = DefaultModel
	}
	if c.cfg.Timeout <= 0 {
		c.cfg.Timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Timeout is the default per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("genai request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Generate sends prompt to the model and returns its text. Transport and
// HTTP failures are errors; an unexpected response shape is not, and yields
// a truncated JSON dump of the response instead.
func (c *Client) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if !c.Configured() {
		return "", ErrNoCredential
	}
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint, err := c.endpointURL()
	if err != nil {
		return "", err
	}
	payload := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("genai request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("genai request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai request: http error (timeout=%s): %w", timeout, redactKey(err, c.cfg.APIKey))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("genai request: read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("genai request: decode response: %w", err)
	}
	return ExtractText(data), nil
}

func (c *Client) endpointURL() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint + "/" + c.cfg.Model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("genai request: build url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractText returns candidates[0].content.parts[0].text. A first part
// without text is rendered as JSON; any other shape falls back to a JSON
// dump of the whole response, truncated to maxDumpLen.
func ExtractText(data interface{}) string {
	if root, ok := data.(map[string]interface{}); ok {
		if candidates, ok := root["candidates"].([]interface{}); ok && len(candidates) > 0 {
			if first, ok := candidates[0].(map[string]interface{}); ok {
				body, _ := first["content"].(map[string]interface{})
				parts, _ := body["parts"].([]interface{})
				if len(parts) > 0 {
					if p, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := p["text"].(string); ok && text != "" {
							return text
						}
					}
					return dump(parts[0], 0)
				}
			}
		}
	}
	return dump(data, maxDumpLen)
}

func dump(v interface{}, limit int) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(b)
	if limit > 0 {
		if r := []rune(s); len(r) > limit {
			s = string(r[:limit])
		}
	}
	return s
}

// redactKey keeps the API key out of logged transport errors, which embed
// the request URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}
