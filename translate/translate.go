// Package translate localizes short voter texts through the public
// Google translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"
	DefaultSource   = "en"
	DefaultTarget   = "mr"
)

var ErrUnexpectedResponse = errors.New("unexpected translation response")

// Config configures a Client.
type Config struct {
	Endpoint string
	Source   string
	Target   string
	Timeout  time.Duration
}

// Client translates text and caches the results for its lifetime.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a client with a production logger.
func New(cfg Config) *Client {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates a client; empty config fields take the defaults.
func NewWithLogger(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("translate"),
		cache:  make(map[string]string),
	}
}

// Translate returns text in the target language. Blank text is returned
// unchanged without a request.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	c.mu.RLock()
	cached, ok := c.cache[text]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", c.cfg.Source)
	q.Set("tl", c.cfg.Target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	out, err := parse(resp.Body)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[text] = out
	c.mu.Unlock()

	c.logger.Debug("translated", zap.String("source", text), zap.String("result", out))
	return out, nil
}

// parse extracts the translated sentences from the nested array response:
// [[["translated","source",...],...],...]
func parse(r io.Reader) (string, error) {
	var body []json.RawMessage
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(body) == 0 {
		return "", ErrUnexpectedResponse
	}

	var sentences [][]any
	if err := json.Unmarshal(body[0], &sentences); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	var sb strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		if part, ok := s[0].(string); ok {
			sb.WriteString(part)
		}
	}
	if sb.Len() == 0 {
		return "", ErrUnexpectedResponse
	}
	return sb.String(), nil
}
