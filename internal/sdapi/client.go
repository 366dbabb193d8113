package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/sdbot/core/httpclient"
	"github.com/m3rciful/sdbot/core/logger"
	"github.com/m3rciful/sdbot/core/metrics"
	"github.com/m3rciful/sdbot/core/netutil"
	"github.com/m3rciful/sdbot/internal/params"
)

const (
	txt2imgPath = "/sdapi/v1/txt2img"

	// DefaultTimeout bounds a single generation.
	DefaultTimeout = 300 * time.Second

	maxResponseBytes = 64 << 20
)

// Config describes the remote API.
type Config struct {
	URL     string
	Timeout time.Duration
	// HTTPClient overrides the default pooled client (tests).
	HTTPClient *http.Client
}

// Client calls the txt2img endpoint.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// New returns a client for cfg.URL. A trailing slash on the URL is dropped.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("sdapi: missing url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.Options{
			RetryAttempts: 1,
			RetryBackoff:  time.Second,
		})
	}
	return &Client{baseURL: base, timeout: timeout, http: hc}, nil
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.baseURL + txt2imgPath
}

// TextToImage posts req and decodes the reply. Non-2xx replies return a
// *StatusError and transport failures a *NetworkError.
func (c *Client) TextToImage(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Generate builds the request from p, calls the API and interprets the result.
func (c *Client) Generate(ctx context.Context, p params.Set) Outcome {
	req := Build(p)
	start := time.Now()
	logger.Info(ctx, logger.CompSD, "txt2img.request",
		slog.String("status", "ok"),
		slog.String("prompt", logger.SanitizeLimit(req.Prompt, 80)),
		slog.Int("steps", req.Steps),
		slog.Float64("cfg_scale", req.CFGScale),
		slog.String("size", fmt.Sprintf("%dx%d", req.Width, req.Height)),
		slog.String("sampler", req.SamplerName),
		slog.Int64("seed", req.Seed),
	)

	metrics.GenerationsInFlight.Inc()
	resp, err := c.TextToImage(ctx, req)
	metrics.GenerationsInFlight.Dec()
	took := time.Since(start)
	metrics.GenerationDuration.Observe(took.Seconds())

	out := Interpret(resp, err)
	if out.OK() {
		metrics.GenerationsTotal.WithLabelValues(metrics.StatusOK).Inc()
		logger.Info(ctx, logger.CompSD, "txt2img.done",
			slog.String("status", "ok"),
			slog.Int("bytes", len(out.Image)),
			slog.Duration("duration", took),
		)
		return out
	}

	metrics.GenerationsTotal.WithLabelValues(metrics.StatusFail).Inc()
	logger.Warn(ctx, logger.CompSD, "txt2img.done", failureAttrs(err, out, took)...)
	return out
}

func failureAttrs(err error, out Outcome, took time.Duration) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(out.Message, 256)),
		slog.Duration("duration", took),
	}
	var se *StatusError
	if errors.As(err, &se) {
		attrs = append(attrs, slog.Int("http_code", se.Code))
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if netutil.IsTimeout(err) {
		attrs = append(attrs, slog.Bool("timeout", true))
	}
	return attrs
}
