package orderai

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"MiniPOS/internal/apperr"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"

	maxReplyBytes = 1 << 20
)

type Config struct {
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
}

// GeminiClient calls the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter

	tracer trace.Tracer
}

func NewGeminiClient(cfg Config) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	c := &GeminiClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Client:  &http.Client{Timeout: cfg.Timeout},
		tracer:  otel.Tracer("MiniPOS/orderai"),
	}
	if cfg.RatePerMinute > 0 {
		c.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}
	return c
}

type generateReq struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResp struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Interpret(ctx context.Context, text string, productNames []string) (lines []OrderLine, err error) {
	ctx, span := c.tracer.Start(ctx, "orderai.interpret",
		trace.WithAttributes(
			attribute.String("ai.model", c.Model),
			attribute.Int("catalog.names", len(productNames)),
			attribute.Int("order.text_len", len(text)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("order.lines", len(lines)))
		}
		span.End()
	}()

	if c.APIKey == "" {
		return nil, external(ErrNotConfigured)
	}
	if c.Limiter != nil && !c.Limiter.Allow() {
		return nil, external(ErrRateLimited)
	}

	reply, err := c.generate(ctx, buildPrompt(text, productNames))
	if err != nil {
		return nil, external(err)
	}

	lines, err = ParseLines(reply)
	if err != nil {
		return nil, external(err)
	}
	return lines, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateReq{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.BaseURL, url.PathEscape(c.Model), url.QueryEscape(c.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, redact(err, c.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status=%d", ErrBadStatus, resp.StatusCode)
	}

	var out generateResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func external(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrExternalService, err)
}

// redact keeps the API key, which travels in the query string, out of
// transport errors that end up in logs.
func redact(err error, key string) error {
	if key == "" {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return errors.New(strings.ReplaceAll(ue.Error(), url.QueryEscape(key), "REDACTED"))
	}
	return err
}
