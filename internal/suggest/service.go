// Package suggest asks an LLM for a structured critique of a code buffer.
package suggest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"codecollab/pkg/metrics"
)

var ErrTimeout = errors.New("suggestion service timed out")

// UpstreamError is a transport failure or non-2xx answer from the LLM API
type UpstreamError struct {
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("suggestion service: status %d: %v", e.StatusCode, e.Err)
	}
	return "suggestion service: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedResponseError means the model answered but not with a Critique
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "suggestion service: response is not a valid critique"
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Service struct {
	client *openai.Client
	model  string
	tmo    time.Duration
	cache  Cache // optional
	log    *slog.Logger
}

// New builds the service; cache may be nil
func New(cfg Config, cache Cache, log *slog.Logger) *Service {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Service{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		tmo:    cfg.Timeout,
		cache:  cache,
		log:    log,
	}
}

// Suggest returns a critique of code, from cache when possible
func (s *Service) Suggest(ctx context.Context, code, language string) (*Critique, error) {
	key := s.cacheKey(code, language)
	if s.cache != nil {
		cr, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("suggest.cache.get", "err", err)
		case cr != nil:
			s.log.Debug("suggest.cache.hit", "language", language)
			return cr, nil
		}
	}

	start := time.Now()
	cr, err := s.complete(ctx, code, language)
	metrics.ObserveUpstream("suggest", outcome(err), time.Since(start))
	if err != nil {
		s.log.Warn("suggest.failed", "language", language, "err", err, "took", time.Since(start))
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cr); err != nil {
			s.log.Warn("suggest.cache.set", "err", err)
		}
	}
	return cr, nil
}

func (s *Service) complete(ctx context.Context, code, language string) (*Critique, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tmo)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(code, language)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Err: errors.New("no choices")}
	}

	raw := resp.Choices[0].Message.Content
	var cr Critique
	if err := json.Unmarshal([]byte(extractJSON(raw)), &cr); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	if err := cr.validate(); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	return &cr, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &UpstreamError{Err: err}
}

func (s *Service) cacheKey(code, language string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + language + "\x00" + code))
	return "suggest:" + hex.EncodeToString(sum[:])
}

func outcome(err error) string {
	var malformed *MalformedResponseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "upstream_error"
	}
}
