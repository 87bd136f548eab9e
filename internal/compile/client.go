// Package compile forwards code to the JDoodle execute API.
package compile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"codecollab/pkg/metrics"
)

// versionIndex per JDoodle language identifier
var versionIndex = map[string]string{
	"python3": "3",
	"java":    "3",
	"cpp":     "4",
	"nodejs":  "3",
	"c":       "4",
	"ruby":    "3",
	"go":      "3",
	"scala":   "3",
	"bash":    "3",
	"sql":     "3",
	"pascal":  "2",
	"csharp":  "3",
	"php":     "3",
	"swift":   "3",
	"rust":    "3",
	"r":       "3",
}

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrTimeout             = errors.New("compile service timed out")
)

// UpstreamError is a network failure, non-2xx answer or error body from JDoodle
type UpstreamError struct {
	StatusCode int // 0 when no response arrived
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return "compile service: " + e.Err.Error()
	case e.StatusCode != 0:
		return fmt.Sprintf("compile service: status %d: %s", e.StatusCode, e.Body)
	default:
		return "compile service: " + e.Body
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type Result struct {
	Output     string          `json:"output"`
	StatusCode int             `json:"statusCode,omitempty"`
	Memory     json.RawMessage `json:"memory,omitempty"`
	CPUTime    json.RawMessage `json:"cpuTime,omitempty"`
}

type executeReq struct {
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type executeResp struct {
	Result
	Error string `json:"error"`
}

type Config struct {
	URL          string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{}, log: log}
}

// Languages lists the accepted language identifiers, sorted
func Languages() []string {
	out := make([]string, 0, len(versionIndex))
	for l := range versionIndex {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Execute runs req.Code remotely and returns its output. It never retries.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := c.execute(ctx, req)
	metrics.ObserveUpstream("compile", outcome(err), time.Since(start))
	if err != nil {
		c.log.Warn("compile.failed", "language", req.Language, "err", err, "took", time.Since(start))
		return Result{}, err
	}
	c.log.Debug("compile.ok", "language", req.Language, "took", time.Since(start))
	return res, nil
}

func (c *Client) execute(ctx context.Context, req Request) (Result, error) {
	version, ok := versionIndex[req.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(executeReq{
		Script:       req.Code,
		Language:     req.Language,
		VersionIndex: version,
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
	})
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		return Result{}, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out executeResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw), Err: err}
	}
	if out.Error != "" {
		return Result{}, &UpstreamError{StatusCode: resp.StatusCode, Body: out.Error}
	}
	return out.Result, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnsupportedLanguage):
		return "rejected"
	default:
		return "upstream_error"
	}
}
