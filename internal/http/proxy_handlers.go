package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codecollab/internal/compile"
	"codecollab/internal/store"
	"codecollab/internal/suggest"
)

type Compiler interface {
	Execute(ctx context.Context, req compile.Request) (compile.Result, error)
}

type Suggester interface {
	Suggest(ctx context.Context, code, language string) (*suggest.Critique, error)
}

type RunLog interface {
	RecordRun(ctx context.Context, r store.Run) error
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// ProxyAPI forwards buffers to the compile and suggestion services.
// Failures stay local to the request.
type ProxyAPI struct {
	Compiler  Compiler
	Suggester Suggester
	Runs      RunLog // optional
	Log       *slog.Logger
}

type proxyReq struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

const maxBody = 1 << 20

func decodeProxyReq(w http.ResponseWriter, r *http.Request) (proxyReq, bool) {
	var req proxyReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil || req.Language == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "code and language required"})
		return req, false
	}
	return req, true
}

// Compile runs the buffer remotely and returns its output
func (a *ProxyAPI) Compile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProxyReq(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := a.Compiler.Execute(r.Context(), compile.Request{Code: req.Code, Language: req.Language})
	a.record(r.Context(), "compile", req.Language, err, time.Since(start))

	var upstream *compile.UpstreamError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, compile.ErrUnsupportedLanguage):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, compile.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "Compile service timed out"})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to compile code", Details: err.Error()})
	default:
		a.Log.Error("compile.handler", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to compile code"})
	}
}

// Languages lists the identifiers /compile accepts, for the editor's selector
func (a *ProxyAPI) Languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, compile.Languages())
}

// Suggest returns an LLM critique of the buffer
func (a *ProxyAPI) Suggest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProxyReq(w, r)
	if !ok {
		return
	}

	start := time.Now()
	cr, err := a.Suggester.Suggest(r.Context(), req.Code, req.Language)
	a.record(r.Context(), "suggest", req.Language, err, time.Since(start))

	var (
		malformed *suggest.MalformedResponseError
		upstream  *suggest.UpstreamError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cr)
	case errors.Is(err, suggest.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "Suggestion service timed out"})
	case errors.As(err, &malformed):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:       "The AI response was not in the expected JSON format.",
			RawResponse: malformed.Raw,
		})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to get AI suggestions", Details: err.Error()})
	default:
		a.Log.Error("suggest.handler", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to get AI suggestions"})
	}
}

// record appends to the run history; errors are only logged
func (a *ProxyAPI) record(ctx context.Context, kind, language string, err error, took time.Duration) {
	if a.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	run := store.Run{Kind: kind, Language: language, Outcome: runOutcome(err), DurationMS: took.Milliseconds()}
	if err := a.Runs.RecordRun(ctx, run); err != nil {
		a.Log.Warn("runs.record", "kind", kind, "err", err)
	}
}

func runOutcome(err error) string {
	var malformed *suggest.MalformedResponseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, compile.ErrTimeout), errors.Is(err, suggest.ErrTimeout):
		return "timeout"
	case errors.Is(err, compile.ErrUnsupportedLanguage):
		return "rejected"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "upstream_error"
	}
}
