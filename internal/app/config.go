package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

type Config struct {
	Env       string
	HTTPAddr  string
	CORSAllow []string

	JDoodleURL          string
	JDoodleClientID     string
	JDoodleClientSecret string

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	UpstreamTimeout time.Duration

	PGURL     string // empty disables run history
	PGMaxConn int

	RedisAddr    string // empty disables the critique cache
	RedisDB      int
	SuggestTTL   time.Duration
	WSConnPerMin int

	LogLevel string
}

func LoadConfig() Config {
	port := getEnv("PORT", "4000")
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":"+port),
		JDoodleURL:          getEnv("JDOODLE_URL", "https://api.jdoodle.com/v1/execute"),
		JDoodleClientID:     os.Getenv("JDOODLE_CLIENT_ID"),
		JDoodleClientSecret: os.Getenv("JDOODLE_CLIENT_SECRET"),
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:         getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:           getEnv("GROQ_MODEL", "mixtral-8x7b-32768"),
		PGURL:               os.Getenv("PG_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
	}
	cfg.PGMaxConn = getEnvInt("PG_MAX_CONN", 10)
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.WSConnPerMin = getEnvInt("WS_CONNECT_PER_MIN", 60)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 20*time.Second)
	cfg.SuggestTTL = getEnvDuration("SUGGEST_CACHE_TTL", time.Hour)
	// CORS allowlist
	cfg.CORSAllow = splitCSV(getEnv("CORS_ALLOW", "http://localhost:3001"))
	return cfg
}

// WSOriginPatterns turns the CORS allowlist into websocket origin host patterns
func (c Config) WSOriginPatterns() []string {
	out := make([]string, 0, len(c.CORSAllow))
	for _, o := range c.CORSAllow {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// LogValue keeps credentials out of the logs
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("http_addr", c.HTTPAddr),
		slog.Any("cors_allow", c.CORSAllow),
		slog.String("jdoodle_url", c.JDoodleURL),
		slog.String("jdoodle_client_id", redact(c.JDoodleClientID)),
		slog.String("jdoodle_client_secret", redact(c.JDoodleClientSecret)),
		slog.String("groq_api_key", redact(c.GroqAPIKey)),
		slog.String("groq_base_url", c.GroqBaseURL),
		slog.String("groq_model", c.GroqModel),
		slog.Duration("upstream_timeout", c.UpstreamTimeout),
		slog.Bool("run_history", c.PGURL != ""),
		slog.Bool("suggest_cache", c.RedisAddr != ""),
		slog.Int("ws_connect_per_min", c.WSConnPerMin),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses an int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		var i int
		_, _ = fmt.Sscanf(v, "%d", &i)
		if i > 0 {
			return i
		}
	}
	return def
}

// getEnvDuration parses a time.Duration env var ("30s", "2m") with a fallback
func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
