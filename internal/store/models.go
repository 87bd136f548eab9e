package store

import "time"

// Run is one proxied compile or suggestion call
type Run struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"` // "compile" or "suggest"
	Language   string    `json:"language"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
