// Package scrape defines the core types and interfaces shared by the
// executor, batch coordinator, and content cache.
package scrape

import "time"

// FailureKind classifies why a fetch did not produce usable content.
type FailureKind string

// Failure kinds reported by the executor and coordinator.
const (
	FailureValidation     FailureKind = "validation"
	FailureSpawn          FailureKind = "spawn_failure"
	FailureTimeout        FailureKind = "timeout"
	FailureProcess        FailureKind = "process_failure"
	FailureMalformed      FailureKind = "malformed_response"
	FailureEngineReported FailureKind = "engine_reported"
	FailureCanceled       FailureKind = "canceled"
)

// ExecutionOutcome is the result of one engine invocation for one URL.
// It is a value, never an error: every failure mode is carried in-band so
// batch aggregation can count failures without unwinding.
type ExecutionOutcome struct {
	URL              string      `json:"url"`
	Succeeded        bool        `json:"succeeded"`
	Title            string      `json:"title,omitempty"`
	Body             string      `json:"body,omitempty"`
	StatusCode       int         `json:"status_code,omitempty"`
	RawContentLength int         `json:"raw_content_length,omitempty"`
	FailureKind      FailureKind `json:"failure_kind,omitempty"`
	FailureMessage   string      `json:"failure_message,omitempty"`
}

// Failure builds a failed outcome for a URL.
func Failure(url string, kind FailureKind, message string) ExecutionOutcome {
	return ExecutionOutcome{
		URL:            url,
		FailureKind:    kind,
		FailureMessage: message,
	}
}

// FetchConfig carries per-request hints passed through to the engine.
// Zero values mean "use the engine's defaults".
type FetchConfig struct {
	CSSSelector   string `json:"css_selector,omitempty" mapstructure:"css_selector"`
	PageTimeoutMs int    `json:"page_timeout,omitempty" mapstructure:"page_timeout_ms"`
}

// BatchConfig tunes a single aggregate engine invocation. All fields are
// passed through opaquely; the engine owns its own scheduling.
type BatchConfig struct {
	Strategy             string `json:"strategy,omitempty" mapstructure:"strategy"`
	MaxSessions          int    `json:"max_sessions,omitempty" mapstructure:"max_sessions"`
	MemoryThresholdPct   int    `json:"memory_threshold_percent,omitempty" mapstructure:"memory_threshold_percent"`
	RateLimitBaseDelayMs int    `json:"rate_limit_base_delay_ms,omitempty" mapstructure:"rate_limit_base_delay_ms"`
	RateLimitMaxDelayMs  int    `json:"rate_limit_max_delay_ms,omitempty" mapstructure:"rate_limit_max_delay_ms"`
	MaxRetries           int    `json:"max_retries,omitempty" mapstructure:"max_retries"`
}

// BatchOutcome aggregates one coordinator run. Outcomes preserve the order
// of the input URL list.
type BatchOutcome struct {
	RunID           string             `json:"run_id"`
	Outcomes        []ExecutionOutcome `json:"outcomes"`
	SuccessCount    int                `json:"success_count"`
	FailureCount    int                `json:"failure_count"`
	WallClockMillis int64              `json:"wall_clock_ms"`
}

// CacheEntry is one shaped, persisted scrape result.
type CacheEntry struct {
	SourceURL      string    `json:"source_url"`
	ContentHash    string    `json:"content_hash"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	StatusCode     int       `json:"status_code"`
	ContentLength  int       `json:"content_length"`
	CachedAt       time.Time `json:"cached_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
	TokenCount     int       `json:"token_count"`
}

// CacheStats summarizes the cache contents. Zero values when empty.
type CacheStats struct {
	TotalEntries    int       `json:"total_entries"`
	TotalSizeBytes  int64     `json:"total_size_bytes"`
	TotalTokens     int       `json:"total_tokens"`
	OldestCachedAt  time.Time `json:"oldest_cached_at"`
	NewestCachedAt  time.Time `json:"newest_cached_at"`
	MostAccessedURL string    `json:"most_accessed_url"`
}
