package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

// Options are the knobs every adapter constructor accepts.
type Options struct {
	Client      *http.Client
	MinInterval time.Duration
	Counters    *telemetry.Counters
}

// Option configures an adapter.
type Option func(*Options)

// WithHTTPClient overrides the adapter's HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.Client = c }
}

// WithMinInterval sets the minimum interval between requests.
func WithMinInterval(d time.Duration) Option {
	return func(o *Options) { o.MinInterval = d }
}

// WithCounters attaches process counters.
func WithCounters(c *telemetry.Counters) Option {
	return func(o *Options) { o.Counters = c }
}

// ApplyOptions folds opts over the defaults.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCallerFromOptions builds the Caller an adapter named provider uses.
func NewCallerFromOptions(provider string, o Options) *Caller {
	return NewCaller(provider, o.Client, NewLimiter(o.MinInterval), o.Counters)
}

// BaseURL returns configured if set, otherwise fallback, without a trailing slash.
func BaseURL(configured, fallback string) string {
	if s := strings.TrimSpace(configured); s != "" {
		return strings.TrimRight(s, "/")
	}
	return strings.TrimRight(fallback, "/")
}

// NewJSONRequest builds a request with body encoded as JSON (nil for none).
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// RequestFailure wraps a request-building error as a terminal result.
func RequestFailure[T any](provider string, err error) Result[T] {
	return Failure[T](&ProviderError{Provider: provider, Class: ClassInvalidRequest, Reason: "build request", Err: err})
}

// Offset returns the row offset for an offset-paged provider: the cursor
// when set, otherwise (Page-1)*limit.
func Offset(req DiscoverRequest, limit int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(req.Cursor)); err == nil {
		return max(n, 0)
	}
	if req.Page > 1 {
		return (req.Page - 1) * limit
	}
	return 0
}
