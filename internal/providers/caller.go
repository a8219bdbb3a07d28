package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

const maxResponseBytes = 10 << 20

// Caller is the shared HTTP/JSON call path of every adapter: rate limiting,
// dispatch, status classification and decoding.
type Caller struct {
	provider string
	client   *http.Client
	limiter  *Limiter
	counters *telemetry.Counters
	now      func() time.Time
}

// NewCaller builds a Caller. client defaults to a 30s-timeout client and
// counters may be nil.
func NewCaller(provider string, client *http.Client, limiter *Limiter, counters *telemetry.Counters) *Caller {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Caller{
		provider: provider,
		client:   client,
		limiter:  limiter,
		counters: counters,
		now:      time.Now,
	}
}

// Do waits for the limiter, sends req and decodes a 2xx JSON body into out
// (skipped when out is nil). Any failure comes back as a classified
// ProviderError; Do never returns a bare error.
func (c *Caller) Do(ctx context.Context, op string, req *http.Request, out any) *ProviderError {
	ctx, span := otel.Tracer("providers").Start(ctx, "provider."+c.provider+"."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("provider.name", c.provider),
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
	)

	perr := c.do(ctx, req, out)
	if perr != nil {
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Class))
	}
	return perr
}

func (c *Caller) do(ctx context.Context, req *http.Request, out any) *ProviderError {
	waited, err := c.limiter.Wait(ctx)
	if err != nil {
		return &ProviderError{Provider: c.provider, Class: ClassTimeout, Reason: "waiting for rate limiter", Err: err}
	}
	if waited > 0 && c.counters != nil {
		c.counters.LimiterWaits.WithLabelValues(c.provider).Inc()
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return &ProviderError{Provider: c.provider, Class: transportClass(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ProviderError{Provider: c.provider, Class: transportClass(ctx, err), StatusCode: resp.StatusCode, Err: err}
	}

	class, retryAfter := ClassifyStatus(resp.StatusCode, resp.Header, c.now())
	if class != "" {
		return &ProviderError{
			Provider:   c.provider,
			Class:      class,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
			Reason:     snippet(body),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{
			Provider:   c.provider,
			Class:      ClassBadPayload,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// ClassifyStatus maps an HTTP status to an error class; "" means success.
// For 429 it also returns the provider's Retry-After hint, if any.
func ClassifyStatus(status int, header http.Header, now time.Time) (ErrorClass, time.Duration) {
	switch {
	case status >= 200 && status < 300:
		return "", 0
	case status == http.StatusTooManyRequests:
		return ClassRateLimited, ParseRetryAfter(header.Get("Retry-After"), now)
	case status >= 500:
		return ClassServerError, 0
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassUnauthorized, 0
	case status == http.StatusNotFound:
		return ClassNotFound, 0
	default:
		return ClassBadRequest, 0
	}
}

// ParseRetryAfter accepts delta-seconds or an HTTP-date. Unparsable or past
// values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func transportClass(ctx context.Context, err error) ErrorClass {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	return ClassNetwork
}

var (
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)
	apiKeyKVRe    = regexp.MustCompile(`(?i)"?\b(api[_-]?key|x-api-key|token|secret)\b"?\s*[:=]\s*"?[^\s"',}]+"?`)
)

// snippet returns a short redacted hint from an error body. Response bodies
// can echo credentials, so they are never logged whole.
func snippet(body []byte) string {
	const max = 256
	if len(body) == 0 {
		return ""
	}
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := bearerTokenRe.ReplaceAllString(string(b), "Bearer <redacted>")
	s = apiKeyKVRe.ReplaceAllString(s, "<redacted_kv>")
	s = strings.Join(strings.Fields(s), " ")
	if len(body) > max {
		s += "..."
	}
	return s
}
