// Package backend is the typed client for the dashboard's REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/infralens/infralens/internal/metrics"
	"github.com/infralens/infralens/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 1
	maxErrorBody    = 4 << 10
	maxErrorMessage = 256
	userAgent       = "infralens"
)

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
)

// HTTPError is any non-2xx answer that is neither 401 nor 404.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s: status %d", e.Endpoint, e.StatusCode)
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == status
}

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

type Client struct {
	baseURL *url.URL
	// reads retries idempotent requests; writes never retries.
	reads  *http.Client
	writes *http.Client
	tracer trace.Tracer
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https: %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	} else if retryMax == 0 {
		retryMax = defaultRetryMax
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := cleanhttp.DefaultPooledTransport()

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: timeout}
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = RetryPolicy
	// Hand the final response back so status mapping stays in one place.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logger.With("component", "backend")

	return &Client{
		baseURL: base,
		reads:   rc.StandardClient(),
		writes:  &http.Client{Transport: transport, Timeout: timeout},
		tracer:  telemetry.Tracer("github.com/infralens/infralens/internal/backend"),
	}, nil
}

// RetryPolicy retries transport errors and gateway failures. Canceled requests are
// never retried.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && strings.Contains(ue.Error(), "unsupported protocol scheme") {
			return false, err
		}
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}

type tokenKey struct{}

// WithToken attaches the session bearer token to ctx for outgoing requests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type request struct {
	method   string
	endpoint string
	path     string
	query    url.Values
	body     any
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "backend "+r.endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		target.RawQuery = r.query.Encode()
	}
	span.SetAttributes(
		attribute.String("http.request.method", r.method),
		attribute.String("url.path", target.Path),
	)

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", r.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", r.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.reads
	if r.method != http.MethodGet && r.method != http.MethodHead {
		httpClient = c.writes
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(r.endpoint, r.method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(r.endpoint, r.method, "transport_error").Inc()
		return fmt.Errorf("backend %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if err := statusError(r.endpoint, resp); err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(r.endpoint, r.method, outcomeLabel(err)).Inc()
		return err
	}
	metrics.BackendRequestsTotal.WithLabelValues(r.endpoint, r.method, "ok").Inc()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", r.endpoint, err)
	}
	return nil
}

func statusError(endpoint string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", endpoint, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(raw),
	}
}

// errorMessage extracts a short message from common JSON error bodies.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		case payload.Detail != nil:
			if s, ok := payload.Detail.(string); ok {
				msg = s
			} else {
				msg = fmt.Sprint(payload.Detail)
			}
		}
	}
	if msg == "" {
		msg = string(raw)
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if runes := []rune(msg); len(runes) > maxErrorMessage {
		msg = string(runes[:maxErrorMessage]) + "..."
	}
	return msg
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "http_error"
	}
}
