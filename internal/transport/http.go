package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
)

const (
	maxBody        = 10 << 20
	headerReqID    = "X-Request-ID"
	defaultTimeout = 15 * time.Second
)

// StatusError is a retryable server response (5xx).
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

// Options configures HTTP.
type Options struct {
	BaseURL     string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	Limiter     *rate.Limiter // optional
	Client      *http.Client  // optional; its Transport is wrapped with request logging
	Logger      *zap.Logger
	// OnRetry observes each backoff delay before it is slept.
	OnRetry func(attempt int, delay time.Duration, cause error)
}

// HTTP implements Transport over net/http.
type HTTP struct {
	base      string
	timeout   time.Duration
	attempts  int
	baseDelay time.Duration
	limiter   *rate.Limiter
	client    *http.Client
	tokens    TokenSource
	log       *zap.Logger
	onRetry   func(int, time.Duration, error)
}

var _ Transport = (*HTTP)(nil)

// NewHTTP constructs the transport.
func NewHTTP(opts Options, tokens TokenSource) *HTTP {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := http.DefaultTransport
	if opts.Client != nil && opts.Client.Transport != nil {
		base = opts.Client.Transport
	}
	client := &http.Client{Transport: &loggingRoundTripper{next: base, log: log}}
	if opts.Client != nil {
		client.CheckRedirect = opts.Client.CheckRedirect
		client.Jar = opts.Client.Jar
	}
	return &HTTP{
		base:      opts.BaseURL,
		timeout:   timeout,
		attempts:  attempts,
		baseDelay: opts.BaseDelay,
		limiter:   opts.Limiter,
		client:    client,
		tokens:    tokens,
		log:       log,
		onRetry:   opts.OnRetry,
	}
}

// newBackoff doubles from base and stops after attempts-1 retries.
func newBackoff(base time.Duration, attempts int) retry.Backoff {
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
}

// Schedule lists the delays slept between attempts for the given policy.
func Schedule(base time.Duration, attempts int) []time.Duration {
	b := newBackoff(base, attempts)
	var out []time.Duration
	for {
		d, stop := b.Next()
		if stop {
			return out
		}
		out = append(out, d)
	}
}

// Do runs the call, retrying network failures, timeouts and 5xx.
func (h *HTTP) Do(ctx context.Context, req Request) (*Envelope, error) {
	token, hasToken := h.tokens.GetToken(ctx)
	if req.Auth && !hasToken {
		return nil, errs.ErrUnauthenticated
	}
	body, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := joinURL(h.base, req.Path, req.Query)

	reqID := ""
	if id, err := uuid.NewV4(); err == nil {
		reqID = id.String()
	}

	var (
		out       *Envelope
		attempt   int
		lastCause error
		transient bool
	)
	inner := newBackoff(h.baseDelay, h.attempts)
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := inner.Next()
		if !stop {
			h.log.Warn("retrying request",
				zap.String("method", method),
				zap.String("path", req.Path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", d),
				zap.String("req_id", reqID),
				zap.Error(lastCause),
			)
			if h.onRetry != nil {
				h.onRetry(attempt, d, lastCause)
			}
		}
		return d, stop
	})

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		transient = false
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		env, again, err := h.once(ctx, method, target, body, contentType, token, hasToken, reqID)
		if err != nil {
			if again {
				transient = true
				lastCause = err
				return retry.RetryableError(err)
			}
			return err
		}
		out = env
		return nil
	})
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if transient {
		return nil, &errs.TransientError{Attempts: attempt, Cause: err}
	}
	return nil, err
}

// once performs a single attempt bounded by the per-attempt timeout.
// again reports whether the failure may be retried.
func (h *HTTP) once(ctx context.Context, method, target string, body []byte, contentType, token string, hasToken bool, reqID string) (env *Envelope, again bool, err error) {
	actx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	hreq, err := http.NewRequestWithContext(actx, method, target, rd)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	if reqID != "" {
		hreq.Header.Set(headerReqID, reqID)
	}
	if hasToken {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if err := h.tokens.ClearSession(context.WithoutCancel(ctx)); err != nil {
			h.log.Warn("clear session after 401 failed", zap.Error(err))
		}
		return nil, false, errs.ErrUnauthenticated
	case resp.StatusCode >= 500:
		return nil, true, &StatusError{Status: resp.StatusCode, Message: messageOf(raw)}
	case resp.StatusCode >= 400:
		return nil, false, &errs.RequestError{Status: resp.StatusCode, Message: messageOf(raw)}
	}

	env, err = parseEnvelope(raw)
	if err != nil {
		return nil, false, &errs.DecodeError{Cause: err}
	}
	return env, false, nil
}
