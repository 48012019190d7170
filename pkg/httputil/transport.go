package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/ghdisco/pkg/observability"
)

// DefaultRetryCodes are the status codes retried when none are configured.
var DefaultRetryCodes = []int{500, 502, 503, 504, 408, 403}

const (
	defaultRetries = 10
	defaultBackoff = time.Second
	maxBackoff     = time.Minute
)

// TransportOptions configures [NewTransport].
type TransportOptions struct {
	Base       http.RoundTripper // defaults to http.DefaultTransport
	MinDelay   time.Duration     // minimum spacing between requests to one host; 0 disables pacing
	Retries    int               // extra attempts after the first; negative disables retries
	RetryCodes []int             // defaults to DefaultRetryCodes
	Backoff    time.Duration     // initial backoff, doubled per attempt
	Timeout    time.Duration     // per attempt, excluding pacing and backoff waits; 0 disables
	UserAgent  string
}

// Transport paces and retries outgoing requests.
type Transport struct {
	base      http.RoundTripper
	minDelay  time.Duration
	retries   int
	codes     []int
	backoff   time.Duration
	timeout   time.Duration
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTransport returns a Transport with defaults applied.
func NewTransport(opts TransportOptions) *Transport {
	t := &Transport{
		base:      opts.Base,
		minDelay:  opts.MinDelay,
		retries:   opts.Retries,
		codes:     opts.RetryCodes,
		backoff:   opts.Backoff,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		limiters:  make(map[string]*rate.Limiter),
	}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	if t.retries == 0 {
		t.retries = defaultRetries
	}
	if t.retries < 0 {
		t.retries = 0
	}
	if t.codes == nil {
		t.codes = DefaultRetryCodes
	}
	if t.backoff <= 0 {
		t.backoff = defaultBackoff
	}
	return t
}

func (t *Transport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.minDelay), 1)
		t.limiters[host] = l
	}
	return l
}

func (t *Transport) wait(ctx context.Context, host string) error {
	if t.minDelay <= 0 {
		return nil
	}
	return t.limiter(host).Wait(ctx)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	delay := t.backoff

	for attempt := 0; ; attempt++ {
		if err := t.wait(ctx, host); err != nil {
			return nil, err
		}

		actx, cancel := t.attemptContext(ctx)
		r, err := t.prepare(actx, req, attempt)
		if err != nil {
			cancel()
			return nil, err
		}

		hooks.OnRequest(ctx, req.Method, host, path)
		start := time.Now()
		resp, err := t.base.RoundTrip(r)
		last := attempt >= t.retries

		switch {
		case err != nil:
			cancel()
			hooks.OnError(ctx, req.Method, host, path, err)
			if ctx.Err() != nil || last {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
			}
			hooks.OnRetry(ctx, req.Method, host, path, attempt+1, 0)
		case !slices.Contains(t.codes, resp.StatusCode) || last:
			hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		default:
			hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
			hooks.OnRetry(ctx, req.Method, host, path, attempt+1, resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			cancel()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = min(delay*2, maxBackoff)
		}
	}
}

// attemptContext bounds one attempt. The deadline covers the response body,
// so the returned cancel must run once the body is closed.
func (t *Transport) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// cancelBody releases the attempt context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// prepare clones req onto ctx for the given attempt, rewinding the body on
// retries.
func (t *Transport) prepare(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	r := req.Clone(ctx)
	if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, fmt.Errorf("cannot retry %s %s: body is not rewindable", req.Method, req.URL.Redacted())
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	if t.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	return r, nil
}

var _ http.RoundTripper = (*Transport)(nil)
