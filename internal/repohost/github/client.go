// Package github implements repohost.Host against GitHub and GitHub Enterprise
// using go-github.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v66/github"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// Options tunes the client. Zero values fall back to defaults.
type Options struct {
	RequestsPerSecond float64
	Burst             int
	MaxTreeNodes      int
	MaxTreeDepth      int
	MaxRetries        int

	// HTTPClient is used for every API call (default: 30s timeout client).
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint for every host, e.g. an httptest server.
	BaseURL string
	// RetryInitialInterval is the first backoff delay (default 500ms).
	RetryInitialInterval time.Duration
}

// Host is the go-github backed repository host.
type Host struct {
	opts       Options
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per API host
}

var _ repohost.Host = (*Host)(nil)

// New creates a Host.
func New(opts Options) *Host {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.MaxTreeNodes <= 0 {
		opts.MaxTreeNodes = 5000
	}
	if opts.MaxTreeDepth <= 0 {
		opts.MaxTreeDepth = 32
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Host{
		opts:       opts,
		httpClient: hc,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// clientFor builds an authenticated client for the descriptor's host.
func (h *Host) clientFor(repo *store.RepositoryRecord) (*gh.Client, error) {
	c := gh.NewClient(h.httpClient)
	if repo.Token != "" {
		c = c.WithAuthToken(repo.Token)
	}

	switch {
	case h.opts.BaseURL != "":
		base, err := url.Parse(h.opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		c.BaseURL = base
	case repo.Host != "" && repo.Host != store.DefaultHost:
		apiURL := fmt.Sprintf("https://%s/api/v3/", repo.Host)
		uploadURL := fmt.Sprintf("https://%s/api/uploads/", repo.Host)
		ec, err := c.WithEnterpriseURLs(apiURL, uploadURL)
		if err != nil {
			return nil, fmt.Errorf("enterprise client for %s: %w", repo.Host, err)
		}
		c = ec
	}
	return c, nil
}

func (h *Host) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.opts.RequestsPerSecond), h.opts.Burst)
		h.limiters[host] = l
	}
	return l
}

func (h *Host) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.opts.RetryInitialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // bounded by retries and ctx
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(h.opts.MaxRetries)), ctx)
}

// call runs one idempotent API request paced by the host limiter and retried
// on transient failures. Non-transient failures are classified into repohost errors.
func (h *Host) call(ctx context.Context, repo *store.RepositoryRecord, op string, fn func() (*gh.Response, error)) error {
	return h.do(ctx, repo, op, h.newBackoff(ctx), fn)
}

// callOnce runs a request that creates something on the host. It is never
// retried: a timed out POST may already have taken effect.
func (h *Host) callOnce(ctx context.Context, repo *store.RepositoryRecord, op string, fn func() (*gh.Response, error)) error {
	return h.do(ctx, repo, op, backoff.WithContext(&backoff.StopBackOff{}, ctx), fn)
}

func (h *Host) do(ctx context.Context, repo *store.RepositoryRecord, op string, b backoff.BackOff, fn func() (*gh.Response, error)) error {
	limiter := h.limiterFor(repo.Host)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := fn()
		if err == nil {
			return nil
		}
		cerr, transient := classify(resp, err)
		if !transient {
			return backoff.Permanent(cerr)
		}
		slog.Debug("github.retry", "op", op, "repo", repo.Owner+"/"+repo.Repo, "attempt", attempt, "error", err)
		return cerr
	}, b)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// classify maps a go-github failure to a repohost error and reports whether
// the request is worth retrying.
func classify(resp *gh.Response, err error) (error, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, repohost.ErrIsDirectory) {
		return err, false
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return err, true
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", repohost.ErrNotFound, err), false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", repohost.ErrAccessDenied, err), false
	case status >= 500:
		return err, true
	case status != 0:
		return err, false
	}
	// No response: network level failure.
	return err, true
}

// ValidateAccess fetches the repository metadata with the descriptor's token.
func (h *Host) ValidateAccess(ctx context.Context, repo *store.RepositoryRecord) error {
	c, err := h.clientFor(repo)
	if err != nil {
		return err
	}
	err = h.call(ctx, repo, "get repository", func() (*gh.Response, error) {
		_, resp, err := c.Repositories.Get(ctx, repo.Owner, repo.Repo)
		return resp, err
	})
	if errors.Is(err, repohost.ErrNotFound) {
		// GitHub answers 404 for private repositories the token cannot see.
		return fmt.Errorf("%w: %s/%s", repohost.ErrAccessDenied, repo.Owner, repo.Repo)
	}
	return err
}

func branchOr(branch string, repo *store.RepositoryRecord) string {
	if branch != "" {
		return branch
	}
	if repo.Branch != "" {
		return repo.Branch
	}
	return store.DefaultBranch
}
