package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
	"followwatch/pkg/metrics"
	"followwatch/pkg/models"
	"followwatch/pkg/ratelimit"
	"followwatch/pkg/retry"
	"followwatch/pkg/session"
)

const maxBodyBytes = 8 << 20

// httpBase carries what both HTTP scrapers share: sessions, pacing, retry
type httpBase struct {
	platform      models.Platform
	site          *url.URL
	sessionCookie string
	opts          Options
	sessions      *session.Manager
	limits        *ratelimit.Keyed
	retrier       *retry.Retrier
	log           logger.Logger
}

func newHTTPBase(platform models.Platform, origin, sessionCookie string, opts Options, sessions *session.Manager, log logger.Logger) httpBase {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL != "" {
		origin = opts.BaseURL
	}
	site, err := url.Parse(strings.TrimSuffix(origin, "/") + "/")
	if err != nil {
		panic(fmt.Sprintf("invalid origin %q: %v", origin, err))
	}
	log = log.WithFields(map[string]interface{}{"component": "scraper", "platform": platform.String()})

	attempts := opts.MaxRetries + 1
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	retrier := retry.NewScrapeRetrier(attempts, delay, log).
		WithOnRetry(func(_ int, err error, _ time.Duration) {
			metrics.IncScrapeRetry(platform.String(), string(errs.ReasonOf(err)))
		})

	return httpBase{
		platform:      platform,
		site:          site,
		sessionCookie: sessionCookie,
		opts:          opts,
		sessions:      sessions,
		limits:        ratelimit.NewKeyed(opts.RequestsPerMinute, opts.BurstSize),
		retrier:       retrier,
		log:           log,
	}
}

// fetchClient is an http.Client bound to one account for one fetch
type fetchClient struct {
	*http.Client
	account models.ScraperAccount
	handle  string
}

// clientFor builds a client carrying the account's cookies and proxy
func (b *httpBase) clientFor(account models.ScraperAccount) (*fetchClient, error) {
	handle := account.SessionHandle
	if handle == "" {
		handle = session.HandleFor(b.platform.String(), account.Username)
	}

	var (
		jar    http.CookieJar
		seeded bool
		err    error
	)
	if b.sessions != nil {
		jar, seeded, err = b.sessions.Jar(handle, b.site)
		if err != nil {
			b.log.WithError(err).WarnWithFields("ignoring unreadable session file", map[string]interface{}{
				"account_id": account.ID,
				"handle":     handle,
			})
			seeded = false
		}
	}
	if jar == nil {
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, errs.ScrapeFailed(errs.ReasonNetwork, "failed to create cookie jar", err)
		}
	}
	if !seeded && account.Credentials != "" {
		jar.SetCookies(b.site, credentialCookies(account.Credentials, b.sessionCookie))
	}

	transport, err := b.transport(account.Proxy)
	if err != nil {
		return nil, errs.ScrapeFailed(errs.ReasonNetwork, "invalid proxy for account "+account.Username, err)
	}

	return &fetchClient{
		Client:  &http.Client{Jar: jar, Transport: transport},
		account: account,
		handle:  handle,
	}, nil
}

func (b *httpBase) transport(proxy string) (http.RoundTripper, error) {
	if b.opts.Transport != nil && proxy == "" {
		return b.opts.Transport, nil
	}
	base, ok := b.opts.Transport.(*http.Transport)
	if !ok || base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	t := base.Clone()
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		t.Proxy = http.ProxyURL(u)
	}
	return t, nil
}

// credentialCookies turns a stored secret into cookies. The secret is either
// a cookie header ("sessionid=..; csrftoken=..") or a bare session value.
func credentialCookies(secret, defaultName string) []*http.Cookie {
	if !strings.Contains(secret, "=") {
		return []*http.Cookie{{Name: defaultName, Value: strings.TrimSpace(secret), Path: "/"}}
	}
	var out []*http.Cookie
	for _, part := range strings.Split(secret, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return out
}

// saveSession writes the jar back and returns the handle, or "" on failure
func (b *httpBase) saveSession(fc *fetchClient) string {
	if b.sessions == nil || fc.Jar == nil {
		return ""
	}
	if err := b.sessions.Save(fc.handle, b.site, fc.Jar.Cookies(b.site)); err != nil {
		b.log.WithError(err).WarnWithFields("failed to save session", map[string]interface{}{
			"account_id": fc.account.ID,
		})
		return ""
	}
	return fc.handle
}

// get performs a paced, retried GET and returns the body
func (b *httpBase) get(ctx context.Context, fc *fetchClient, target string, headers map[string]string) ([]byte, error) {
	key := b.platform.String() + ":" + fc.account.Username

	var body []byte
	err := b.retrier.Do(ctx, func(ctx context.Context) error {
		if err := b.limits.Wait(ctx, key); err != nil {
			if ctx.Err() != nil {
				return contextFailure(ctx.Err())
			}
			// the limiter refuses waits that would outlast the deadline
			return errs.ScrapeFailed(errs.ReasonTimeout, "rate limit wait exceeds deadline", context.DeadlineExceeded)
		}
		var err error
		body, err = b.doGet(ctx, fc, target, headers)
		return err
	})
	return body, err
}

func (b *httpBase) doGet(ctx context.Context, fc *fetchClient, target string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.ScrapeFailed(errs.ReasonParseFailed, "failed to create request", err)
	}
	req.Header.Set("User-Agent", b.opts.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := fc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextFailure(ctxErr)
		}
		b.log.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      target,
			"duration": time.Since(start),
		})
		return nil, errs.ScrapeFailed(errs.ReasonNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	b.log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      target,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := statusFailure(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextFailure(ctxErr)
		}
		return nil, errs.ScrapeFailed(errs.ReasonNetwork, "failed to read response body", err)
	}
	return body, nil
}

// statusFailure maps an HTTP status to a scrape failure
func statusFailure(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.ScrapeFailedWithCode(errs.ReasonLoginFailed, code, "authentication required")
	case code == http.StatusNotFound:
		return errs.ScrapeFailedWithCode(errs.ReasonNotFound, code, "profile not found")
	case code == http.StatusTooManyRequests:
		return errs.ScrapeFailedWithCode(errs.ReasonRateLimited, code, "rate limit exceeded")
	case code >= 500:
		return errs.ScrapeFailedWithCode(errs.ReasonServerError, code, "server error")
	default:
		return errs.ScrapeFailedWithCode(errs.ReasonParseFailed, code, fmt.Sprintf("unexpected status code: %d", code))
	}
}

func contextFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ScrapeFailed(errs.ReasonTimeout, "scrape timed out", err)
	}
	return err
}
