// Package retry provides backoff and retry logic for transient scrape
// failures.
//
// Only errors classified as retryable by pkg/errors are retried: timeouts,
// rate limits, network and server errors. Not-found, private and login
// failures return immediately, as do context errors.
//
// Usage:
//
//	r := retry.NewScrapeRetrier(3, 2*time.Second, log)
//	err := r.Do(ctx, func(ctx context.Context) error {
//	    return fetchProfile(ctx)
//	})
//
// Rate-limited attempts back off on a longer schedule than other failures.
package retry
