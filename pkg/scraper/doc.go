// Package scraper fetches follower observations from the social platforms.
//
// Each platform has one Scraper implementation, looked up through a
// Registry by platform tag. A scrape runs under a leased scraper account:
// the account's cookie jar is seeded from its session file, its proxy (if
// any) is used for every request, and the jar is written back after a
// successful fetch.
//
// Failures are typed *errors.Error values of kind scrape_failed carrying a
// reason (not_found, private, login_failed, rate_limited, ...). Transient
// reasons are retried with backoff before they are returned.
//
// Usage:
//
//	registry := scraper.NewRegistry(
//	    scraper.NewInstagram(opts, sessions, log),
//	    scraper.NewTikTok(opts, sessions, log),
//	)
//	s, ok := registry.Get(target.Platform)
//	result, err := s.Fetch(ctx, lease.Account, target.ProfileURL)
package scraper
