// Package ratelimit throttles requests to the social platforms.
//
// TokenBucket wraps golang.org/x/time/rate. Keyed holds one bucket per
// scraper account so that concurrent scrapes through different accounts do
// not share a budget:
//
//	limits := ratelimit.NewKeyed(20, 3)
//	if err := limits.Wait(ctx, "instagram:watcher1"); err != nil {
//	    return err
//	}
package ratelimit
