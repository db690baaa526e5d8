package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := ScrapeFailedWithCode(ReasonNotFound, 404, "profile missing")
	assert.Equal(t, "scrape_failed/not_found (code 404): profile missing", err.Error())

	wrapped := StoreFailure("add snapshot", fmt.Errorf("disk full"))
	assert.Equal(t, "store_failure: add snapshot: disk full", wrapped.Error())
}

func TestKindAndReasonThroughWrapping(t *testing.T) {
	base := ScrapeFailed(ReasonTimeout, "fetch", context.DeadlineExceeded)
	err := fmt.Errorf("task 7: %w", base)

	assert.Equal(t, KindScrapeFailed, KindOf(err))
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.True(t, Is(err, context.DeadlineExceeded))

	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
	assert.Equal(t, ReasonNone, ReasonOf(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pool exhausted", PoolExhausted("instagram", nil), true},
		{"timeout", ScrapeFailed(ReasonTimeout, "", nil), true},
		{"rate limited", ScrapeFailed(ReasonRateLimited, "", nil), true},
		{"network", ScrapeFailed(ReasonNetwork, "", nil), true},
		{"not found", ScrapeFailed(ReasonNotFound, "", nil), false},
		{"private", ScrapeFailed(ReasonPrivate, "", nil), false},
		{"login", ScrapeFailed(ReasonLoginFailed, "", nil), false},
		{"store", StoreFailure("op", nil), false},
		{"untyped", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(200))
}
