package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followwatch/internal/testutil"
	"followwatch/pkg/logger"
	"followwatch/pkg/models"
	"followwatch/pkg/store"
)

func at(hour, min int) *time.Time {
	t := time.Date(2024, 1, 15, hour, min, 0, 0, time.UTC)
	return &t
}

func newPool(t *testing.T, accounts ...models.ScraperAccount) (*Pool, *store.MemoryStore, *testutil.ManualClock) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, a := range accounts {
		_, err := st.AddAccount(context.Background(), a)
		require.NoError(t, err)
	}
	clock := testutil.NewManualClock(*at(12, 0))
	p := New(st, []models.Platform{models.PlatformInstagram, models.PlatformTikTok}, logger.NewNopLogger())
	p.SetClock(clock)
	require.NoError(t, p.Refresh(context.Background()))
	return p, st, clock
}

func igAccount(name string, lastUsed *time.Time) models.ScraperAccount {
	return models.ScraperAccount{Platform: models.PlatformInstagram, Username: name, Active: true, LastUsedAt: lastUsed}
}

func TestAcquirePicksLeastRecentlyUsed(t *testing.T) {
	// X used at 10:00, Y at 09:00: Y goes first, then X
	p, st, _ := newPool(t, igAccount("x", at(10, 0)), igAccount("y", at(9, 0)))
	ctx := context.Background()

	first, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "y", first.Account.Username)

	second, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "x", second.Account.Username)

	_, err = p.Acquire(ctx, models.PlatformInstagram)
	assert.ErrorIs(t, err, ErrNoAccountAvailable)

	// last-used was persisted at acquire time
	accounts, err := st.ListAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	for _, a := range accounts {
		require.NotNil(t, a.LastUsedAt)
		assert.True(t, at(12, 0).Equal(*a.LastUsedAt))
	}
}

func TestNeverUsedCountsAsOldestAndTiesBreakByID(t *testing.T) {
	p, _, _ := newPool(t,
		igAccount("used", at(8, 0)),
		igAccount("fresh1", nil),
		igAccount("fresh2", nil),
	)
	ctx := context.Background()

	a, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	b, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	c, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh1", "fresh2", "used"},
		[]string{a.Account.Username, b.Account.Username, c.Account.Username})
}

func TestReleaseMakesAccountSelectableAgain(t *testing.T) {
	p, _, clock := newPool(t, igAccount("x", at(10, 0)), igAccount("y", at(9, 0)))
	ctx := context.Background()

	y, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	p.Release(ctx, y, "")

	// y is now the most recently used, so x comes next
	clock.Advance(time.Minute)
	next, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "x", next.Account.Username)

	again, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "y", again.Account.Username)
}

func TestConcurrentAcquiresAreDistinct(t *testing.T) {
	const n = 8
	var accounts []models.ScraperAccount
	for i := 0; i < n; i++ {
		accounts = append(accounts, igAccount(string(rune('a'+i)), nil))
	}
	p, _, _ := newPool(t, accounts...)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leased = map[int64]int{}
		failed int
	)
	for i := 0; i < n+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := p.Acquire(ctx, models.PlatformInstagram)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrNoAccountAvailable)
				failed++
				return
			}
			leased[l.Account.ID]++
		}()
	}
	wg.Wait()

	assert.Len(t, leased, n)
	for id, count := range leased {
		assert.Equal(t, 1, count, "account %d leased twice", id)
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, n, p.InUse())
}

func TestInactiveAndOtherPlatformAccountsAreIgnored(t *testing.T) {
	inactive := igAccount("off", nil)
	inactive.Active = false
	p, _, _ := newPool(t, inactive, models.ScraperAccount{Platform: models.PlatformTikTok, Username: "tt", Active: true})

	_, err := p.Acquire(context.Background(), models.PlatformInstagram)
	assert.ErrorIs(t, err, ErrNoAccountAvailable)

	l, err := p.Acquire(context.Background(), models.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, "tt", l.Account.Username)

	assert.Equal(t, 1, p.Capacity())
	assert.Equal(t, 0, p.CapacityFor(models.PlatformInstagram))
}

func TestReleaseTwiceIsNoop(t *testing.T) {
	p, _, _ := newPool(t, igAccount("x", nil))
	ctx := context.Background()

	first, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	p.Release(ctx, first, "")

	second, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)

	// stale release of the first lease must not free the second
	p.Release(ctx, first, "")
	assert.Equal(t, 1, p.InUse())

	p.Release(ctx, second, "")
	p.Release(ctx, second, "")
	p.Release(ctx, nil, "")
	assert.Equal(t, 0, p.InUse())
}

func TestReleasePersistsSessionHandleOnly(t *testing.T) {
	p, st, clock := newPool(t, igAccount("x", nil))
	ctx := context.Background()

	l, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	p.Release(ctx, l, "instagram_x.json")

	accounts, err := st.ListAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "instagram_x.json", accounts[0].SessionHandle)
	assert.True(t, at(12, 0).Equal(*accounts[0].LastUsedAt))
}

func TestRefreshKeepsLeases(t *testing.T) {
	p, st, _ := newPool(t, igAccount("x", nil), igAccount("y", nil))
	ctx := context.Background()

	x, err := p.Acquire(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	require.Equal(t, "x", x.Account.Username)

	_, err = st.AddAccount(ctx, igAccount("z", nil))
	require.NoError(t, err)
	require.NoError(t, st.DeleteAccount(ctx, x.Account.ID))
	require.NoError(t, p.Refresh(ctx))

	// x is still leased even though it left the roster
	assert.Equal(t, 1, p.InUse())
	assert.Equal(t, 2, p.Capacity())

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		l, err := p.Acquire(ctx, models.PlatformInstagram)
		require.NoError(t, err)
		got[l.Account.Username] = true
	}
	assert.Equal(t, map[string]bool{"y": true, "z": true}, got)

	p.Release(ctx, x, "")
	_, err = p.Acquire(ctx, models.PlatformInstagram)
	assert.ErrorIs(t, err, ErrNoAccountAvailable)
}

type failingTouch struct {
	*store.MemoryStore
}

func (f failingTouch) TouchAccount(ctx context.Context, id int64, usedAt time.Time, session string) error {
	return errors.New("disk full")
}

func TestTouchFailureKeepsLease(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.AddAccount(context.Background(), igAccount("x", nil))
	require.NoError(t, err)

	log := logger.NewTestLogger()
	p := New(failingTouch{st}, []models.Platform{models.PlatformInstagram}, log)
	require.NoError(t, p.Refresh(context.Background()))

	l, err := p.Acquire(context.Background(), models.PlatformInstagram)
	require.NoError(t, err)
	assert.NotNil(t, l)
	assert.True(t, log.HasMessage("failed to persist account last-used"))
}
