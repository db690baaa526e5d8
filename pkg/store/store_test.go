package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followwatch/internal/testutil"
	"followwatch/pkg/credentials"
	"followwatch/pkg/models"
)

type factory func(t *testing.T) Store

func implementations() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T) Store {
			m := NewMemoryStore()
			m.SetClock(testutil.FrozenClock())
			return m
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(":memory:", nil)
			require.NoError(t, err)
			s.SetClock(testutil.FrozenClock())
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			fn(t, mk(t))
		})
	}
}

func addTarget(t *testing.T, s Store, owner, url string, active bool) models.TrackedTarget {
	t.Helper()
	target, err := s.AddTarget(context.Background(), models.TrackedTarget{
		OwnerID:    owner,
		Platform:   models.PlatformInstagram,
		ProfileURL: url,
		Username:   filepath.Base(url),
		Active:     active,
	})
	require.NoError(t, err)
	return target
}

func TestTargets(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := addTarget(t, s, "u1", "https://instagram.com/alpha", true)
		b := addTarget(t, s, "u1", "https://instagram.com/beta", false)
		c := addTarget(t, s, "u2", "https://instagram.com/gamma", true)

		assert.NotZero(t, a.ID)
		assert.Equal(t, testutil.Epoch, a.CreatedAt.UTC())

		active, err := s.ListActiveTargets(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, a.ID, active[0].ID)
		assert.Equal(t, c.ID, active[1].ID)

		owned, err := s.ListTargets(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, owned, 2)

		all, err := s.ListTargets(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		_, err = s.AddTarget(ctx, models.TrackedTarget{OwnerID: "u1", Platform: models.PlatformInstagram, ProfileURL: "https://instagram.com/alpha"})
		assert.ErrorIs(t, err, ErrDuplicate)

		require.NoError(t, s.SetTargetActive(ctx, b.ID, true))
		got, err := s.GetTarget(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.Active)
		assert.Nil(t, got.LastCheckedAt)

		checked := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.SetTargetLastChecked(ctx, b.ID, checked))
		got, err = s.GetTarget(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastCheckedAt)
		assert.True(t, checked.Equal(*got.LastCheckedAt))

		require.NoError(t, s.DeleteTarget(ctx, b.ID))
		_, err = s.GetTarget(ctx, b.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteTarget(ctx, b.ID), ErrNotFound)
		assert.ErrorIs(t, s.SetTargetActive(ctx, 999, false), ErrNotFound)
	})
}

func TestSnapshots(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		target := addTarget(t, s, "u1", "https://instagram.com/alpha", true)

		none, err := s.LastTwoSnapshots(ctx, target.ID)
		require.NoError(t, err)
		assert.Empty(t, none)

		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		first, err := s.AddSnapshot(ctx, models.Snapshot{
			TargetID: target.ID, Timestamp: ts, FollowerCount: 2, Followers: []string{"a", "b"},
		})
		require.NoError(t, err)
		assert.NotZero(t, first.ID)

		// same timestamp again is pushed forward
		second, err := s.AddSnapshot(ctx, models.Snapshot{
			TargetID: target.ID, Timestamp: ts, FollowerCount: 2, Followers: []string{"a", "c"},
		})
		require.NoError(t, err)
		assert.True(t, second.Timestamp.After(first.Timestamp))

		// counts only, no sets
		third, err := s.AddSnapshot(ctx, models.Snapshot{
			TargetID: target.ID, Timestamp: ts.Add(-time.Hour), FollowerCount: 5, FollowingCount: 1,
		})
		require.NoError(t, err)
		assert.True(t, third.Timestamp.After(second.Timestamp))

		last, err := s.LastTwoSnapshots(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, third.ID, last[0].ID)
		assert.Equal(t, second.ID, last[1].ID)
		assert.Nil(t, last[0].Followers)
		assert.False(t, last[0].HasFollowerSet())
		assert.Equal(t, []string{"a", "c"}, last[1].Followers)
		assert.Equal(t, 1, last[0].FollowingCount)

		_, err = s.AddSnapshot(ctx, models.Snapshot{TargetID: 4242, Timestamp: ts})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEmptySetIsNotMissingSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		target := addTarget(t, s, "u1", "https://instagram.com/alpha", true)

		_, err := s.AddSnapshot(ctx, models.Snapshot{TargetID: target.ID, Timestamp: time.Now(), Followers: []string{}})
		require.NoError(t, err)

		last, err := s.LastTwoSnapshots(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, last, 1)
		assert.True(t, last[0].HasFollowerSet())
		assert.Empty(t, last[0].Followers)
	})
}

func TestAccounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ig, err := s.AddAccount(ctx, models.ScraperAccount{Platform: models.PlatformInstagram, Username: "w1", Active: true})
		require.NoError(t, err)
		tt, err := s.AddAccount(ctx, models.ScraperAccount{Platform: models.PlatformTikTok, Username: "w2", Active: true, Proxy: "http://proxy:8080"})
		require.NoError(t, err)

		_, err = s.AddAccount(ctx, models.ScraperAccount{Platform: models.PlatformInstagram, Username: "w1"})
		assert.ErrorIs(t, err, ErrDuplicate)

		igs, err := s.ListAccounts(ctx, models.PlatformInstagram)
		require.NoError(t, err)
		require.Len(t, igs, 1)
		assert.Equal(t, ig.ID, igs[0].ID)
		assert.Nil(t, igs[0].LastUsedAt)

		used := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		require.NoError(t, s.TouchAccount(ctx, ig.ID, used, "instagram_w1.json"))
		require.NoError(t, s.TouchAccount(ctx, ig.ID, used.Add(time.Minute), ""))

		igs, err = s.ListAccounts(ctx, models.PlatformInstagram)
		require.NoError(t, err)
		require.NotNil(t, igs[0].LastUsedAt)
		assert.True(t, used.Add(time.Minute).Equal(*igs[0].LastUsedAt))
		assert.Equal(t, "instagram_w1.json", igs[0].SessionHandle)

		require.NoError(t, s.SetAccountActive(ctx, tt.ID, false))
		all, err := s.ListAllAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		for _, a := range all {
			if a.ID == tt.ID {
				assert.False(t, a.Active)
				assert.Equal(t, "http://proxy:8080", a.Proxy)
			}
		}

		require.NoError(t, s.DeleteAccount(ctx, tt.ID))
		assert.ErrorIs(t, s.DeleteAccount(ctx, tt.ID), ErrNotFound)
		assert.ErrorIs(t, s.TouchAccount(ctx, tt.ID, used, ""), ErrNotFound)
	})
}

func TestSQLiteResolvesCredentials(t *testing.T) {
	secrets := credentials.NewMemoryStore()
	require.NoError(t, secrets.Put("instagram", "w1", "sessionid=abc"))

	s, err := NewSQLiteStore(":memory:", secrets)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.AddAccount(ctx, models.ScraperAccount{Platform: models.PlatformInstagram, Username: "w1", Active: true, Credentials: "ignored"})
	require.NoError(t, err)
	_, err = s.AddAccount(ctx, models.ScraperAccount{Platform: models.PlatformInstagram, Username: "w2", Active: true})
	require.NoError(t, err)

	accounts, err := s.ListAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "sessionid=abc", accounts[0].Credentials)
	assert.Empty(t, accounts[1].Credentials)
}

func TestSQLiteFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fw.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	target := addTarget(t, s, "u1", "https://instagram.com/alpha", true)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Username)
}
