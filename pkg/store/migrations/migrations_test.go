package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyFreshDatabase(t *testing.T) {
	db := openTestDB(t)

	st, err := Apply(db)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
	assert.Equal(t, uint(1), st.Current)

	for _, table := range []string{"targets", "scraper_accounts", "snapshots", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	_, err := Apply(db)
	require.NoError(t, err)
	st, err := Apply(db)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
}

func TestVerify(t *testing.T) {
	db := openTestDB(t)

	st, err := Inspect(db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), st.Current)
	assert.False(t, st.UpToDate())
	assert.ErrorIs(t, Verify(db), ErrUnversioned)

	_, err = Apply(db)
	require.NoError(t, err)
	assert.NoError(t, Verify(db))
}

func TestVerifyDirtySchema(t *testing.T) {
	db := openTestDB(t)
	_, err := Apply(db)
	require.NoError(t, err)

	_, err = db.Exec("UPDATE schema_migrations SET dirty = 1")
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(db), ErrDirty)
}

func TestLatest(t *testing.T) {
	v, err := Latest()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}
