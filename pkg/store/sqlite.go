package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"followwatch/pkg/models"
	"followwatch/pkg/store/migrations"
)

// SQLiteStore implements Store on a single SQLite file
type SQLiteStore struct {
	db      *sql.DB
	path    string
	secrets SecretResolver
	clock   models.Clock
}

// NewSQLiteStore opens path, migrates it to the latest schema and returns
// the store. path can be ":memory:". secrets may be nil, in which case
// accounts are returned without credentials.
func NewSQLiteStore(path string, secrets SecretResolver) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if _, err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, secrets: secrets, clock: models.RealClock{}}, nil
}

// OpenConnection opens and configures a SQLite connection. A single
// connection is used so that ":memory:" databases are shared and writes
// never contend.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// SetClock overrides the clock used for creation times
func (s *SQLiteStore) SetClock(c models.Clock) {
	s.clock = c
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func encodeIDs(ids []string) (sql.NullString, error) {
	if ids == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeIDs(s sql.NullString) ([]string, error) {
	if !s.Valid {
		return nil, nil
	}
	ids := []string{}
	if err := json.Unmarshal([]byte(s.String), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func affected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const targetColumns = `id, owner_id, platform, profile_url, username, active, last_checked_at, created_at`

func scanTarget(row rowScanner) (models.TrackedTarget, error) {
	var (
		t         models.TrackedTarget
		platform  string
		active    int
		lastCheck sql.NullInt64
		created   int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &platform, &t.ProfileURL, &t.Username, &active, &lastCheck, &created); err != nil {
		return t, err
	}
	t.Platform = models.Platform(platform)
	t.Active = active != 0
	t.LastCheckedAt = nullTime(lastCheck)
	t.CreatedAt = fromNanos(created)
	return t, nil
}

func (s *SQLiteStore) queryTargets(ctx context.Context, query string, args ...any) ([]models.TrackedTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	out := []models.TrackedTarget{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListActiveTargets implements Store
func (s *SQLiteStore) ListActiveTargets(ctx context.Context) ([]models.TrackedTarget, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM targets WHERE active = 1 ORDER BY id`)
}

// ListTargets implements Store; an empty ownerID lists every target
func (s *SQLiteStore) ListTargets(ctx context.Context, ownerID string) ([]models.TrackedTarget, error) {
	if ownerID == "" {
		return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
	}
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM targets WHERE owner_id = ? ORDER BY id`, ownerID)
}

// GetTarget implements Store
func (s *SQLiteStore) GetTarget(ctx context.Context, id int64) (*models.TrackedTarget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding target: %w", err)
	}
	return &t, nil
}

// SetTargetLastChecked implements Store
func (s *SQLiteStore) SetTargetLastChecked(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE targets SET last_checked_at = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("updating last checked: %w", err)
	}
	return affected(res, "target", id)
}

// AddTarget implements Store
func (s *SQLiteStore) AddTarget(ctx context.Context, t models.TrackedTarget) (models.TrackedTarget, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (owner_id, platform, profile_url, username, active, last_checked_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, string(t.Platform), t.ProfileURL, t.Username, boolInt(t.Active), nullNanos(t.LastCheckedAt), toNanos(t.CreatedAt))
	if isUniqueViolation(err) {
		return models.TrackedTarget{}, fmt.Errorf("target %s: %w", t.ProfileURL, ErrDuplicate)
	}
	if err != nil {
		return models.TrackedTarget{}, fmt.Errorf("inserting target: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return models.TrackedTarget{}, err
	}
	t.CreatedAt = fromNanos(toNanos(t.CreatedAt))
	return t, nil
}

// SetTargetActive implements Store
func (s *SQLiteStore) SetTargetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE targets SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("updating target: %w", err)
	}
	return affected(res, "target", id)
}

// DeleteTarget implements Store; the target's snapshots go with it
func (s *SQLiteStore) DeleteTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting target: %w", err)
	}
	return affected(res, "target", id)
}

// AddSnapshot implements Store
func (s *SQLiteStore) AddSnapshot(ctx context.Context, snap models.Snapshot) (models.Snapshot, error) {
	followers, err := encodeIDs(snap.Followers)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("encoding followers: %w", err)
	}
	following, err := encodeIDs(snap.Following)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("encoding following: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(taken_at) FROM snapshots WHERE target_id = ?`, snap.TargetID).Scan(&last); err != nil {
		return models.Snapshot{}, fmt.Errorf("reading last snapshot time: %w", err)
	}
	var lastTime time.Time
	if last.Valid {
		lastTime = fromNanos(last.Int64)
	}
	snap.Timestamp = nextTimestamp(fromNanos(toNanos(snap.Timestamp)), lastTime, last.Valid)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (target_id, taken_at, follower_count, following_count, followers, following)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.TargetID, toNanos(snap.Timestamp), snap.FollowerCount, snap.FollowingCount, followers, following)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return models.Snapshot{}, fmt.Errorf("target %d: %w", snap.TargetID, ErrNotFound)
		}
		return models.Snapshot{}, fmt.Errorf("inserting snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return models.Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Snapshot{}, fmt.Errorf("committing snapshot: %w", err)
	}
	return snap, nil
}

// LastTwoSnapshots implements Store
func (s *SQLiteStore) LastTwoSnapshots(ctx context.Context, targetID int64) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, taken_at, follower_count, following_count, followers, following
		 FROM snapshots WHERE target_id = ? ORDER BY taken_at DESC, id DESC LIMIT 2`, targetID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	out := []models.Snapshot{}
	for rows.Next() {
		var (
			snap                 models.Snapshot
			taken                int64
			followers, following sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.TargetID, &taken, &snap.FollowerCount, &snap.FollowingCount, &followers, &following); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.Timestamp = fromNanos(taken)
		if snap.Followers, err = decodeIDs(followers); err != nil {
			return nil, fmt.Errorf("decoding followers of snapshot %d: %w", snap.ID, err)
		}
		if snap.Following, err = decodeIDs(following); err != nil {
			return nil, fmt.Errorf("decoding following of snapshot %d: %w", snap.ID, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

const accountColumns = `id, platform, username, proxy, active, last_used_at, session_handle`

func (s *SQLiteStore) queryAccounts(ctx context.Context, query string, args ...any) ([]models.ScraperAccount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	out := []models.ScraperAccount{}
	for rows.Next() {
		var (
			a        models.ScraperAccount
			platform string
			active   int
			lastUsed sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &platform, &a.Username, &a.Proxy, &active, &lastUsed, &a.SessionHandle); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Platform = models.Platform(platform)
		a.Active = active != 0
		a.LastUsedAt = nullTime(lastUsed)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.secrets != nil {
		for i := range out {
			if secret, err := s.secrets.Get(string(out[i].Platform), out[i].Username); err == nil {
				out[i].Credentials = secret
			}
		}
	}
	return out, nil
}

// ListAccounts implements Store
func (s *SQLiteStore) ListAccounts(ctx context.Context, platform models.Platform) ([]models.ScraperAccount, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM scraper_accounts WHERE platform = ? ORDER BY id`, string(platform))
}

// ListAllAccounts implements Store
func (s *SQLiteStore) ListAllAccounts(ctx context.Context) ([]models.ScraperAccount, error) {
	return s.queryAccounts(ctx, `SELECT `+accountColumns+` FROM scraper_accounts ORDER BY platform, id`)
}

// TouchAccount implements Store
func (s *SQLiteStore) TouchAccount(ctx context.Context, id int64, usedAt time.Time, sessionHandle string) error {
	query := `UPDATE scraper_accounts SET last_used_at = ? WHERE id = ?`
	args := []any{toNanos(usedAt), id}
	if sessionHandle != "" {
		query = `UPDATE scraper_accounts SET last_used_at = ?, session_handle = ? WHERE id = ?`
		args = []any{toNanos(usedAt), sessionHandle, id}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touching account: %w", err)
	}
	return affected(res, "account", id)
}

// AddAccount implements Store. Credentials are not written to the database.
func (s *SQLiteStore) AddAccount(ctx context.Context, a models.ScraperAccount) (models.ScraperAccount, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scraper_accounts (platform, username, proxy, active, last_used_at, session_handle, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(a.Platform), a.Username, a.Proxy, boolInt(a.Active), nullNanos(a.LastUsedAt), a.SessionHandle, toNanos(s.clock.Now()))
	if isUniqueViolation(err) {
		return models.ScraperAccount{}, fmt.Errorf("account %s: %w", a.Username, ErrDuplicate)
	}
	if err != nil {
		return models.ScraperAccount{}, fmt.Errorf("inserting account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return models.ScraperAccount{}, err
	}
	return a, nil
}

// SetAccountActive implements Store
func (s *SQLiteStore) SetAccountActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scraper_accounts SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	return affected(res, "account", id)
}

// DeleteAccount implements Store
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scraper_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return affected(res, "account", id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
