// Package migrations owns the sqlite schema. Versions are the numeric
// prefixes of the embedded files/*.sql scripts.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var scripts embed.FS

var (
	// ErrUnversioned means no migration was ever applied
	ErrUnversioned = errors.New("schema not initialised")
	// ErrDirty means a previous migration stopped halfway
	ErrDirty = errors.New("schema left dirty by an interrupted migration")
	// ErrOutdated means the database and the binary disagree on the version
	ErrOutdated = errors.New("schema version mismatch")
)

// Status describes the schema of one database
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// UpToDate reports whether the schema matches the embedded scripts
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Current == s.Latest
}

// Inspect reads the schema version of db. Current is 0 for a fresh database.
func Inspect(db *sql.DB) (Status, error) {
	latest, err := Latest()
	if err != nil {
		return Status{}, err
	}
	m, err := open(db)
	if err != nil {
		return Status{}, err
	}
	// closing m would close db, which belongs to the caller

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Current: current, Latest: latest, Dirty: dirty}, nil
}

// Verify fails unless db is at the latest schema
func Verify(db *sql.DB) error {
	st, err := Inspect(db)
	if err != nil {
		return err
	}
	switch {
	case st.Dirty:
		return fmt.Errorf("%w (version %d)", ErrDirty, st.Current)
	case st.Current == 0:
		return ErrUnversioned
	case st.Current != st.Latest:
		return fmt.Errorf("%w: database at %d, followwatch expects %d", ErrOutdated, st.Current, st.Latest)
	}
	return nil
}

// Apply brings db to the latest schema and returns the resulting status
func Apply(db *sql.DB) (Status, error) {
	m, err := open(db)
	if err != nil {
		return Status{}, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Status{}, fmt.Errorf("apply schema migrations: %w", err)
	}
	return Inspect(db)
}

// Latest is the highest version among the embedded up scripts
func Latest() (uint, error) {
	entries, err := fs.ReadDir(scripts, "files")
	if err != nil {
		return 0, fmt.Errorf("list schema scripts: %w", err)
	}
	var latest uint
	for _, e := range entries {
		mig, err := source.Parse(e.Name())
		if err != nil {
			return 0, fmt.Errorf("schema script %s: %w", e.Name(), err)
		}
		if mig.Direction == source.Up && mig.Version > latest {
			latest = mig.Version
		}
	}
	if latest == 0 {
		return 0, errors.New("no schema scripts embedded")
	}
	return latest, nil
}

func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(scripts, "files")
	if err != nil {
		return nil, fmt.Errorf("load schema scripts: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("prepare sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("prepare migrator: %w", err)
	}
	return m, nil
}
