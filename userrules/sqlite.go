package userrules

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AdguardTeam/golibs/errors"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// schema is the database schema of [SQLiteStore].
const schema = `
CREATE TABLE IF NOT EXISTS user_rules (
	host VARCHAR(255) PRIMARY KEY,
	action INTEGER NOT NULL
);
`

// SQLiteStore is a [Store] that keeps the rules in an SQLite database, so
// that they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// type check
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(ctx context.Context, path string) (s *SQLiteStore, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening user rules db: %w", err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("migrating user rules db: %w", err), db.Close())
	}

	return &SQLiteStore{
		db: db,
	}, nil
}

// Load implements the [Store] interface for *SQLiteStore.  The rules are
// sorted by host.
func (s *SQLiteStore) Load(ctx context.Context) (rs []Rule, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host, action FROM user_rules ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("querying user rules: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, rows.Close()) }()

	for rows.Next() {
		var r Rule
		err = rows.Scan(&r.Host, &r.Action)
		if err != nil {
			return nil, fmt.Errorf("scanning user rule: %w", err)
		}

		rs = append(rs, r)
	}

	return rs, rows.Err()
}

// Put implements the [Store] interface for *SQLiteStore.
func (s *SQLiteStore) Put(ctx context.Context, r Rule) (err error) {
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO user_rules (host, action) VALUES ($1, $2)
		ON CONFLICT(host) DO UPDATE SET action = excluded.action`,
		r.Host,
		r.Action,
	)
	if err != nil {
		return fmt.Errorf("storing user rule for %q: %w", r.Host, err)
	}

	return nil
}

// Delete implements the [Store] interface for *SQLiteStore.
func (s *SQLiteStore) Delete(ctx context.Context, host string) (err error) {
	_, err = s.db.ExecContext(ctx, `DELETE FROM user_rules WHERE host = $1`, host)
	if err != nil {
		return fmt.Errorf("deleting user rule for %q: %w", host, err)
	}

	return nil
}

// Close implements the [Store] interface for *SQLiteStore.
func (s *SQLiteStore) Close() (err error) {
	return s.db.Close()
}
