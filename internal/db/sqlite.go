package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name:      "sqlite3",
	schema:    sqliteSchema,
	rebind:    func(q string) string { return q },
	maxConns:  4,
	idleConns: 2,
}

// sqliteParams make every transaction BEGIN IMMEDIATE so the write lock is
// held from the first read of a trade, and wait on a busy file instead of
// failing straight away when another process holds it. Each entry lists the
// driver's aliases for the same setting.
var sqliteParams = []struct {
	keys  []string
	value string
}{
	{[]string{"_txlock"}, "immediate"},
	{[]string{"_busy_timeout", "_timeout"}, "5000"},
	{[]string{"_journal_mode", "_journal"}, "WAL"},
}

// sqliteDSN turns a path or a file: URI into a DSN carrying sqliteParams.
// Settings already present in a URI are kept as given.
func sqliteDSN(path string) (string, error) {
	name, rawQuery, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid sqlite path %q: %w", path, err)
	}
	for _, p := range sqliteParams {
		if !hasAny(query, p.keys) {
			query.Set(p.keys[0], p.value)
		}
	}
	return "file:" + name + "?" + query.Encode(), nil
}

func hasAny(q url.Values, keys []string) bool {
	for _, k := range keys {
		if q.Has(k) {
			return true
		}
	}
	return false
}

func openSQLite(path string) (*sql.DB, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}
