package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq" // PostgreSQL driver
)

var postgresDialect = dialect{
	name:      "postgres",
	schema:    postgresSchema,
	lockCash:  " FOR UPDATE",
	readTx:    &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	rebind:    rebindDollar,
	maxConns:  25,
	idleConns: 5,
}

// openPostgres opens a Postgres ledger through lib/pq.
func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}

// openPgx opens a Postgres ledger through pgx's database/sql adapter with
// NUMERIC columns decoded straight into shopspring decimals.
func openPgx(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	db := stdlib.OpenDB(*cfg, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}))
	return db, nil
}

func configurePool(db *sql.DB, d dialect) {
	db.SetMaxOpenConns(d.maxConns)
	db.SetMaxIdleConns(d.idleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// rebindDollar turns ? placeholders into $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
