package db

// Amounts are stored as TEXT in SQLite and NUMERIC in Postgres so that
// decimal values round-trip exactly.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS account (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	cash TEXT NOT NULL,
	starting_balance TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	shares TEXT NOT NULL,
	average_cost TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS equity_history (
	bucket TEXT PRIMARY KEY,
	total_equity TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	total TEXT NOT NULL,
	realized_pl TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS account (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	cash NUMERIC NOT NULL,
	starting_balance NUMERIC NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS positions (
	symbol VARCHAR(16) PRIMARY KEY,
	shares NUMERIC NOT NULL CHECK (shares > 0),
	average_cost NUMERIC NOT NULL CHECK (average_cost > 0),
	cost_basis NUMERIC NOT NULL CHECK (cost_basis > 0),
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS equity_history (
	bucket VARCHAR(32) PRIMARY KEY,
	total_equity NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS trades (
	id CHAR(26) PRIMARY KEY,
	symbol VARCHAR(16) NOT NULL,
	side VARCHAR(4) NOT NULL CHECK (side IN ('BUY', 'SELL')),
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	total NUMERIC NOT NULL,
	realized_pl NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
}
