package ledgerdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps the mirror database connection.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the ledger mirror. driver is "sqlite" or "postgres".
func Open(driver, dataSourceName string) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = sql.Open("sqlite", dataSourceName)
		if err == nil && strings.Contains(dataSourceName, ":memory:") {
			// Every pooled connection would otherwise see its own empty database.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported mirror driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db, driver: driver}, nil
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    receipt_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    task_id TEXT NOT NULL DEFAULT '',
    root_task_id TEXT NOT NULL DEFAULT '',
    parent_task_id TEXT NOT NULL DEFAULT '',
    caused_by_receipt_id TEXT NOT NULL DEFAULT '',
    recipient_ai TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    artifact_pointer TEXT NOT NULL DEFAULT '',
    body TEXT,
    created_at TIMESTAMP NOT NULL,
    stored_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_tenant_root ON receipts(tenant_id, root_task_id);
CREATE INDEX IF NOT EXISTS idx_receipts_tenant_task ON receipts(tenant_id, task_id);

CREATE TABLE IF NOT EXISTS mirror_state (
    tenant_id TEXT PRIMARY KEY,
    synced_at TIMESTAMP NOT NULL
);
`

// RunMigrations creates the mirror schema if it does not exist.
func (db *DB) RunMigrations(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}
