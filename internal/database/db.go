package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Report writes are rare; a small pool is enough.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// reportsDDL creates the only table the service writes.
const reportsDDL = `CREATE TABLE IF NOT EXISTS verification_reports (
	id           CHAR(36)     NOT NULL PRIMARY KEY,
	trace_digest CHAR(40)     NOT NULL,
	outcome      VARCHAR(32)  NOT NULL,
	records      INT          NOT NULL,
	steps        BIGINT       NOT NULL,
	elapsed_ms   BIGINT       NOT NULL,
	geometry     VARCHAR(128) NOT NULL,
	created_at   DATETIME(3)  NOT NULL,
	KEY idx_reports_digest (trace_digest),
	KEY idx_reports_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, reportsDDL); err != nil {
		return fmt.Errorf("migrate verification_reports: %w", err)
	}
	return nil
}
