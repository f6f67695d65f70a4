package repository

import (
	"context"
	"fmt"

	"github.com/sebasr/wifi-registry/internal/database"
)

type column struct {
	name       string
	definition string
}

// baseTable holds the columns every observation requires
const baseTable = `CREATE TABLE IF NOT EXISTS wifi_networks (
	bssid TEXT PRIMARY KEY,
	frequency BIGINT NOT NULL,
	rssi INTEGER NOT NULL,
	ssid TEXT NOT NULL,
	"timestamp" BIGINT NOT NULL,
	channel_bandwidth TEXT NOT NULL,
	capabilities TEXT NOT NULL
)`

// additiveColumns are added to an existing table when missing, in order.
// Older databases created before a column existed are upgraded in place.
var additiveColumns = []column{
	{"password", "TEXT"},
	{"dns_server", "TEXT"},
	{"gateway", "TEXT"},
	{"my_ip", "TEXT"},
	{"signal_level", "INTEGER"},
	{"pavilion_number", "INTEGER"},
	{"floor", "INTEGER"},
	{"created_at", "BIGINT NOT NULL DEFAULT 0"},
	{"updated_at", "BIGINT NOT NULL DEFAULT 0"},
}

// Migrate creates the wifi_networks table when absent and adds any missing
// optional column. Existing data is never rewritten.
func (r *SQLAccessPointRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, baseTable); err != nil {
		return fmt.Errorf("failed to create wifi_networks table: %w", err)
	}

	existing, err := r.existingColumns(ctx)
	if err != nil {
		return err
	}

	for _, col := range additiveColumns {
		if _, ok := existing[col.name]; ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE wifi_networks ADD COLUMN %s %s", col.name, col.definition)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	if _, err := r.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_wifi_networks_created_at ON wifi_networks (created_at, bssid)`,
	); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (r *SQLAccessPointRepository) existingColumns(ctx context.Context) (map[string]struct{}, error) {
	var query string
	if r.db.Dialect == database.Postgres {
		query = `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = 'wifi_networks'`
	} else {
		query = `SELECT name FROM pragma_table_info('wifi_networks')`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table columns: %w", err)
	}

	return columns, nil
}
