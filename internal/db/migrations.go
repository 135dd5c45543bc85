package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS scan_records (
		id              UUID PRIMARY KEY,
		scanner_id      TEXT NOT NULL,
		device_id       TEXT,
		fingerprint     TEXT NOT NULL,
		masked_token    TEXT NOT NULL,
		valid           BOOLEAN NOT NULL,
		outcome         TEXT NOT NULL,
		ticket_id       BIGINT,
		seat_label      TEXT,
		error_message   TEXT,
		response        JSONB,
		scanned_at      TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_scan_records_fingerprint ON scan_records(fingerprint);`,
	`CREATE INDEX IF NOT EXISTS idx_scan_records_scanned_at ON scan_records(scanned_at);`,
	`CREATE INDEX IF NOT EXISTS idx_scan_records_ticket_id ON scan_records(ticket_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
