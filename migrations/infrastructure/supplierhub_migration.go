package infrastructure

import (
	"database/sql"
	"fmt"
	"log"
)

const (
	SupplierhubSourceMigration    = "supplierhub.source"
	SupplierhubRunMigration       = "supplierhub.run"
	SupplierhubLogMigration       = "supplierhub.log"
	SupplierhubSnapshotMigration  = "supplierhub.snapshot"
	SupplierhubRateCacheMigration = "supplierhub.rate_cache"
)

type SupplierhubSourceTable struct{}

func (m *SupplierhubSourceTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", SupplierhubSourceMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", SupplierhubSourceMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.source (
            id SERIAL PRIMARY KEY,
            shop_id INTEGER NOT NULL DEFAULT 1,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            name VARCHAR(255) NOT NULL,
            url TEXT NOT NULL,
            file_type VARCHAR(10) NOT NULL DEFAULT 'csv',
            auth_type VARCHAR(20) NOT NULL DEFAULT 'none',
            auth_login VARCHAR(255) NOT NULL DEFAULT '',
            auth_password VARCHAR(255) NOT NULL DEFAULT '',
            auth_token VARCHAR(512) NOT NULL DEFAULT '',
            headers JSONB,
            query_params JSONB,
            delimiter VARCHAR(4) NOT NULL DEFAULT ';',
            enclosure VARCHAR(4) NOT NULL DEFAULT '"',
            items_path VARCHAR(255) NOT NULL DEFAULT '',
            item_xpath VARCHAR(255) NOT NULL DEFAULT '',
            map_key VARCHAR(255) NOT NULL,
            map_price VARCHAR(255) NOT NULL,
            map_qty VARCHAR(255) NOT NULL,
            map_variant VARCHAR(255) NOT NULL DEFAULT '',
            key_type VARCHAR(30) NOT NULL DEFAULT 'ean',
            currency VARCHAR(3) NOT NULL DEFAULT '',
            rate_mode VARCHAR(10) NOT NULL DEFAULT 'live',
            fixed_rate NUMERIC(20, 6) NOT NULL DEFAULT 0,
            margin_mode VARCHAR(10) NOT NULL DEFAULT 'fixed',
            margin_fixed_pct NUMERIC(10, 3) NOT NULL DEFAULT 0,
            margin_tiers JSONB,
            ending_mode VARCHAR(10) NOT NULL DEFAULT 'none',
            ending_value VARCHAR(20) NOT NULL DEFAULT '',
            min_margin_pct NUMERIC(10, 3) NOT NULL DEFAULT 0,
            max_delta_pct NUMERIC(10, 3) NOT NULL DEFAULT 50,
            zero_qty_policy VARCHAR(10) NOT NULL DEFAULT 'disable',
            stock_buffer INTEGER NOT NULL DEFAULT 0,
            price_update_mode VARCHAR(20) NOT NULL DEFAULT 'direct',
            tax_rule_group_id INTEGER NOT NULL DEFAULT 0,
            require_identifier BOOLEAN NOT NULL DEFAULT FALSE,
            qty_max INTEGER NOT NULL DEFAULT 0,
            last_run_at TIMESTAMP WITH TIME ZONE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
        );
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.source table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", SupplierhubSourceMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", SupplierhubSourceMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", SupplierhubSourceMigration)
	return nil
}

type SupplierhubRunTable struct{}

func (m *SupplierhubRunTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", SupplierhubRunMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", SupplierhubRunMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.run (
            id SERIAL PRIMARY KEY,
            source_id INTEGER NOT NULL,
            dry_run BOOLEAN NOT NULL DEFAULT FALSE,
            status VARCHAR(10) NOT NULL DEFAULT 'running',
            total INTEGER NOT NULL DEFAULT 0,
            updated INTEGER NOT NULL DEFAULT 0,
            skipped INTEGER NOT NULL DEFAULT 0,
            errors INTEGER NOT NULL DEFAULT 0,
            checksum VARCHAR(64) NOT NULL DEFAULT '',
            started_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            heartbeat_at TIMESTAMP WITH TIME ZONE,
            finished_at TIMESTAMP WITH TIME ZONE,
            CONSTRAINT fk_run_source
                FOREIGN KEY(source_id)
                    REFERENCES supplierhub.source(id)
                    ON DELETE CASCADE
        );
        CREATE INDEX IF NOT EXISTS supplierhub_run_source_idx ON supplierhub.run(source_id);
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.run table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", SupplierhubRunMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", SupplierhubRunMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", SupplierhubRunMigration)
	return nil
}

type SupplierhubLogTable struct{}

func (m *SupplierhubLogTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", SupplierhubLogMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", SupplierhubLogMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.log (
            id BIGSERIAL PRIMARY KEY,
            run_id INTEGER NOT NULL,
            product_id INTEGER,
            action VARCHAR(20) NOT NULL,
            message TEXT NOT NULL DEFAULT '',
            old_price NUMERIC(20, 6),
            new_price NUMERIC(20, 6),
            old_qty INTEGER,
            new_qty INTEGER,
            details TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            CONSTRAINT fk_log_run
                FOREIGN KEY(run_id)
                    REFERENCES supplierhub.run(id)
                    ON DELETE CASCADE
        );
        CREATE INDEX IF NOT EXISTS supplierhub_log_run_idx ON supplierhub.log(run_id);
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.log table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", SupplierhubLogMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", SupplierhubLogMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", SupplierhubLogMigration)
	return nil
}

type SupplierhubSnapshotTable struct{}

func (m *SupplierhubSnapshotTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", SupplierhubSnapshotMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", SupplierhubSnapshotMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.snapshot (
            id BIGSERIAL PRIMARY KEY,
            run_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            attribute_id INTEGER NOT NULL DEFAULT 0,
            shop_id INTEGER NOT NULL DEFAULT 1,
            price NUMERIC(20, 6),
            quantity INTEGER,
            active SMALLINT,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            CONSTRAINT fk_snapshot_run
                FOREIGN KEY(run_id)
                    REFERENCES supplierhub.run(id)
                    ON DELETE CASCADE
        );
        CREATE INDEX IF NOT EXISTS supplierhub_snapshot_run_idx ON supplierhub.snapshot(run_id);
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.snapshot table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", SupplierhubSnapshotMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", SupplierhubSnapshotMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", SupplierhubSnapshotMigration)
	return nil
}

type SupplierhubRateCacheTable struct{}

func (m *SupplierhubRateCacheTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", SupplierhubRateCacheMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", SupplierhubRateCacheMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.rate_cache (
            cache_key VARCHAR(50) PRIMARY KEY,
            payload JSONB NOT NULL,
            fetched_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
        );
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.rate_cache table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", SupplierhubRateCacheMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", SupplierhubRateCacheMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", SupplierhubRateCacheMigration)
	return nil
}
