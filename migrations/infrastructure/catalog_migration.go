package infrastructure

import (
	"database/sql"
	"fmt"
	"log"
)

const (
	CatalogProductMigration       = "supplierhub.product"
	CatalogVariantMigration       = "supplierhub.product_variant"
	CatalogProductShopMigration   = "supplierhub.product_shop"
	CatalogStockMigration         = "supplierhub.stock_available"
	CatalogSpecificPriceMigration = "supplierhub.specific_price"
)

type CatalogProductTable struct{}

func (m *CatalogProductTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", CatalogProductMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", CatalogProductMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.product (
            id SERIAL PRIMARY KEY,
            ean13 VARCHAR(13) NOT NULL DEFAULT '',
            reference VARCHAR(64) NOT NULL DEFAULT '',
            supplier_reference VARCHAR(64) NOT NULL DEFAULT '',
            name VARCHAR(255) NOT NULL DEFAULT '',
            price NUMERIC(20, 6) NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
        );
        CREATE INDEX IF NOT EXISTS supplierhub_product_ean13_idx ON supplierhub.product(ean13);
        CREATE INDEX IF NOT EXISTS supplierhub_product_reference_idx ON supplierhub.product(reference);
        CREATE INDEX IF NOT EXISTS supplierhub_product_supplier_ref_idx ON supplierhub.product(supplier_reference);
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.product table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", CatalogProductMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", CatalogProductMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", CatalogProductMigration)
	return nil
}

type CatalogVariantTable struct{}

func (m *CatalogVariantTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", CatalogVariantMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", CatalogVariantMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.product_variant (
            id SERIAL PRIMARY KEY,
            product_id INTEGER NOT NULL,
            ean13 VARCHAR(13) NOT NULL DEFAULT '',
            reference VARCHAR(64) NOT NULL DEFAULT '',
            supplier_reference VARCHAR(64) NOT NULL DEFAULT '',
            CONSTRAINT fk_variant_product
                FOREIGN KEY(product_id)
                    REFERENCES supplierhub.product(id)
                    ON DELETE CASCADE
        );
        CREATE INDEX IF NOT EXISTS supplierhub_variant_ean13_idx ON supplierhub.product_variant(ean13);
        CREATE INDEX IF NOT EXISTS supplierhub_variant_reference_idx ON supplierhub.product_variant(reference);
        CREATE INDEX IF NOT EXISTS supplierhub_variant_supplier_ref_idx ON supplierhub.product_variant(supplier_reference);
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.product_variant table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", CatalogVariantMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", CatalogVariantMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", CatalogVariantMigration)
	return nil
}

type CatalogProductShopTable struct{}

func (m *CatalogProductShopTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", CatalogProductShopMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", CatalogProductShopMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.product_shop (
            product_id INTEGER NOT NULL,
            shop_id INTEGER NOT NULL DEFAULT 1,
            price NUMERIC(20, 6) NOT NULL DEFAULT 0,
            active SMALLINT NOT NULL DEFAULT 1,
            tax_rule_group_id INTEGER NOT NULL DEFAULT 0,
            PRIMARY KEY (product_id, shop_id),
            CONSTRAINT fk_product_shop_product
                FOREIGN KEY(product_id)
                    REFERENCES supplierhub.product(id)
                    ON DELETE CASCADE
        );
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.product_shop table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", CatalogProductShopMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", CatalogProductShopMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", CatalogProductShopMigration)
	return nil
}

type CatalogStockTable struct{}

func (m *CatalogStockTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", CatalogStockMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", CatalogStockMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.stock_available (
            product_id INTEGER NOT NULL,
            attribute_id INTEGER NOT NULL DEFAULT 0,
            shop_id INTEGER NOT NULL DEFAULT 1,
            quantity INTEGER NOT NULL DEFAULT 0,
            out_of_stock_behavior SMALLINT NOT NULL DEFAULT 0,
            PRIMARY KEY (product_id, attribute_id, shop_id),
            CONSTRAINT fk_stock_product
                FOREIGN KEY(product_id)
                    REFERENCES supplierhub.product(id)
                    ON DELETE CASCADE
        );
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.stock_available table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", CatalogStockMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", CatalogStockMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", CatalogStockMigration)
	return nil
}

type CatalogSpecificPriceTable struct{}

func (m *CatalogSpecificPriceTable) UpMigration(db *sql.DB) error {
	var migrationExists bool

	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", CatalogSpecificPriceMigration).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", CatalogSpecificPriceMigration)
		return nil
	}

	query := `
        CREATE TABLE IF NOT EXISTS supplierhub.specific_price (
            id SERIAL PRIMARY KEY,
            product_id INTEGER NOT NULL,
            attribute_id INTEGER NOT NULL DEFAULT 0,
            shop_id INTEGER NOT NULL DEFAULT 1,
            price NUMERIC(20, 6) NOT NULL,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            CONSTRAINT unique_specific_price UNIQUE(product_id, attribute_id, shop_id),
            CONSTRAINT fk_specific_price_product
                FOREIGN KEY(product_id)
                    REFERENCES supplierhub.product(id)
                    ON DELETE CASCADE
        );
    `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create supplierhub.specific_price table: %w", err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", CatalogSpecificPriceMigration)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", CatalogSpecificPriceMigration, err)
	}

	log.Printf("Migration '%s' completed successfully.", CatalogSpecificPriceMigration)
	return nil
}
