package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"supplierhub_api/internal/supplierhub/business/models"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	log.Println("Successfully created supplierhub source repository")
	return &SourceRepository{db: db}
}

const sourceColumns = `
	id, shop_id, active, name, url, file_type,
	auth_type, auth_login, auth_password, auth_token, headers, query_params,
	delimiter, enclosure, items_path, item_xpath,
	map_key, map_price, map_qty, map_variant,
	key_type, currency, rate_mode, fixed_rate,
	margin_mode, margin_fixed_pct, margin_tiers,
	ending_mode, ending_value, min_margin_pct, max_delta_pct,
	zero_qty_policy, stock_buffer, price_update_mode, tax_rule_group_id,
	require_identifier, qty_max, last_run_at, created_at, updated_at`

func (r *SourceRepository) GetSource(id int) (*models.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM supplierhub.source WHERE id = $1;`, sourceColumns)
	src, err := scanSource(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %d not found", id)
		}
		return nil, fmt.Errorf("failed to get source %d: %w", id, err)
	}
	return src, nil
}

func (r *SourceRepository) ActiveSources() ([]models.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM supplierhub.source WHERE active ORDER BY id;`, sourceColumns)
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (r *SourceRepository) TouchLastRun(id int, at time.Time) error {
	_, err := r.db.Exec(`UPDATE supplierhub.source SET last_run_at = $2, updated_at = now() WHERE id = $1;`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch source %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src                    models.Source
		headersJSON, queryJSON []byte
		tiersJSON              []byte
		lastRunAt              sql.NullTime
	)
	err := row.Scan(
		&src.ID, &src.ShopID, &src.Active, &src.Name, &src.URL, &src.FileType,
		&src.AuthType, &src.AuthLogin, &src.AuthPassword, &src.AuthToken, &headersJSON, &queryJSON,
		&src.Delimiter, &src.Enclosure, &src.ItemsPath, &src.ItemXPath,
		&src.MapKey, &src.MapPrice, &src.MapQty, &src.MapVariant,
		&src.KeyType, &src.Currency, &src.RateMode, &src.FixedRate,
		&src.MarginMode, &src.MarginFixedPct, &tiersJSON,
		&src.EndingMode, &src.EndingValue, &src.MinMarginPct, &src.MaxDeltaPct,
		&src.ZeroQtyPolicy, &src.StockBuffer, &src.PriceUpdateMode, &src.TaxRuleGroupID,
		&src.RequireIdentifier, &src.QtyMax, &lastRunAt, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		src.LastRunAt = &t
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &src.Headers); err != nil {
			return nil, fmt.Errorf("bad headers json for source %d: %w", src.ID, err)
		}
	}
	if len(queryJSON) > 0 {
		if err := json.Unmarshal(queryJSON, &src.QueryParams); err != nil {
			return nil, fmt.Errorf("bad query_params json for source %d: %w", src.ID, err)
		}
	}
	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &src.MarginTiers); err != nil {
			return nil, fmt.Errorf("bad margin_tiers json for source %d: %w", src.ID, err)
		}
	}
	return &src, nil
}
