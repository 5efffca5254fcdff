package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// rateCacheKey is the single row key; only one reference table is cached.
const rateCacheKey = "ecb-daily"

type RateCacheRepository struct {
	db *sql.DB
}

func NewRateCacheRepository(db *sql.DB) *RateCacheRepository {
	log.Println("Successfully created supplierhub rate cache repository")
	return &RateCacheRepository{db: db}
}

func (r *RateCacheRepository) Load() (map[string]float64, time.Time, error) {
	query := `SELECT payload, fetched_at FROM supplierhub.rate_cache WHERE cache_key = $1;`
	var (
		payload   []byte
		fetchedAt time.Time
	)
	err := r.db.QueryRow(query, rateCacheKey).Scan(&payload, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("failed to load rate cache: %w", err)
	}

	var table map[string]float64
	if err := json.Unmarshal(payload, &table); err != nil {
		return nil, time.Time{}, fmt.Errorf("bad rate cache payload: %w", err)
	}
	return table, fetchedAt, nil
}

func (r *RateCacheRepository) Store(table map[string]float64) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode rate table: %w", err)
	}
	query := `
				INSERT INTO supplierhub.rate_cache (cache_key, payload, fetched_at)
				VALUES ($1, $2, now())
				ON CONFLICT (cache_key)
				DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at;
			 `
	if _, err := r.db.Exec(query, rateCacheKey, payload); err != nil {
		return fmt.Errorf("failed to store rate cache: %w", err)
	}
	return nil
}
