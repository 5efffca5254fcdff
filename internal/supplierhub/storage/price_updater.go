package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"supplierhub_api/internal/supplierhub/business/models"
)

type PriceUpdater struct {
	db *sql.DB
}

func NewPriceUpdater(db *sql.DB) *PriceUpdater {
	log.Println("Successfully created supplierhub price updater")
	return &PriceUpdater{db: db}
}

// UpdatePrice writes one product's price in a single transaction. Direct
// mode touches the product and its shop row; specific-price mode leaves
// the base price alone and upserts an override row instead.
func (u *PriceUpdater) UpdatePrice(ctx context.Context, productID, attributeID int, upd models.PriceUpdate) error {
	if upd.Price < 0 {
		return fmt.Errorf("refusing negative price %.4f for product %d", upd.Price, productID)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price tx: %w", err)
	}
	defer tx.Rollback()

	switch upd.Mode {
	case models.PriceUpdateSpecificPrice:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO supplierhub.specific_price (product_id, attribute_id, shop_id, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, attribute_id, shop_id)
			DO UPDATE SET price = EXCLUDED.price, updated_at = now();`,
			productID, attributeID, upd.ShopID, upd.Price)
		if err != nil {
			return fmt.Errorf("failed to upsert specific price for product %d: %w", productID, err)
		}
	default:
		res, err := tx.ExecContext(ctx, `
			UPDATE supplierhub.product SET price = $2, updated_at = now() WHERE id = $1;`,
			productID, upd.Price)
		if err != nil {
			return fmt.Errorf("failed to update product %d price: %w", productID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("product %d does not exist", productID)
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE supplierhub.product_shop SET price = $3 WHERE product_id = $1 AND shop_id = $2;`,
			productID, upd.ShopID, upd.Price); err != nil {
			return fmt.Errorf("failed to update product %d shop price: %w", productID, err)
		}

		if upd.TaxRuleGroupID > 0 {
			if _, err = tx.ExecContext(ctx, `
				UPDATE supplierhub.product_shop SET tax_rule_group_id = $3 WHERE product_id = $1 AND shop_id = $2;`,
				productID, upd.ShopID, upd.TaxRuleGroupID); err != nil {
				return fmt.Errorf("failed to update product %d tax group: %w", productID, err)
			}
		}
	}

	return tx.Commit()
}
