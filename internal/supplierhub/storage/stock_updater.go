package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"supplierhub_api/internal/supplierhub/business/models"
)

type StockUpdater struct {
	db *sql.DB
}

func NewStockUpdater(db *sql.DB) *StockUpdater {
	log.Println("Successfully created supplierhub stock updater")
	return &StockUpdater{db: db}
}

// UpdateStock writes quantity and active flag in a single transaction.
// The explicit active flag from the feed is written first so the
// zero-quantity policy can still override it when stock runs out.
func (u *StockUpdater) UpdateStock(ctx context.Context, productID, attributeID int, upd models.StockUpdate) error {
	if upd.Quantity != nil && *upd.Quantity < 0 {
		return fmt.Errorf("refusing negative quantity %d for product %d", *upd.Quantity, productID)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin stock tx: %w", err)
	}
	defer tx.Rollback()

	if upd.Active != nil {
		if err := setActive(ctx, tx, productID, upd.ShopID, *upd.Active); err != nil {
			return err
		}
	}

	if upd.Quantity != nil {
		qty := *upd.Quantity
		_, err = tx.ExecContext(ctx, `
			INSERT INTO supplierhub.stock_available (product_id, attribute_id, shop_id, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, attribute_id, shop_id)
			DO UPDATE SET quantity = EXCLUDED.quantity;`,
			productID, attributeID, upd.ShopID, qty)
		if err != nil {
			return fmt.Errorf("failed to upsert quantity for product %d: %w", productID, err)
		}

		if qty == 0 {
			switch upd.ZeroQtyPolicy {
			case models.ZeroQtyDisable:
				if err := setActive(ctx, tx, productID, upd.ShopID, 0); err != nil {
					return err
				}
			case models.ZeroQtyBackorder:
				_, err = tx.ExecContext(ctx, `
					UPDATE supplierhub.stock_available SET out_of_stock_behavior = 1
					WHERE product_id = $1 AND attribute_id = $2 AND shop_id = $3;`,
					productID, attributeID, upd.ShopID)
				if err != nil {
					return fmt.Errorf("failed to set backorder for product %d: %w", productID, err)
				}
			}
		}
	}

	return tx.Commit()
}

func setActive(ctx context.Context, tx *sql.Tx, productID, shopID, active int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE supplierhub.product_shop SET active = $3 WHERE product_id = $1 AND shop_id = $2;`,
		productID, shopID, active)
	if err != nil {
		return fmt.Errorf("failed to set active=%d for product %d: %w", active, productID, err)
	}
	return nil
}
