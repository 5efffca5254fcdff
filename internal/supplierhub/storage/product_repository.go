package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"supplierhub_api/internal/supplierhub/business/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	log.Println("Successfully created supplierhub product repository")
	return &ProductRepository{db: db}
}

// Resolve finds the catalog product for a feed key. Variant matches win
// over base-product matches so per-variant stock lands on the variant.
// Returns (nil, nil) when nothing matches.
func (r *ProductRepository) Resolve(key string, keyType models.KeyType, shopID int) (*models.ResolvedProduct, error) {
	col, err := keyColumn(keyType)
	if err != nil {
		return nil, err
	}

	variantQuery := fmt.Sprintf(`
				SELECT product_id, id FROM supplierhub.product_variant
				WHERE %s = $1
				ORDER BY id
				LIMIT 1;
			 `, col)
	var res models.ResolvedProduct
	err = r.db.QueryRow(variantQuery, key).Scan(&res.ProductID, &res.AttributeID)
	if err == nil {
		return &res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve variant by %s: %w", col, err)
	}

	productQuery := fmt.Sprintf(`
				SELECT id FROM supplierhub.product
				WHERE %s = $1
				ORDER BY id
				LIMIT 1;
			 `, col)
	err = r.db.QueryRow(productQuery, key).Scan(&res.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve product by %s: %w", col, err)
	}
	return &res, nil
}

// CurrentState reads price, quantity and active flag for one product in
// one shop context. Returns (nil, nil) when the shop row is missing.
func (r *ProductRepository) CurrentState(ids *models.ResolvedProduct, shopID int) (*models.CurrentState, error) {
	query := `
				SELECT ps.price, COALESCE(sa.quantity, 0), ps.active
				FROM supplierhub.product_shop ps
				LEFT JOIN supplierhub.stock_available sa
				  ON sa.product_id = ps.product_id
				 AND sa.attribute_id = $2
				 AND sa.shop_id = ps.shop_id
				WHERE ps.product_id = $1 AND ps.shop_id = $3;
			 `
	var state models.CurrentState
	err := r.db.QueryRow(query, ids.ProductID, ids.AttributeID, shopID).Scan(
		&state.Price, &state.Quantity, &state.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state of product %d: %w", ids.ProductID, err)
	}
	return &state, nil
}

// ProductInfo reads the minimal product view for pre-write checks.
// Returns (nil, nil) when the product does not exist.
func (r *ProductRepository) ProductInfo(id int) (*models.ProductInfo, error) {
	query := `
				SELECT p.id, COALESCE(p.ean13, ''), p.price
				FROM supplierhub.product p
				WHERE p.id = $1;
			 `
	var info models.ProductInfo
	err := r.db.QueryRow(query, id).Scan(&info.ID, &info.EAN, &info.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &info, nil
}

// RestoreSnapshot writes a snapshot's absolute values back in one
// transaction. Nil fields in the snapshot are left untouched.
func (r *ProductRepository) RestoreSnapshot(ctx context.Context, snap models.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin restore tx: %w", err)
	}
	defer tx.Rollback()

	if snap.Price != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE supplierhub.product SET price = $2, updated_at = now() WHERE id = $1;`,
			snap.ProductID, *snap.Price)
		if err != nil {
			return fmt.Errorf("failed to restore product %d price: %w", snap.ProductID, err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE supplierhub.product_shop SET price = $3 WHERE product_id = $1 AND shop_id = $2;`,
			snap.ProductID, snap.ShopID, *snap.Price)
		if err != nil {
			return fmt.Errorf("failed to restore product %d shop price: %w", snap.ProductID, err)
		}
	}

	if snap.Quantity != nil {
		// Same stock row the run wrote to: variant snapshots restore the
		// variant row, not the base product.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO supplierhub.stock_available (product_id, attribute_id, shop_id, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, attribute_id, shop_id)
			DO UPDATE SET quantity = EXCLUDED.quantity;`,
			snap.ProductID, snap.AttributeID, snap.ShopID, *snap.Quantity)
		if err != nil {
			return fmt.Errorf("failed to restore product %d quantity: %w", snap.ProductID, err)
		}
	}

	if snap.Active != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE supplierhub.product_shop SET active = $3 WHERE product_id = $1 AND shop_id = $2;`,
			snap.ProductID, snap.ShopID, *snap.Active)
		if err != nil {
			return fmt.Errorf("failed to restore product %d active flag: %w", snap.ProductID, err)
		}
	}

	return tx.Commit()
}

func keyColumn(keyType models.KeyType) (string, error) {
	switch keyType {
	case models.KeyTypeEAN:
		return "ean13", nil
	case models.KeyTypeReference:
		return "reference", nil
	case models.KeyTypeSupplierReference:
		return "supplier_reference", nil
	default:
		return "", fmt.Errorf("unknown key type %q", keyType)
	}
}
