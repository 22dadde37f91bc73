package orders

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lokmanguedri/motivex/internal/postgres"
)

type lockedProduct struct {
	id     string
	sku    string
	name   string
	price  decimal.Decimal
	stock  int
	active bool
}

// reserveStock locks each product row in the given order, checks that every
// line can be served and decrements stock. Nothing is written when one line
// falls short; the caller rolls the transaction back.
func reserveStock(ctx context.Context, tx pgx.Tx, items []ItemInput) ([]Item, error) {
	locked := make([]lockedProduct, 0, len(items))
	var short []Shortage

	for _, it := range items {
		var p lockedProduct
		err := tx.QueryRow(ctx, `
			SELECT id, sku, name_fr, price, stock, active
			FROM products WHERE id = $1 FOR UPDATE`, it.ProductID,
		).Scan(&p.id, &p.sku, &p.name, &p.price, &p.stock, &p.active)
		if postgres.IsNoRows(err) {
			return nil, &UnavailableError{ProductID: it.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if !p.active {
			return nil, &UnavailableError{ProductID: it.ProductID}
		}
		if p.stock < it.Qty {
			short = append(short, Shortage{ProductID: p.id, SKU: p.sku, Required: it.Qty, Available: p.stock})
		}
		locked = append(locked, p)
	}
	if len(short) > 0 {
		return nil, &StockError{Details: short}
	}

	lines := make([]Item, 0, len(items))
	for i, it := range items {
		p := locked[i]
		ct, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`, p.id, it.Qty)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			return nil, &StockError{Details: []Shortage{{ProductID: p.id, SKU: p.sku, Required: it.Qty, Available: p.stock}}}
		}
		pid := p.id
		lines = append(lines, Item{
			ProductID: &pid,
			SKU:       p.sku,
			Name:      p.name,
			UnitPrice: p.price,
			Qty:       it.Qty,
			LineTotal: p.price.Mul(decimal.NewFromInt(int64(it.Qty))),
		})
	}
	return lines, nil
}

// restock puts an order's quantities back. Lines whose product was deleted
// are skipped.
func restock(ctx context.Context, tx pgx.Tx, orderID string) error {
	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM order_items
		WHERE order_id = $1 AND product_id IS NOT NULL
		ORDER BY product_id`, orderID)
	if err != nil {
		return err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, x.pid, x.qty); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `UPDATE orders SET restocked = TRUE WHERE id = $1`, orderID)
	return err
}

func subtotal(lines []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}
