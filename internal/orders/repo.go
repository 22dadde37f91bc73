package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lokmanguedri/motivex/internal/postgres"
)

type Repo struct {
	DB  postgres.DB
	Now func() time.Time
}

func (r *Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Create places the order in one transaction: stock is checked and
// decremented under row locks, prices come from the products table. A code
// collision retries with a fresh code.
func (r *Repo) Create(ctx context.Context, in NewOrder) (Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewCode(r.now().Year())
		if err != nil {
			return Order{}, err
		}
		id, err := r.createTx(ctx, code, in)
		if postgres.IsUniqueViolation(err, "orders_code_key") {
			lastErr = err
			continue
		}
		if err != nil {
			return Order{}, err
		}
		return r.Get(ctx, id)
	}
	return Order{}, fmt.Errorf("allocate order code: %w", lastErr)
}

func (r *Repo) createTx(ctx context.Context, code string, in NewOrder) (string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := reserveStock(ctx, tx, in.Items)
	if err != nil {
		return "", err
	}
	sub := subtotal(lines)
	total := sub.Add(in.ShippingFee)

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, code, user_id, status, customer_name, phone, email,
			wilaya_id, wilaya_name, commune, address, stop_desk, stop_desk_id, notes,
			subtotal, shipping_fee, total)
		VALUES ($1, $2, $3, 'PENDING', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		orderID, code, in.UserID, in.CustomerName, in.Phone, in.Email,
		in.WilayaID, in.WilayaName, in.Commune, in.Address, in.StopDesk, in.StopDeskID, in.Notes,
		sub, in.ShippingFee, total,
	)
	if err != nil {
		return "", err
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, sku, name, unit_price, qty, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), orderID, l.ProductID, l.SKU, l.Name, l.UnitPrice, l.Qty, l.LineTotal,
		); err != nil {
			return "", err
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO payments (order_id, method, status) VALUES ($1, $2, 'PENDING')`,
		orderID, in.PaymentMethod); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return orderID, nil
}

const orderColumns = `o.id, o.code, o.user_id, o.status, o.customer_name, o.phone, o.email,
	o.wilaya_id, o.wilaya_name, o.commune, o.address, o.stop_desk, o.stop_desk_id, o.notes,
	o.subtotal, o.shipping_fee, o.total, o.restocked,
	o.tracking_id, o.tracking_status, o.tracking_provider, o.tracking_label, o.last_sync, o.raw_webhook,
	o.created_at, o.updated_at,
	p.method, p.status, p.reference, p.paid_at`

const orderFrom = ` FROM orders o JOIN payments p ON p.order_id = o.id `

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	return r.getOne(ctx, `WHERE o.id = $1`, id)
}

func (r *Repo) GetByCode(ctx context.Context, code string) (Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code) {
		return Order{}, ErrNotFound
	}
	return r.getOne(ctx, `WHERE o.code = $1`, code)
}

func (r *Repo) GetByTracking(ctx context.Context, trackingID string) (Order, error) {
	return r.getOne(ctx, `WHERE o.tracking_id = $1`, trackingID)
}

func (r *Repo) getOne(ctx context.Context, where string, args ...any) (Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+where, args...)
	if err != nil {
		return Order{}, err
	}
	list, err := scanOrders(rows)
	if err != nil {
		return Order{}, err
	}
	if len(list) == 0 {
		return Order{}, ErrNotFound
	}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

func (r *Repo) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Order{}, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+`WHERE o.user_id = $1 ORDER BY o.created_at DESC LIMIT 200`, userID)
	if err != nil {
		return nil, err
	}
	list, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	return list, r.attachItems(ctx, list)
}

func (r *Repo) List(ctx context.Context, f Filter) (Page, error) {
	f.Normalize()
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "o.status = "+arg(f.Status))
	}
	if f.Method != "" {
		conds = append(conds, "p.method = "+arg(f.Method))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := arg("%" + postgres.EscapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf("(o.code ILIKE %[1]s OR o.phone ILIKE %[1]s OR o.customer_name ILIKE %[1]s)", like))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	page := Page{Page: f.Page, PageSize: f.PageSize, Items: []Order{}}
	if err := r.DB.QueryRow(ctx, `SELECT count(*)`+orderFrom+where, args...).Scan(&page.Total); err != nil {
		return Page{}, err
	}
	limit, offset := arg(f.PageSize), arg((f.Page-1)*f.PageSize)
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+where+
		` ORDER BY o.created_at DESC, o.id LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return Page{}, err
	}
	list, err := scanOrders(rows)
	if err != nil {
		return Page{}, err
	}
	if err := r.attachItems(ctx, list); err != nil {
		return Page{}, err
	}
	page.Items = list
	return page, nil
}

// UpdateStatus applies p under a row lock. The returned Change tells the
// caller whether the status moved.
func (r *Repo) UpdateStatus(ctx context.Context, id string, p Patch) (Order, Change, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, Change{}, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, Change{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := lockState(ctx, tx, `o.id = $1`, id)
	if err != nil {
		return Order{}, Change{}, err
	}
	ch, err := Plan(cur, p, r.now())
	if err != nil {
		return Order{}, Change{}, err
	}
	if err := writeState(ctx, tx, id, ch); err != nil {
		return Order{}, Change{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, Change{}, err
	}
	o, err := r.Get(ctx, id)
	return o, ch, err
}

// SetPaymentReference attaches a customer-supplied BaridiMob reference. The
// phone must match the order's.
func (r *Repo) SetPaymentReference(ctx context.Context, code, phone, reference string) (Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code) {
		return Order{}, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		id       string
		ordPhone string
		method   PaymentMethod
		status   PaymentStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT o.id, o.phone, p.method, p.status`+orderFrom+`
		WHERE o.code = $1 FOR UPDATE OF o, p`, code,
	).Scan(&id, &ordPhone, &method, &status)
	if postgres.IsNoRows(err) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if ordPhone != phone {
		return Order{}, ErrNotFound
	}
	if method != PaymentBaridiMob {
		return Order{}, ErrPaymentLocked
	}
	if status == PaymentPaid {
		return Order{}, ErrAlreadyPaid
	}
	if _, err := tx.Exec(ctx, `UPDATE payments SET reference = $2 WHERE order_id = $1`, id, reference); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, id); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

// SetTracking records a freshly created shipment. It fails with
// ErrAlreadyShipped when the order already carries a tracking id.
func (r *Repo) SetTracking(ctx context.Context, id string, t Tracking) (Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET tracking_id = $2, tracking_provider = $3, tracking_status = $4, tracking_label = $5,
		    last_sync = $6, updated_at = now()
		WHERE id = $1 AND tracking_id IS NULL`,
		id, t.TrackingID, t.Provider, t.Status, t.Label, r.now().UTC())
	if postgres.IsUniqueViolation(err) {
		return Order{}, ErrAlreadyShipped
	}
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return Order{}, err
		}
		return Order{}, ErrAlreadyShipped
	}
	return r.Get(ctx, id)
}

// ApplyTracking stores a provider status update and, when target is set and
// reachable from the current status, moves the order there.
func (r *Repo) ApplyTracking(ctx context.Context, trackingID, providerStatus string, raw json.RawMessage, target *Status) (Order, Change, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, Change{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM orders WHERE tracking_id = $1`, trackingID).Scan(&id)
	if postgres.IsNoRows(err) {
		return Order{}, Change{}, ErrNotFound
	}
	if err != nil {
		return Order{}, Change{}, err
	}
	cur, err := lockState(ctx, tx, `o.id = $1`, id)
	if err != nil {
		return Order{}, Change{}, err
	}

	ch := Change{From: cur.Status, Next: cur}
	if target != nil && CanTransition(cur.Status, *target) {
		ch, err = Plan(cur, Patch{Status: target}, r.now())
		if err != nil {
			return Order{}, Change{}, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET tracking_status = $2, raw_webhook = $3, last_sync = $4, updated_at = now()
		WHERE id = $1`, id, providerStatus, raw, r.now().UTC()); err != nil {
		return Order{}, Change{}, err
	}
	if ch.StatusChanged {
		if err := writeState(ctx, tx, id, ch); err != nil {
			return Order{}, Change{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, Change{}, err
	}
	o, err := r.Get(ctx, id)
	return o, ch, err
}

func lockState(ctx context.Context, tx pgx.Tx, where string, args ...any) (State, error) {
	var s State
	err := tx.QueryRow(ctx, `
		SELECT o.status, o.restocked, p.method, p.status, p.reference, p.paid_at`+orderFrom+`
		WHERE `+where+` FOR UPDATE OF o, p`, args...,
	).Scan(&s.Status, &s.Restocked, &s.Method, &s.PaymentStatus, &s.PaymentReference, &s.PaidAt)
	if postgres.IsNoRows(err) {
		return State{}, ErrNotFound
	}
	return s, err
}

func writeState(ctx context.Context, tx pgx.Tx, id string, ch Change) error {
	n := ch.Next
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, n.Status); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2, reference = $3, paid_at = $4 WHERE order_id = $1`,
		id, n.PaymentStatus, n.PaymentReference, n.PaidAt); err != nil {
		return err
	}
	if ch.Restock {
		return restock(ctx, tx, id)
	}
	return nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		var (
			o                              Order
			trackingID, tStatus, tProvider *string
			tLabel                         *string
			lastSync                       *time.Time
			raw                            []byte
		)
		if err := rows.Scan(
			&o.ID, &o.Code, &o.UserID, &o.Status, &o.CustomerName, &o.Phone, &o.Email,
			&o.Wilaya.ID, &o.Wilaya.Name, &o.Commune, &o.Address, &o.StopDesk, &o.StopDeskID, &o.Notes,
			&o.Subtotal, &o.ShippingFee, &o.Total, &o.Restocked,
			&trackingID, &tStatus, &tProvider, &tLabel, &lastSync, &raw,
			&o.CreatedAt, &o.UpdatedAt,
			&o.Payment.Method, &o.Payment.Status, &o.Payment.Reference, &o.Payment.PaidAt,
		); err != nil {
			return nil, err
		}
		if trackingID != nil {
			o.Tracking = &Tracking{
				TrackingID: *trackingID,
				Status:     deref(tStatus),
				Provider:   deref(tProvider),
				Label:      deref(tLabel),
				LastSync:   lastSync,
				RawWebhook: raw,
			}
		}
		o.Items = []Item{}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, id, product_id, sku, name, unit_price, qty, line_total
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, sku`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.SKU, &it.Name, &it.UnitPrice, &it.Qty, &it.LineTotal); err != nil {
			return err
		}
		i := idx[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
