package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lokmanguedri/motivex/internal/postgres"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB postgres.DB }

func (r *Repo) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	q := `SELECT id, name_fr, name_ar, slug, active, created_at, updated_at FROM categories`
	if activeOnly {
		q += ` WHERE active`
	}
	rows, err := r.DB.Query(ctx, q+` ORDER BY name_fr`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.NameFR, &c.NameAR, &c.Slug, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory looks a category up by id or by slug.
func (r *Repo) GetCategory(ctx context.Context, idOrSlug string) (Category, error) {
	var c Category
	q := `SELECT id, name_fr, name_ar, slug, active, created_at, updated_at FROM categories WHERE slug = $1`
	if _, err := uuid.Parse(idOrSlug); err == nil {
		q = `SELECT id, name_fr, name_ar, slug, active, created_at, updated_at FROM categories WHERE id = $1`
	}
	err := r.DB.QueryRow(ctx, q, idOrSlug).Scan(&c.ID, &c.NameFR, &c.NameAR, &c.Slug, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if postgres.IsNoRows(err) {
		return c, ErrNotFound
	}
	return c, err
}

func (r *Repo) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	var c Category
	err := r.DB.QueryRow(ctx, `
		INSERT INTO categories(id, name_fr, name_ar, slug, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name_fr, name_ar, slug, active, created_at, updated_at`,
		uuid.NewString(), in.NameFR, in.NameAR, in.Slug, active,
	).Scan(&c.ID, &c.NameFR, &c.NameAR, &c.Slug, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return c, fmt.Errorf("category slug %q: %w", in.Slug, ErrConflict)
	}
	return c, err
}

func (r *Repo) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `
		UPDATE categories
		SET name_fr = $2, name_ar = $3, slug = $4, active = COALESCE($5, active), updated_at = now()
		WHERE id = $1
		RETURNING id, name_fr, name_ar, slug, active, created_at, updated_at`,
		id, in.NameFR, in.NameAR, in.Slug, in.Active,
	).Scan(&c.ID, &c.NameFR, &c.NameAR, &c.Slug, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case postgres.IsNoRows(err):
		return c, ErrNotFound
	case postgres.IsUniqueViolation(err):
		return c, fmt.Errorf("category slug %q: %w", in.Slug, ErrConflict)
	}
	return c, err
}

func (r *Repo) DeleteCategory(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("category %s has products: %w", id, ErrInUse)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListProducts(ctx context.Context, f Filter) (Page, error) {
	f.Normalize()
	lq := buildListQuery(f)
	from := `FROM products p LEFT JOIN categories c ON c.id = p.category_id ` + lq.where

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) `+from, lq.args...).Scan(&total); err != nil {
		return Page{}, err
	}

	args := append(lq.args, f.PageSize, (f.Page-1)*f.PageSize)
	q := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, from, lq.order, len(args)-1, len(args))
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return Page{}, err
	}
	items, err := scanProducts(rows)
	if err != nil {
		return Page{}, err
	}
	if err := r.attachImages(ctx, items); err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetProduct returns one product with its images. Inactive products are
// reported as not found unless includeHidden is set.
func (r *Repo) GetProduct(ctx context.Context, id string, includeHidden bool) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	return r.getOne(ctx, `p.id = $1`, id, includeHidden)
}

func (r *Repo) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return r.getOne(ctx, `p.sku = upper($1)`, sku, true)
}

func (r *Repo) getOne(ctx context.Context, cond string, arg any, includeHidden bool) (Product, error) {
	q := `SELECT ` + productColumns + ` FROM products p WHERE ` + cond
	if !includeHidden {
		q += ` AND p.active`
	}
	rows, err := r.DB.Query(ctx, q, arg)
	if err != nil {
		return Product{}, err
	}
	items, err := scanProducts(rows)
	if err != nil {
		return Product{}, err
	}
	if len(items) == 0 {
		return Product{}, ErrNotFound
	}
	if err := r.attachImages(ctx, items); err != nil {
		return Product{}, err
	}
	return items[0], nil
}

// ProductsByIDs returns the requested products keyed by id; unknown ids are
// absent from the map.
func (r *Repo) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	out := make(map[string]Product, len(valid))
	if len(valid) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, err
	}
	items, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachImages(ctx, items); err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	images, err := NormalizeImages(in.Images)
	if err != nil {
		return Product{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	id := uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO products(id, sku, name_fr, name_ar, description_fr, description_ar, price, old_price,
			stock, brand, model, year_from, year_to, fitment, category_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		id, in.SKU, in.NameFR, in.NameAR, in.DescriptionFR, in.DescriptionAR, in.Price, nullDecimal(in.OldPrice),
		in.Stock, in.Brand, in.Model, in.YearFrom, in.YearTo, in.Fitment, in.CategoryID, active,
	)
	if err := productWriteErr(err, in.SKU); err != nil {
		return Product{}, err
	}
	if err := replaceImages(ctx, tx, id, images); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id, true)
}

// UpdateProduct overwrites the product fields; images are replaced only when
// in.Images is non-nil.
func (r *Repo) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE products SET sku=$2, name_fr=$3, name_ar=$4, description_fr=$5, description_ar=$6,
			price=$7, old_price=$8, stock=$9, brand=$10, model=$11, year_from=$12, year_to=$13,
			fitment=$14, category_id=$15, active=COALESCE($16, active), updated_at=now()
		WHERE id=$1`,
		id, in.SKU, in.NameFR, in.NameAR, in.DescriptionFR, in.DescriptionAR,
		in.Price, nullDecimal(in.OldPrice), in.Stock, in.Brand, in.Model, in.YearFrom, in.YearTo,
		in.Fitment, in.CategoryID, in.Active,
	)
	if err := productWriteErr(err, in.SKU); err != nil {
		return Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	if in.Images != nil {
		images, err := NormalizeImages(in.Images)
		if err != nil {
			return Product{}, err
		}
		if err := replaceImages(ctx, tx, id, images); err != nil {
			return Product{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id, true)
}

func (r *Repo) SetImages(ctx context.Context, id string, in []ImageInput) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	images, err := NormalizeImages(in)
	if err != nil {
		return Product{}, err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if postgres.IsNoRows(err) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	if err := replaceImages(ctx, tx, id, images); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id, true)
}

// DeleteProduct removes a product. Products already sold are deactivated
// instead so order history keeps its reference; soft reports which happened.
func (r *Repo) DeleteProduct(ctx context.Context, id string) (soft bool, err error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrNotFound
	}
	var sold bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)`, id).Scan(&sold); err != nil {
		return false, err
	}
	q := `DELETE FROM products WHERE id = $1`
	if sold {
		q = `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`
	}
	ct, err := r.DB.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, ErrNotFound
	}
	return sold, nil
}

func replaceImages(ctx context.Context, tx pgx.Tx, productID string, images []Image) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, im := range images {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_images(id, product_id, url, position, is_main)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), productID, im.URL, im.Position, im.IsMain,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) attachImages(ctx context.Context, items []Product) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i, p := range items {
		ids[i] = p.ID
		index[p.ID] = i
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, url, position, is_main FROM product_images
		WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var im Image
		if err := rows.Scan(&im.ID, &im.ProductID, &im.URL, &im.Position, &im.IsMain); err != nil {
			return err
		}
		i := index[im.ProductID]
		items[i].Images = append(items[i].Images, im)
	}
	return rows.Err()
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		var (
			p   Product
			old decimal.NullDecimal
		)
		if err := rows.Scan(&p.ID, &p.SKU, &p.NameFR, &p.NameAR, &p.DescriptionFR, &p.DescriptionAR,
			&p.Price, &old, &p.Stock, &p.Brand, &p.Model, &p.YearFrom, &p.YearTo, &p.Fitment,
			&p.CategoryID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			p.OldPrice = &old.Decimal
		}
		p.Images = []Image{}
		out = append(out, p)
	}
	return out, rows.Err()
}

func productWriteErr(err error, sku string) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("sku %s: %w", sku, ErrConflict)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown category", ErrInvalid)
	case postgres.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
