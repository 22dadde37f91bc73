package catalog

import (
	"fmt"
	"strings"

	"github.com/lokmanguedri/motivex/internal/postgres"
)

const productColumns = `p.id, p.sku, p.name_fr, p.name_ar, p.description_fr, p.description_ar,
	p.price, p.old_price, p.stock, p.brand, p.model, p.year_from, p.year_to, p.fitment,
	p.category_id, p.active, p.created_at, p.updated_at`

type listQuery struct {
	where string
	order string
	args  []any
}

// buildListQuery turns a normalized Filter into a WHERE clause over
// products p joined to categories c.
func buildListQuery(f Filter) listQuery {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeHidden {
		conds = append(conds, "p.active")
	}
	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = "+arg(f.CategorySlug))
		if !f.IncludeHidden {
			conds = append(conds, "c.active")
		}
	}
	if f.Brand != "" {
		conds = append(conds, "lower(p.brand) = lower("+arg(f.Brand)+")")
	}
	if f.Model != "" {
		conds = append(conds, "lower(p.model) = lower("+arg(f.Model)+")")
	}
	if f.Year > 0 {
		y := arg(f.Year)
		conds = append(conds, fmt.Sprintf("(p.year_from IS NULL OR p.year_from <= %s) AND (p.year_to IS NULL OR p.year_to >= %s)", y, y))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := arg("%" + postgres.EscapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf(
			"(p.name_fr ILIKE %[1]s OR p.name_ar ILIKE %[1]s OR p.sku ILIKE %[1]s OR p.brand ILIKE %[1]s OR p.model ILIKE %[1]s)", like))
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= "+arg(*f.MaxPrice))
	}
	if f.InStock {
		conds = append(conds, "p.stock > 0")
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	order := "p.created_at DESC, p.id"
	switch f.Sort {
	case SortPriceAsc:
		order = "p.price ASC, p.id"
	case SortPriceDesc:
		order = "p.price DESC, p.id"
	case SortName:
		order = "p.name_fr ASC, p.id"
	}
	return listQuery{where: where, order: order, args: args}
}
