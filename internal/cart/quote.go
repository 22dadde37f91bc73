package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lokmanguedri/motivex/internal/catalog"
)

type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type QuoteLine struct {
	ProductID string           `json:"product_id"`
	SKU       string           `json:"sku,omitempty"`
	Name      string           `json:"name,omitempty"`
	NameFR    string           `json:"name_fr,omitempty"`
	NameAR    string           `json:"name_ar,omitempty"`
	Image     string           `json:"image,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	OldPrice  *decimal.Decimal `json:"old_price,omitempty"`
	Qty       int              `json:"qty"`
	LineTotal decimal.Decimal  `json:"line_total"`
	Stock     int              `json:"stock"`
	Available bool             `json:"available"`
}

type Quote struct {
	Lines     []QuoteLine     `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Count     int             `json:"count"`
	Available bool            `json:"available"`
}

type Quoter struct {
	Catalog Catalog
}

// Quote prices lines at current catalog prices. Missing or hidden products
// and short stock mark the line, and the quote, unavailable; unavailable
// lines do not count toward the subtotal.
func (q *Quoter) Quote(ctx context.Context, lines []Line, lang catalog.Lang) (Quote, error) {
	merged := merge(lines)
	ids := make([]string, len(merged))
	for i, l := range merged {
		ids[i] = l.ProductID
	}
	products, err := q.Catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return Quote{}, err
	}

	out := Quote{Lines: make([]QuoteLine, 0, len(merged)), Subtotal: decimal.Zero, Available: true}
	for _, l := range merged {
		ql := QuoteLine{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		p, ok := products[l.ProductID]
		if ok && p.Active {
			ql.SKU = p.SKU
			ql.Name = p.Name(lang)
			ql.NameFR = p.NameFR
			ql.NameAR = p.NameAR
			ql.Image = p.MainImage()
			ql.UnitPrice = p.Price
			ql.OldPrice = p.OldPrice
			ql.Stock = p.Stock
			ql.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
			ql.Available = p.Stock >= l.Qty
		}
		if ql.Available {
			out.Subtotal = out.Subtotal.Add(ql.LineTotal)
			out.Count += l.Qty
		} else {
			out.Available = false
		}
		out.Lines = append(out.Lines, ql)
	}
	return out, nil
}

// merge sums duplicate product lines and drops non-positive quantities,
// keeping first-seen order.
func merge(lines []Line) []Line {
	idx := make(map[string]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		if i, ok := idx[l.ProductID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
