package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInUse    = errors.New("still referenced")
	ErrInvalid  = errors.New("invalid")
)

type Lang string

const (
	LangFR Lang = "fr"
	LangAR Lang = "ar"
)

// ParseLang maps a query or Accept-Language value onto a supported language.
func ParseLang(s string) Lang {
	if len(s) >= 2 && (s[:2] == "ar" || s[:2] == "AR") {
		return LangAR
	}
	return LangFR
}

type Category struct {
	ID        string    `json:"id"`
	NameFR    string    `json:"name_fr"`
	NameAR    string    `json:"name_ar"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Category) Name(l Lang) string { return pick(l, c.NameFR, c.NameAR) }

type Image struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
	IsMain    bool   `json:"is_main"`
}

type Product struct {
	ID            string           `json:"id"`
	SKU           string           `json:"sku"`
	NameFR        string           `json:"name_fr"`
	NameAR        string           `json:"name_ar"`
	DescriptionFR string           `json:"description_fr"`
	DescriptionAR string           `json:"description_ar"`
	Price         decimal.Decimal  `json:"price"`
	OldPrice      *decimal.Decimal `json:"old_price,omitempty"`
	Stock         int              `json:"stock"`
	Brand         string           `json:"brand"`
	Model         string           `json:"model"`
	YearFrom      *int             `json:"year_from,omitempty"`
	YearTo        *int             `json:"year_to,omitempty"`
	Fitment       string           `json:"fitment"`
	CategoryID    *string          `json:"category_id,omitempty"`
	Active        bool             `json:"active"`
	Images        []Image          `json:"images"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (p Product) Name(l Lang) string        { return pick(l, p.NameFR, p.NameAR) }
func (p Product) Description(l Lang) string { return pick(l, p.DescriptionFR, p.DescriptionAR) }

// MainImage returns the flagged main image URL, or "" when there are none.
func (p Product) MainImage() string {
	for _, im := range p.Images {
		if im.IsMain {
			return im.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

// Fits reports whether the product covers the given model year.
func (p Product) Fits(year int) bool {
	if p.YearFrom != nil && year < *p.YearFrom {
		return false
	}
	if p.YearTo != nil && year > *p.YearTo {
		return false
	}
	return true
}

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

type Filter struct {
	CategorySlug  string
	Brand         string
	Model         string
	Year          int
	Query         string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	InStock       bool
	IncludeHidden bool
	Sort          Sort
	Page          int
	PageSize      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging and defaults the sort order.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	switch f.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
	default:
		f.Sort = SortNewest
	}
}

type Page struct {
	Items    []Product `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

func pick(l Lang, fr, ar string) string {
	if l == LangAR && ar != "" {
		return ar
	}
	return fr
}
