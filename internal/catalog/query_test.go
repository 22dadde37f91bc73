package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildListQueryDefaults(t *testing.T) {
	f := Filter{}
	f.Normalize()
	q := buildListQuery(f)

	assert.Equal(t, "WHERE p.active", q.where)
	assert.Equal(t, "p.created_at DESC, p.id", q.order)
	assert.Empty(t, q.args)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageSize, f.PageSize)
}

func TestBuildListQueryAllFilters(t *testing.T) {
	min, max := decimal.NewFromInt(500), decimal.NewFromInt(5000)
	f := Filter{
		CategorySlug: "freinage",
		Brand:        "Peugeot",
		Model:        "208",
		Year:         2018,
		Query:        "50%_off",
		MinPrice:     &min,
		MaxPrice:     &max,
		InStock:      true,
		Sort:         SortPriceAsc,
	}
	f.Normalize()
	q := buildListQuery(f)

	assert.Contains(t, q.where, "c.slug = $1")
	assert.Contains(t, q.where, "c.active")
	assert.Contains(t, q.where, "lower(p.brand) = lower($2)")
	assert.Contains(t, q.where, "lower(p.model) = lower($3)")
	assert.Contains(t, q.where, "(p.year_from IS NULL OR p.year_from <= $4) AND (p.year_to IS NULL OR p.year_to >= $4)")
	assert.Contains(t, q.where, "p.sku ILIKE $5")
	assert.Contains(t, q.where, "p.price >= $6")
	assert.Contains(t, q.where, "p.price <= $7")
	assert.Contains(t, q.where, "p.stock > 0")
	assert.Equal(t, "p.price ASC, p.id", q.order)

	assert.Equal(t, []any{"freinage", "Peugeot", "208", 2018, `%50\%\_off%`, min, max}, q.args)
}

func TestBuildListQueryAdminSeesHidden(t *testing.T) {
	f := Filter{IncludeHidden: true, CategorySlug: "filtres", Sort: SortName}
	f.Normalize()
	q := buildListQuery(f)
	assert.Equal(t, "WHERE c.slug = $1", q.where)
	assert.Equal(t, "p.name_fr ASC, p.id", q.order)
}

func TestFilterNormalizeClamps(t *testing.T) {
	f := Filter{Page: -3, PageSize: 1000, Sort: "random"}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, SortNewest, f.Sort)
}

func TestProductHelpers(t *testing.T) {
	from, to := 2012, 2019
	p := Product{
		NameFR: "Plaquettes", NameAR: "وسادات الفرامل",
		DescriptionFR: "Avant",
		YearFrom:      &from, YearTo: &to,
		Images: []Image{{URL: "a.jpg"}, {URL: "b.jpg", IsMain: true}},
	}
	assert.Equal(t, "وسادات الفرامل", p.Name(LangAR))
	assert.Equal(t, "Plaquettes", p.Name(LangFR))
	assert.Equal(t, "Avant", p.Description(LangAR), "falls back to French when Arabic is missing")
	assert.Equal(t, "b.jpg", p.MainImage())
	assert.True(t, p.Fits(2012))
	assert.True(t, p.Fits(2019))
	assert.False(t, p.Fits(2020))
	assert.False(t, p.Fits(2011))

	open := Product{}
	assert.True(t, open.Fits(1990))
	assert.Equal(t, "", open.MainImage())
}

func TestParseLang(t *testing.T) {
	assert.Equal(t, LangAR, ParseLang("ar"))
	assert.Equal(t, LangAR, ParseLang("ar-DZ,fr;q=0.8"))
	assert.Equal(t, LangFR, ParseLang("fr-FR"))
	assert.Equal(t, LangFR, ParseLang(""))
}
