package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lokmanguedri/motivex/internal/validation"
	"github.com/shopspring/decimal"
)

type CategoryInput struct {
	NameFR string `json:"name_fr" validate:"required,max=120"`
	NameAR string `json:"name_ar" validate:"required,max=120"`
	Slug   string `json:"slug" validate:"omitempty,max=140"`
	Active *bool  `json:"active"`
}

func (in *CategoryInput) Normalize() error {
	in.NameFR = strings.TrimSpace(in.NameFR)
	in.NameAR = strings.TrimSpace(in.NameAR)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.Slug == "" {
		in.Slug = Slugify(in.NameFR)
	} else {
		in.Slug = Slugify(in.Slug)
	}
	if in.Slug == "" {
		return validation.Errors{{Field: "slug", Rule: "required"}}
	}
	return nil
}

type ImageInput struct {
	URL    string `json:"url" validate:"required,max=500"`
	IsMain bool   `json:"is_main"`
}

type ProductInput struct {
	SKU           string           `json:"sku" validate:"required,max=64"`
	NameFR        string           `json:"name_fr" validate:"required,max=200"`
	NameAR        string           `json:"name_ar" validate:"required,max=200"`
	DescriptionFR string           `json:"description_fr" validate:"max=5000"`
	DescriptionAR string           `json:"description_ar" validate:"max=5000"`
	Price         decimal.Decimal  `json:"price"`
	OldPrice      *decimal.Decimal `json:"old_price"`
	Stock         int              `json:"stock" validate:"min=0"`
	Brand         string           `json:"brand" validate:"max=80"`
	Model         string           `json:"model" validate:"max=80"`
	YearFrom      *int             `json:"year_from" validate:"omitempty,min=1950,max=2100"`
	YearTo        *int             `json:"year_to" validate:"omitempty,min=1950,max=2100"`
	Fitment       string           `json:"fitment" validate:"max=500"`
	CategoryID    *string          `json:"category_id" validate:"omitempty,uuid"`
	Active        *bool            `json:"active"`
	Images        []ImageInput     `json:"images" validate:"max=12,dive"`
}

// Validate checks tag rules, then the price and year invariants.
func (in *ProductInput) Validate() error {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.NameFR = strings.TrimSpace(in.NameFR)
	in.NameAR = strings.TrimSpace(in.NameAR)

	var errs validation.Errors
	if err := validation.Struct(in); err != nil {
		verrs, ok := err.(validation.Errors)
		if !ok {
			return err
		}
		errs = append(errs, verrs...)
	}
	if !in.Price.IsPositive() {
		errs = append(errs, validation.FieldError{Field: "price", Rule: "gt", Param: "0"})
	}
	if in.OldPrice != nil && !in.OldPrice.GreaterThan(in.Price) {
		errs = append(errs, validation.FieldError{Field: "old_price", Rule: "gtfield", Param: "price"})
	}
	if in.YearFrom != nil && in.YearTo != nil && *in.YearFrom > *in.YearTo {
		errs = append(errs, validation.FieldError{Field: "year_to", Rule: "gtefield", Param: "year_from"})
	}
	if _, err := NormalizeImages(in.Images); err != nil {
		errs = append(errs, validation.FieldError{Field: "images", Rule: "one_main"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// NormalizeImages assigns positions in input order and makes sure exactly one
// image is main; the first one when none is flagged.
func NormalizeImages(in []ImageInput) ([]Image, error) {
	out := make([]Image, 0, len(in))
	mains := 0
	for i, im := range in {
		if im.IsMain {
			mains++
		}
		out = append(out, Image{URL: strings.TrimSpace(im.URL), Position: i, IsMain: im.IsMain})
	}
	if mains > 1 {
		return nil, fmt.Errorf("%w: %d images flagged as main", ErrInvalid, mains)
	}
	if mains == 0 && len(out) > 0 {
		out[0].IsMain = true
	}
	return out, nil
}

var foldAccents = map[rune]string{
	'à': "a", 'â': "a", 'ä': "a", 'á': "a",
	'ç': "c",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'î': "i", 'ï': "i", 'í': "i",
	'ô': "o", 'ö': "o", 'ó': "o",
	'ù': "u", 'û': "u", 'ü': "u", 'ú': "u",
	'ÿ': "y", 'œ': "oe", 'æ': "ae",
}

// Slugify lowercases s, folds French accents and joins alphanumeric runs with
// dashes. Arabic letters are dropped.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if rep, ok := foldAccents[r]; ok {
			b.WriteString(rep)
			dash = false
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
