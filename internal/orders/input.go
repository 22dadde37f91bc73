package orders

import (
	"sort"
	"strings"

	"github.com/lokmanguedri/motivex/internal/users"
	"github.com/lokmanguedri/motivex/internal/validation"
)

// Normalize trims and validates the checkout payload, normalizes the phone
// number and merges duplicate product lines. Lines come back sorted by
// product id, the order in which their rows are locked.
func (in *CreateInput) Normalize() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.WilayaName = strings.TrimSpace(in.WilayaName)
	in.Commune = strings.TrimSpace(in.Commune)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)
	in.PaymentMethod = PaymentMethod(strings.ToUpper(strings.TrimSpace(string(in.PaymentMethod))))
	for i := range in.Items {
		in.Items[i].ProductID = strings.ToLower(strings.TrimSpace(in.Items[i].ProductID))
	}

	var errs validation.Errors
	if err := validation.Struct(in); err != nil {
		verrs, ok := err.(validation.Errors)
		if !ok {
			return err
		}
		errs = append(errs, verrs...)
	}
	phone, err := users.NormalizePhone(in.Phone)
	if err != nil {
		errs = append(errs, validation.FieldError{Field: "phone", Rule: "phone_dz"})
	}
	in.Phone = phone
	if !in.StopDesk {
		in.StopDeskID = nil
	} else if in.StopDeskID != nil && *in.StopDeskID < 1 {
		errs = append(errs, validation.FieldError{Field: "stop_desk_id", Rule: "min", Param: "1"})
	}
	if len(errs) > 0 {
		return errs
	}

	merged, err := MergeItems(in.Items)
	if err != nil {
		return err
	}
	in.Items = merged
	return nil
}

// MergeItems sums quantities of repeated products.
func MergeItems(items []ItemInput) ([]ItemInput, error) {
	qty := make(map[string]int, len(items))
	for _, it := range items {
		qty[it.ProductID] += it.Qty
	}
	out := make([]ItemInput, 0, len(qty))
	for id, q := range qty {
		if q < 1 || q > MaxLineQty {
			return nil, validation.Errors{{Field: "items.qty", Rule: "max", Param: "99"}}
		}
		out = append(out, ItemInput{ProductID: id, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
