package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokmanguedri/motivex/internal/validation"
)

const (
	prodA = "0b1f6a3e-9a41-4f3c-8d3b-2f0f6f1d7a01"
	prodB = "7c2d9e14-5b6a-4e8f-9c1d-3a4b5c6d7e02"
)

func checkout() CreateInput {
	return CreateInput{
		CustomerName:  " Yacine Merabet ",
		Phone:         "+213 661 23 45 67",
		WilayaID:      16,
		WilayaName:    "Alger",
		Commune:       "Bab Ezzouar",
		Address:       "Cité 5 Juillet, bât. 12",
		PaymentMethod: "cod",
		Items: []ItemInput{
			{ProductID: prodB, Qty: 1},
			{ProductID: prodA, Qty: 2},
			{ProductID: prodB, Qty: 3},
		},
	}
}

func rules(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	out := map[string]string{}
	for _, fe := range verrs {
		out[fe.Field] = fe.Rule
	}
	return out
}

func TestCreateInputNormalize(t *testing.T) {
	in := checkout()
	require.NoError(t, in.Normalize())

	assert.Equal(t, "Yacine Merabet", in.CustomerName)
	assert.Equal(t, "0661234567", in.Phone)
	assert.Equal(t, PaymentCOD, in.PaymentMethod)
	assert.Equal(t, []ItemInput{{ProductID: prodA, Qty: 2}, {ProductID: prodB, Qty: 4}}, in.Items)
}

func TestCreateInputStopDesk(t *testing.T) {
	in := checkout()
	in.StopDesk = true
	in.Address = ""
	assert.Equal(t, "required_if", rules(t, in.Normalize())["stop_desk_id"])

	in = checkout()
	in.StopDesk = true
	in.Address = ""
	desk := 160101
	in.StopDeskID = &desk
	require.NoError(t, in.Normalize())

	in = checkout()
	in.Address = ""
	assert.Equal(t, "required_unless", rules(t, in.Normalize())["address"])

	in = checkout()
	in.StopDeskID = &desk
	require.NoError(t, in.Normalize())
	assert.Nil(t, in.StopDeskID, "home delivery drops the desk id")
}

func TestCreateInputRejects(t *testing.T) {
	in := checkout()
	in.Phone = "12345"
	in.WilayaID = 59
	in.PaymentMethod = "CARD"
	in.Items = []ItemInput{{ProductID: "not-a-uuid", Qty: 0}}

	r := rules(t, in.Normalize())
	assert.Equal(t, "phone_dz", r["phone"])
	assert.Equal(t, "max", r["wilaya_id"])
	assert.Equal(t, "oneof", r["payment_method"])
	assert.Equal(t, "uuid", r["items[0].product_id"])
	assert.Equal(t, "min", r["items[0].qty"])
}

func TestCreateInputTooManyLines(t *testing.T) {
	in := checkout()
	in.Items = make([]ItemInput, MaxLines+1)
	for i := range in.Items {
		in.Items[i] = ItemInput{ProductID: prodA, Qty: 1}
	}
	assert.Equal(t, "max", rules(t, in.Normalize())["items"])

	in = checkout()
	in.Items = nil
	assert.Equal(t, "required", rules(t, in.Normalize())["items"])
}

func TestMergeItemsCapsMergedQty(t *testing.T) {
	_, err := MergeItems([]ItemInput{{ProductID: prodA, Qty: 60}, {ProductID: prodA, Qty: 40}})
	assert.Equal(t, "max", rules(t, err)["items.qty"])
}
