package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"min=1,max=99"`
}

type checkout struct {
	Name  string `json:"customer_name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Items []line `json:"items" validate:"required,min=1,dive"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(checkout{
		Email: "nope",
		Items: []line{{ProductID: "x", Qty: 0}},
	})
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))

	fields := map[string]string{}
	for _, fe := range verrs {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "required", fields["customer_name"])
	assert.Equal(t, "email", fields["email"])
	assert.Equal(t, "uuid", fields["items[0].product_id"])
	assert.Equal(t, "min", fields["items[0].qty"])
	assert.Contains(t, err.Error(), "validation failed")
}

func TestStructOK(t *testing.T) {
	err := Struct(checkout{
		Name:  "Amine",
		Items: []line{{ProductID: "8d4f3f64-6a3b-4b8e-9c53-2f1d7c0f9a10", Qty: 2}},
	})
	assert.NoError(t, err)
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("email", "client@example.dz", "email"))
	err := Var("email", "client", "email")
	require.Error(t, err)
	assert.Equal(t, "validation failed: email: email", err.Error())
}
