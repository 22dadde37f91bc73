package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return v
}

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		if fe.Param != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field, fe.Rule, fe.Param))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Rule))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s against its `validate` tags. The returned error is
// Errors when the failure is a rule violation.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Var validates a single value against tag.
func Var(field string, value any, tag string) error {
	if err := instance().Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Errors{{Field: field, Rule: verrs[0].Tag(), Param: verrs[0].Param()}}
		}
		return err
	}
	return nil
}
