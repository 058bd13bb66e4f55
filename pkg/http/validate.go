package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// tagRule renders a failed tag as a message and machine-readable params.
type tagRule func(field string, fe validator.FieldError) (string, map[string]interface{})

var rules = map[string]tagRule{
	"required": func(f string, _ validator.FieldError) (string, map[string]interface{}) {
		return f + " is required", nil
	},
	"min":   bound("at least", "min"),
	"gte":   bound("at least", "min"),
	"max":   bound("at most", "max"),
	"lte":   bound("at most", "max"),
	"gt":    compare("greater than"),
	"lt":    compare("less than"),
	"oneof": oneOf,
}

// newValidator reports fields by their query or json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// RegisterValidation adds a custom tag whose failure message is format
// applied to the field name. Call it from init.
func RegisterValidation(tag string, fn validator.Func, format string) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register %q: %w", tag, err)
	}
	rules[tag] = func(f string, _ validator.FieldError) (string, map[string]interface{}) {
		return fmt.Sprintf(format, f), nil
	}
	return nil
}

// ReadAndValidateRequest binds req, applies `default` tags and validates it.
// It returns nil when req is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]ValidationError, 0, len(ves))
		for _, fe := range ves {
			msg, params := describe(fe)
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: msg,
				Params:  params,
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: msg}}
}

func describe(fe validator.FieldError) (string, map[string]interface{}) {
	if r, ok := rules[fe.Tag()]; ok {
		msg, params := r(fe.Field(), fe)
		if params == nil {
			params = map[string]interface{}{}
		}
		return msg, params
	}
	return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag()), map[string]interface{}{}
}

func bound(phrase, key string) tagRule {
	return func(f string, fe validator.FieldError) (string, map[string]interface{}) {
		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}
		return fmt.Sprintf("%s must be %s %s%s", f, phrase, fe.Param(), unit),
			map[string]interface{}{key: fe.Param()}
	}
}

func compare(phrase string) tagRule {
	return func(f string, fe validator.FieldError) (string, map[string]interface{}) {
		return fmt.Sprintf("%s must be %s %s", f, phrase, fe.Param()),
			map[string]interface{}{"value": fe.Param()}
	}
}

func oneOf(f string, fe validator.FieldError) (string, map[string]interface{}) {
	opts := strings.Fields(fe.Param())
	return fmt.Sprintf("%s must be one of: %s", f, strings.Join(opts, ", ")),
		map[string]interface{}{"options": opts}
}
