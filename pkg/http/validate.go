package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const codeUnknown = "ERR_UNKNOWN"

var (
	validate      = newValidator()
	symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,15}$`)
)

// rule renders one validator tag into a message and its parameters.
type rule struct {
	message func(field, param string, text bool) string
	param   string
}

func bound(word string) func(string, string, bool) string {
	return func(field, param string, text bool) string {
		if text {
			return fmt.Sprintf("%s must be %s %s characters", field, word, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, word, param)
	}
}

func fieldOnly(format string) func(string, string, bool) string {
	return func(field, _ string, _ bool) string { return fmt.Sprintf(format, field) }
}

func compare(word string) func(string, string, bool) string {
	return func(field, param string, _ bool) string {
		return fmt.Sprintf("%s must be %s %s", field, word, param)
	}
}

var rules = map[string]rule{
	"required": {message: fieldOnly("%s is required")},
	"symbol":   {message: fieldOnly("%s must be a ticker symbol")},
	"min":      {message: bound("at least"), param: "min"},
	"gte":      {message: compare("greater than or equal to"), param: "min"},
	"max":      {message: bound("at most"), param: "max"},
	"lte":      {message: compare("less than or equal to"), param: "max"},
	"gt":       {message: compare("greater than"), param: "value"},
	"lt":       {message: compare("less than"), param: "value"},
	"oneof": {
		message: func(field, param string, _ bool) string {
			return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
		},
		param: "options",
	},
}

func newValidator() *validator.Validate {
	v := validator.New()
	// field names in errors follow the request payload
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolPattern.MatchString(fl.Field().String())
	})
	return v
}

// ReadAndValidateRequest binds body and query into req, applies `default`
// tags and validates. The result is nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
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

// ValidateStruct validates v without binding.
func ValidateStruct(v interface{}) interface{} {
	if err := validate.Struct(v); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: codeUnknown, Message: msg}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) ValidationError {
	ve := ValidationError{
		Code:   "ERR_" + strings.ToUpper(fe.Tag()),
		Field:  fe.Field(),
		Params: map[string]interface{}{},
	}
	r, ok := rules[fe.Tag()]
	if !ok {
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return ve
	}
	ve.Message = r.message(fe.Field(), fe.Param(), fe.Type().Kind() == reflect.String)
	switch {
	case r.param == "options":
		ve.Params[r.param] = strings.Fields(fe.Param())
	case r.param != "":
		ve.Params[r.param] = fe.Param()
	}
	return ve
}
