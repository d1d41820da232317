// ABOUTME: Structural validation for inbound events and quality-analysis responses.
// ABOUTME: Wraps validator/v10 and reports only the first offending field by its JSON name.

package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/jfeddern/ScanRelay/internal/types"
)

// Validator validates structs tagged with `validate` and decodes JSON into them
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var messages = map[string]string{
	"required": `"{0}" is required`,
	"url":      `"{0}" must be a valid uri`,
	"gt":       `"{0}" must be greater than {1}`,
	"min":      `"{0}" must contain at least {1} items`,
	"oneof":    `"{0}" must be one of [{1}]`,
	"lte":      `"{0}" must be less than or equal to {1}`,
}

// New builds a Validator with field names taken from `json` tags
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")

	for tag, text := range messages {
		tag, text := tag, text
		err := validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error {
				return t.Add(tag, text, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, err := t.T(tag, fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
				if err != nil {
					return fe.Error()
				}
				return msg
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register %q translation: %w", tag, err)
		}
	}

	return &Validator{validate: validate, trans: trans}, nil
}

// Must is New for package-level initialization
func Must() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates s and returns a *types.ValidationError for the first failing field
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &types.ValidationError{
			Field:   fe.Field(),
			Message: fe.Translate(v.trans),
		}
	}

	return err
}

// DecodeJSON unmarshals data into dst (which must be a pointer to a struct) and
// validates it. name is used in the message when the document is not an object.
func (v *Validator) DecodeJSON(data []byte, dst any, name string) error {
	if err := Decode(data, dst, name); err != nil {
		return err
	}
	return v.Struct(dst)
}

// Decode unmarshals a JSON object into dst without running struct validation
func Decode(data []byte, dst any, name string) error {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return &types.ValidationError{Field: name, Message: fmt.Sprintf("%q must be an object", name)}
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return decodeError(err, name)
	}
	return nil
}

// decodeError turns JSON decoding failures into validation errors naming the field
func decodeError(err error, name string) error {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return verr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if idx := strings.LastIndex(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		if field == "" {
			field = name
		}
		return &types.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q must be %s", field, describeKind(typeErr.Type)),
		}
	}

	return &types.ValidationError{Field: name, Message: fmt.Sprintf("%q is not valid JSON: %v", name, err)}
}

func describeKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Bool:
		return "a boolean"
	default:
		return "an object"
	}
}
