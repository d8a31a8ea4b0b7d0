// Package validation configures the go-playground validator behind gin's
// binding and turns its errors into the field -> messages map carried by
// VALIDATION_ERROR responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var initOnce sync.Once

// Init configures the validator used by gin binding so errors report JSON
// field names. It is safe to call more than once.
func Init() {
	initOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonTagName)
		}
	})
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// FieldErrors converts validator errors into a map keyed by JSON field name.
// Every failing field is present with at least one message. The second
// result is false when err holds no validator errors.
func FieldErrors(err error) (map[string][]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil, false
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		out[field] = append(out[field], Message(fe))
	}
	return out, true
}

var titler = cases.Title(language.English)

// label turns a JSON field name such as "dueDate" into "Due date".
func label(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	words := strings.SplitN(b.String(), " ", 2)
	words[0] = titler.String(words[0])
	return strings.Join(words, " ")
}

// Message renders one field error as a sentence, e.g. "Email is required".
func Message(fe validator.FieldError) string {
	if fe.Tag() == "email" {
		return "Invalid email format"
	}
	return label(fe.Field()) + " " + phrase(fe)
}

func phrase(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		return "must not exceed " + param + " characters"
	case "len":
		return "must be exactly " + param + " characters long"
	case "eqfield":
		return "must match " + param
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be greater than or equal to " + param
	case "dive":
		return "contains an invalid item"
	default:
		if param != "" {
			return fmt.Sprintf("failed the '%s=%s' check", fe.Tag(), param)
		}
		return fmt.Sprintf("failed the '%s' check", fe.Tag())
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
