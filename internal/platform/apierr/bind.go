package apierr

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/labstack/echo/v4"
)

// Bind decodes the request into v. A JSON value of the wrong type becomes a
// field error ("allergies": ["must be an array"]) instead of echo's generic
// unmarshal message.
func Bind(c echo.Context, v any) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return Field(ute.Field, "must be "+describeKind(ute.Type))
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return BadRequest("malformed JSON body")
	}
	return err
}

func describeKind(t reflect.Type) string {
	if t == nil {
		return "of a different type"
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Pointer:
		return describeKind(t.Elem())
	}
	return "of type " + t.String()
}
