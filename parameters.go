package resflow

import (
	"reflect"
)

type Parameter struct {
	Help     string `json:"help"`
	Value    any    `json:"value"`
	Required bool   `json:"required"`
}

// Parameters is the declared parameter schema of a step keyed by name.
type Parameters map[string]Parameter

func (p Parameters) clone() Parameters {
	cp := make(Parameters, len(p))
	for name, param := range p {
		param.Value = copyValue(param.Value)
		cp[name] = param
	}

	return cp
}

func (p Parameters) values() map[string]any {
	values := make(map[string]any, len(p))
	for name, param := range p {
		values[name] = copyValue(param.Value)
	}

	return values
}

// isEmptyValue treats nil, empty strings and empty collections as missing.
// Zero numbers and false are legitimate answers.
func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
