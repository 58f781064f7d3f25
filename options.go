package resflow

import (
	"fmt"
)

type Options map[string]any

// MergeOptions deep-copies defaults and merges override on top of it. When both
// sides hold a nested map under the same key they are merged recursively,
// otherwise the override value wins.
func MergeOptions(defaults, override map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(override))
	for k, v := range defaults {
		merged[k] = copyValue(v)
	}

	for k, v := range override {
		overrideMap, overrideIsMap := asMap(v)
		baseMap, baseIsMap := asMap(merged[k])
		if overrideIsMap && baseIsMap {
			merged[k] = MergeOptions(baseMap, overrideMap)

			continue
		}
		merged[k] = copyValue(v)
	}

	return merged
}

// toOptionsMap accepts any map-shaped value and rejects everything else.
func toOptionsMap(value any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}

	m, ok := asMap(value)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidOptions, value)
	}

	return m, nil
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case Options:
		return typed, true
	case Attributes:
		return typed, true
	default:
		return nil, false
	}
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cp := make(map[string]any, len(typed))
		for k, v := range typed {
			cp[k] = copyValue(v)
		}

		return cp
	case Options:
		return copyValue(map[string]any(typed))
	case []any:
		cp := make([]any, len(typed))
		for i, v := range typed {
			cp[i] = copyValue(v)
		}

		return cp
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}
