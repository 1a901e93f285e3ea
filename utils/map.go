package utils

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

func GetValueFromMapByPath(data map[string]interface{}, path string) (interface{}, bool) {
	if lo.IsEmpty(path) || data == nil {
		return nil, false
	}
	keys := strings.Split(path, ".")
	var current interface{} = data
	for _, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetFirstKeyMapValue returns the single key of a bulk style object such as
// {"index": {...}} together with its value.
func GetFirstKeyMapValue(m map[string]interface{}) (string, map[string]interface{}) {
	for k, v := range m {
		return k, cast.ToStringMap(v)
	}
	return "", nil
}
