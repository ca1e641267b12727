package processor

import (
	"strconv"
)

// Vendor payloads are loosely typed JSON; numbers arrive as float64,
// int-ish strings, or actual strings depending on the endpoint. These
// accessors absorb that.

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func getStringPtr(m map[string]interface{}, key string) *string {
	if s := getString(m, key); s != "" {
		return &s
	}
	return nil
}

func getFloat(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	case int:
		return float64(v), true
	}
	return 0, false
}

func getInt(m map[string]interface{}, key string) int {
	if f, ok := getFloat(m, key); ok {
		return int(f)
	}
	return 0
}

func getInt64(m map[string]interface{}, key string) (int64, bool) {
	if f, ok := getFloat(m, key); ok {
		return int64(f), true
	}
	return 0, false
}

func getMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key].(map[string]interface{})
	return v, ok
}

func getList(m map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := m[key].([]interface{})
	return v, ok
}
