package amocrm

import (
	"encoding/json"
	"strconv"
	"strings"
)

func fieldString(fields []CustomField, fieldID int64, code string) string {
	for _, field := range fields {
		if fieldID != 0 && field.FieldID != fieldID {
			continue
		}
		if code != "" && !strings.EqualFold(field.FieldCode, code) {
			continue
		}
		if len(field.Values) == 0 {
			return ""
		}
		return valueString(field.Values[0].Value)
	}
	return ""
}

func fieldInt(fields []CustomField, fieldID int64) int64 {
	for _, field := range fields {
		if field.FieldID != fieldID {
			continue
		}
		if len(field.Values) == 0 {
			return 0
		}
		return valueInt(field.Values[0].Value)
	}
	return 0
}

func valueString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case json.Number:
		return typed.String()
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return ""
	}
}

func valueInt(value any) int64 {
	switch typed := value.(type) {
	case float64:
		return int64(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
