package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

func encodeJSON(v any, empty string) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON(empty), nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return datatypes.JSON(empty), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

func decodeMap(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func decodeValue(data datatypes.JSON) any {
	if len(data) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
