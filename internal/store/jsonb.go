package store

import (
	"encoding/json"
	"fmt"

	"pipshop/internal/models"
)

// The extra and extra_rows columns are JSONB. They are scanned as raw bytes
// and decoded here so callers always get non-nil values.

func decodeExtra(raw []byte) (map[string]any, error) {
	extra := map[string]any{}
	if len(raw) == 0 {
		return extra, nil
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("decode extra: %w", err)
	}
	return extra, nil
}

func encodeExtra(extra map[string]any) ([]byte, error) {
	if extra == nil {
		extra = map[string]any{}
	}
	return json.Marshal(extra)
}

func decodeRows(raw []byte) ([]models.ExtraRow, error) {
	rows := []models.ExtraRow{}
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode extra rows: %w", err)
	}
	return rows, nil
}

func encodeRows(rows []models.ExtraRow) ([]byte, error) {
	if rows == nil {
		rows = []models.ExtraRow{}
	}
	return json.Marshal(rows)
}
