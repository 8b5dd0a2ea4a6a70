package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtrFromNull(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// unmarshalStringList decodes a persisted JSON list field into out. Malformed
// JSON never fails the accessor (spec §4.5): it falls back to treating raw
// as a single-element list, rather than losing or erroring on the record.
func unmarshalStringList(raw string, out *[]string) {
	if raw == "" {
		*out = nil
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		*out = []string{raw}
	}
}

// unmarshalJSONMap decodes a persisted JSON object field into out, falling
// back to a single-entry map under "value" on malformed JSON so a corrupt
// record still surfaces something instead of crashing the accessor.
func unmarshalJSONMap(raw string, out *map[string]interface{}) {
	if raw == "" {
		*out = nil
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		*out = map[string]interface{}{"value": raw}
	}
}
