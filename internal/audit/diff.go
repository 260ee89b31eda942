package audit

import (
	"encoding/json"
	"reflect"

	"adminpanel/internal/models"
)

// sensitiveFields never enter a snapshot, so they can never reach a diff.
var sensitiveFields = map[string]struct{}{
	"password":         {},
	"password_hash":    {},
	"current_password": {},
	"new_password":     {},
}

// Snapshot picks the current value of every non-sensitive field named in
// input out of the entity's field map.
func Snapshot(input, entity map[string]any) map[string]any {
	if len(input) == 0 || entity == nil {
		return nil
	}
	snap := make(map[string]any, len(input))
	for key := range input {
		if _, secret := sensitiveFields[key]; secret {
			continue
		}
		if v, ok := entity[key]; ok {
			snap[key] = v
		}
	}
	return snap
}

// Diff compares each snapshotted field with the same field of the response
// payload. Fields missing on either side are skipped.
func Diff(before, after map[string]any) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)
	for key, old := range before {
		if _, secret := sensitiveFields[key]; secret {
			continue
		}
		v, ok := after[key]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(old, v) {
			changes[key] = models.FieldChange{Old: old, New: v}
		}
	}
	return changes
}

// FieldsOf converts v into its JSON object form, so values compare the same
// way they appear in request and response bodies.
func FieldsOf(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

func decodeObject(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
