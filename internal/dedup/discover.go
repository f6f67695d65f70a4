package dedup

import (
	"errors"
	"sort"

	"github.com/sebasr/wifi-registry/internal/models"
)

// ErrNoRecords is returned when a document holds no array of objects
var ErrNoRecords = errors.New("no array of records found in document")

var (
	// ErrInvalidUTF8 is returned when a document is not valid UTF-8
	ErrInvalidUTF8 = errors.New("input is not valid UTF-8")
	// ErrTrailingData is returned when bytes follow the JSON document
	ErrTrailingData = errors.New("unexpected data after JSON value")
)

// ContainerKeys are checked in order before falling back to a full search
var ContainerKeys = []string{"results", "data", "items", "objects", "entries"}

// FindRecords locates the record array inside a decoded JSON document.
// Arrays are returned element by element. For objects the well-known
// container keys are tried first, then the first nested array whose first
// element is an object, searching keys in sorted order.
func FindRecords(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range ContainerKeys {
			if arr, ok := v[key].([]any); ok && isObjectArray(arr) {
				return arr, nil
			}
		}
		if arr := searchObjectArray(v); arr != nil {
			return arr, nil
		}
	case models.Payload:
		return FindRecords(map[string]any(v))
	}
	return nil, ErrNoRecords
}

func isObjectArray(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	_, ok := asObject(arr[0])
	return ok
}

func searchObjectArray(node any) []any {
	switch v := node.(type) {
	case []any:
		if isObjectArray(v) {
			return v
		}
		for _, item := range v {
			if found := searchObjectArray(item); found != nil {
				return found
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := searchObjectArray(v[k]); found != nil {
				return found
			}
		}
	}
	return nil
}

func asObject(v any) (models.Payload, bool) {
	switch o := v.(type) {
	case map[string]any:
		return models.Payload(o), true
	case models.Payload:
		return o, true
	}
	return nil, false
}
