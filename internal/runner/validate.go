package runner

import (
	"fmt"
	"reflect"

	"github.com/roach88/harvest/internal/ir"
)

// validateOutput checks a unit's output and converts the conforming
// elements to records.
//
// Nil output is an empty result. Output that is not a slice or array is
// rejected as a whole (reported with Index -1) and contributes nothing.
// Within a sequence, each element that is not a key-value mapping is dropped
// on its own; the rest keep their order.
func validateOutput(unitName string, out any) ([]ir.Record, []*ValidationError) {
	if out == nil {
		return nil, nil
	}

	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil, []*ValidationError{{Unit: unitName, Index: -1, Reason: "got raw bytes, expected a sequence of mappings"}}
		}
	case reflect.Array:
	default:
		return nil, []*ValidationError{{
			Unit:   unitName,
			Index:  -1,
			Reason: fmt.Sprintf("got %s, expected a sequence of mappings", v.Type()),
		}}
	}

	var (
		records = make([]ir.Record, 0, v.Len())
		invalid []*ValidationError
	)
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		var raw any
		if elem.CanInterface() {
			raw = elem.Interface()
		}
		rec, err := ir.ToRecord(raw)
		if err != nil {
			invalid = append(invalid, &ValidationError{Unit: unitName, Index: i, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, invalid
}
