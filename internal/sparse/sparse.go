// Package sparse strips empty optional values from output records before they
// are serialized.
//
// A value is empty when it is a zero scalar, a nil pointer, a nil or
// zero-length slice or map, or a struct whose fields are all empty. A non-nil
// pointer to a scalar is never empty, so an explicit zero survives.
package sparse

import (
	"reflect"
)

// Prune walks the value v points to and nils out every pointer, slice and map
// that is empty, recursively. Non-pointer arguments are ignored.
func Prune(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	prune(rv.Elem())
}

// IsEmpty reports whether v carries no information.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	return isEmpty(reflect.ValueOf(v))
}

func prune(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		prune(v.Elem())
		if v.Elem().Kind() == reflect.Struct && isEmpty(v.Elem()) && v.CanSet() {
			v.SetZero()
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanSet() {
				continue
			}
			prune(f)
		}
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		for i := 0; i < v.Len(); i++ {
			prune(v.Index(i))
		}
		if v.Len() == 0 && v.CanSet() {
			v.SetZero()
		}
	case reflect.Map:
		if v.Len() == 0 && !v.IsNil() && v.CanSet() {
			v.SetZero()
		}
	}
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return true
		}
		if v.Elem().Kind() == reflect.Struct {
			return isEmpty(v.Elem())
		}
		return false
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if !isEmpty(v.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
