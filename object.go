// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"strconv"
)

// Property paths are resolved over Go values by reflection:
//
//   - exported methods, on the value as reached (pointer methods included)
//   - exported struct fields
//   - map entries, with the key converted to the map's key type
//   - slice, array and string elements, by int or decimal string index

var errorType = reflect.TypeFor[error]()

// indirect strips interfaces and pointers. A nil pointer is returned as is.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

// property returns the member key of v. A missing map entry yields an
// invalid Value and no error.
func property(v reflect.Value, key any) (reflect.Value, error) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || ((v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil()) {
		return reflect.Value{}, unaddressable("cannot read %v of nil", key)
	}
	if name, ok := key.(string); ok {
		if m := v.MethodByName(name); m.IsValid() {
			return m, nil
		}
		if v.Kind() != reflect.Pointer && v.CanAddr() {
			if m := v.Addr().MethodByName(name); m.IsValid() {
				return m, nil
			}
		}
	}

	v = indirect(v)
	if v.Kind() == reflect.Pointer {
		return reflect.Value{}, unaddressable("cannot read %v of nil", key)
	}
	switch v.Kind() {
	case reflect.Struct:
		name, ok := key.(string)
		if !ok {
			return reflect.Value{}, unaddressable("struct %s has no field %v", v.Type(), key)
		}
		sf, ok := v.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, unaddressable("struct %s has no field %q", v.Type(), name)
		}
		return v.FieldByIndex(sf.Index), nil
	case reflect.Map:
		k, err := mapKey(v.Type().Key(), key)
		if err != nil {
			return reflect.Value{}, err
		}
		return v.MapIndex(k), nil
	case reflect.Slice, reflect.Array, reflect.String:
		i, err := index(key, v.Len())
		if err != nil {
			return reflect.Value{}, err
		}
		return v.Index(i), nil
	default:
		return reflect.Value{}, unaddressable("cannot read %v of %s", key, v.Type())
	}
}

// resolve walks path from root.
func resolve(root any, path []any) (reflect.Value, error) {
	v := reflect.ValueOf(root)
	for i, key := range path {
		next, err := property(v, key)
		if err != nil {
			return reflect.Value{}, err
		}
		if !next.IsValid() && i < len(path)-1 {
			return reflect.Value{}, unaddressable("cannot read %v of undefined", path[i+1])
		}
		v = next
	}
	return v, nil
}

// setProperty assigns value to the member key of container.
func setProperty(container reflect.Value, key any, value any) error {
	c := indirect(container)
	switch c.Kind() {
	case reflect.Struct:
		name, ok := key.(string)
		if !ok {
			return unaddressable("struct %s has no field %v", c.Type(), key)
		}
		sf, ok := c.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return unaddressable("struct %s has no field %q", c.Type(), name)
		}
		f := c.FieldByIndex(sf.Index)
		if !f.CanSet() {
			return unaddressable("field %q of %s is not settable", name, c.Type())
		}
		return assign(f, value)
	case reflect.Map:
		if c.IsNil() {
			return unaddressable("cannot set %v of nil map", key)
		}
		k, err := mapKey(c.Type().Key(), key)
		if err != nil {
			return err
		}
		v, err := convert(value, c.Type().Elem())
		if err != nil {
			return err
		}
		c.SetMapIndex(k, v)
		return nil
	case reflect.Slice, reflect.Array:
		i, err := index(key, c.Len())
		if err != nil {
			return err
		}
		e := c.Index(i)
		if !e.CanSet() {
			return unaddressable("element %d of %s is not settable", i, c.Type())
		}
		return assign(e, value)
	case reflect.Invalid:
		return unaddressable("cannot set %v of undefined", key)
	default:
		return unaddressable("cannot set %v of %s", key, c.Type())
	}
}

func assign(dst reflect.Value, value any) error {
	v, err := convert(value, dst.Type())
	if err != nil {
		return err
	}
	dst.Set(v)
	return nil
}

// convert returns value as a Value of type t. Numeric values convert between
// numeric kinds. Generic slices and maps are decoded into t.
func convert(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}
	if v.Kind() == reflect.String && t.Kind() == reflect.String {
		return v.Convert(t), nil
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		if d, err := decodeAs(value, t); err == nil {
			return d, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("synclink: cannot use %T as %s", value, t)
}

func isNumeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func mapKey(t reflect.Type, key any) (reflect.Value, error) {
	k, err := convert(key, t)
	if err != nil {
		return reflect.Value{}, unaddressable("map key %v: %v", key, err)
	}
	return k, nil
}

func index(key any, n int) (int, error) {
	var i int
	switch k := key.(type) {
	case string:
		v, err := strconv.Atoi(k)
		if err != nil {
			return 0, unaddressable("index %q is not a number", k)
		}
		i = v
	default:
		rv := reflect.ValueOf(key)
		switch {
		case rv.CanInt():
			i = int(rv.Int())
		case rv.CanUint():
			i = int(rv.Uint())
		default:
			return 0, unaddressable("index %v is not a number", key)
		}
	}
	if i < 0 || i >= n {
		return 0, unaddressable("index %d out of range [0:%d]", i, n)
	}
	return i, nil
}

// call invokes fn with args. A trailing error result is returned as the
// error; a panic is recovered and returned as a raised value.
func call(fn reflect.Value, args []any) (result any, err error) {
	fn = indirect(fn)
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("synclink: %s is not a function", describe(fn))
	}
	t := fn.Type()
	in, err := callArgs(t, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = &panicError{err: e, stack: string(debug.Stack())}
			} else {
				err = &ThrownValue{Value: r}
			}
		}
	}()
	out := fn.Call(in)

	if n := len(out); n > 0 && t.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		results := make([]any, len(out))
		for i, o := range out {
			results[i] = o.Interface()
		}
		return results, nil
	}
}

func callArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("synclink: %s takes at least %d arguments, got %d", t, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("synclink: %s takes %d arguments, got %d", t, n, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := convert(a, pt)
		if err != nil {
			return nil, fmt.Errorf("synclink: argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "undefined"
	}
	return v.Type().String()
}

// valueOf returns the Go value held by v, or nil.
func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// ownKeys inventories the property names of v visible to a remote
// reference: exported methods, exported struct fields, string map keys.
func ownKeys(v any) []string {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	var keys []string
	t := rv.Type()
	for i := range t.NumMethod() {
		keys = append(keys, t.Method(i).Name)
	}
	rv = indirect(rv)
	switch rv.Kind() {
	case reflect.Struct:
		for _, sf := range reflect.VisibleFields(rv.Type()) {
			if sf.IsExported() && !sf.Anonymous {
				keys = append(keys, sf.Name)
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			iter := rv.MapRange()
			for iter.Next() {
				keys = append(keys, iter.Key().String())
			}
			slices.Sort(keys[len(keys)-rv.Len():])
		}
	}
	return keys
}

// maxPlainDepth bounds the plain-data check on nested containers.
const maxPlainDepth = 64

// isPlain reports whether v is composed only of directly clonable data:
// nil, booleans, numbers, strings, and slices, arrays and string-keyed maps
// of the same. Members of transfers count as plain.
func isPlain(v any, transfers []any) bool {
	return plainValue(reflect.ValueOf(v), transfers, 0)
}

func plainValue(v reflect.Value, transfers []any, depth int) bool {
	if !v.IsValid() {
		return true
	}
	if depth > maxPlainDepth {
		return false
	}
	if len(transfers) > 0 && v.CanInterface() && slices.ContainsFunc(transfers, func(t any) bool {
		return identical(t, v.Interface())
	}) {
		return true
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Interface:
		return v.IsNil() || plainValue(v.Elem(), transfers, depth+1)
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := range v.Len() {
			if !plainValue(v.Index(i), transfers, depth+1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := v.MapRange()
		for iter.Next() {
			if !plainValue(iter.Value(), transfers, depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// identical compares two values by identity for reference kinds and by
// equality for comparable values.
func identical(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() {
		return va.Equal(vb)
	}
	return false
}
