package ast

import "reflect"

// Clone returns a deep copy of the program. The returned tree shares no
// pointers, slices, or maps with the receiver, so a mutator (the type
// checker binds types and rewrites nodes in place) can operate on the
// clone without the original being observed to change.
//
// The copier walks the tree with reflection rather than hand-written
// per-node copy methods, the same technique used for deep-copying
// arbitrary config structs elsewhere in this codebase's dependency tree;
// unlike a general-purpose copier it assumes the AST is a tree (no
// pointer cycles), which keeps it small.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	out := reflect.New(reflect.TypeOf(*p)).Elem()
	deepCopy(reflect.ValueOf(*p), out)
	cloned := out.Interface().(Program)
	return &cloned
}

func deepCopy(in, out reflect.Value) {
	if out.CanSet() {
		out.Set(in)
	}

	switch in.Kind() {
	case reflect.Struct:
		for i := 0; i < in.NumField(); i++ {
			if !in.Type().Field(i).IsExported() {
				continue
			}
			deepCopy(in.Field(i), out.Field(i))
		}
	case reflect.Pointer:
		if in.IsNil() {
			return
		}
		out.Set(reflect.New(in.Type().Elem()))
		deepCopy(in.Elem(), out.Elem())
	case reflect.Interface:
		if in.IsNil() {
			return
		}
		elem := in.Elem()
		newElem := reflect.New(elem.Type()).Elem()
		deepCopy(elem, newElem)
		out.Set(newElem)
	case reflect.Slice:
		if in.IsNil() {
			return
		}
		out.Set(reflect.MakeSlice(in.Type(), in.Len(), in.Cap()))
		for i := 0; i < in.Len(); i++ {
			deepCopy(in.Index(i), out.Index(i))
		}
	case reflect.Map:
		if in.IsNil() {
			return
		}
		out.Set(reflect.MakeMapWithSize(in.Type(), in.Len()))
		iter := in.MapRange()
		for iter.Next() {
			k := reflect.New(in.Type().Key()).Elem()
			deepCopy(iter.Key(), k)
			v := reflect.New(in.Type().Elem()).Elem()
			deepCopy(iter.Value(), v)
			out.SetMapIndex(k, v)
		}
	case reflect.Array:
		for i := 0; i < in.Len(); i++ {
			deepCopy(in.Index(i), out.Index(i))
		}
	}
}
