// Package scan finds device-local file references left inside obra JSON.
package scan

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/jsontree"
)

// Hit is one local reference and the path that reaches it.
type Hit struct {
	Path  string
	Value string
}

// IsLocalRef reports whether s points at a file on the capturing device.
func IsLocalRef(s string) bool {
	return domain.IsLocalURL(s)
}

// LocalRefs walks v depth-first and returns every local reference found.
// Ordered objects are visited in document order, plain maps in key order,
// struct fields in declaration order under their json names and arrays by
// ascending index. The input must be acyclic.
func LocalRefs(v any) []Hit {
	return LocalRefsFrom("", v)
}

// LocalRefsFrom is LocalRefs with every path prefixed by root.
func LocalRefsFrom(root string, v any) []Hit {
	hits := make([]Hit, 0)
	walk(root, v, &hits)
	return hits
}

func walk(path string, v any, hits *[]Hit) {
	switch n := v.(type) {
	case nil:
		return
	case string:
		if IsLocalRef(n) {
			*hits = append(*hits, Hit{Path: path, Value: n})
		}
	case *jsontree.Object:
		for _, m := range n.Members() {
			walk(join(path, m.Key), m.Value, hits)
		}
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(join(path, k), n[k], hits)
		}
	case []any:
		for i, item := range n {
			walk(index(path, i), item, hits)
		}
	case []string:
		for i, item := range n {
			walk(index(path, i), item, hits)
		}
	default:
		walkReflect(path, reflect.ValueOf(v), hits)
	}
}

// walkReflect covers typed values that did not come straight from a JSON
// decoder: slices, string-keyed maps and structs such as []domain.PhotoRecord.
func walkReflect(path string, rv reflect.Value, hits *[]Hit) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			walk(index(path, i), rv.Index(i).Interface(), hits)
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			walk(join(path, k.String()), rv.MapIndex(k).Interface(), hits)
		}
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			walk(path, rv.Elem().Interface(), hits)
		}
	case reflect.String:
		walk(path, rv.String(), hits)
	case reflect.Struct:
		walkStruct(path, rv, hits)
	}
}

// walkStruct visits exported fields in declaration order, keyed by their json
// name. Untagged embedded structs are flattened into the parent path.
func walkStruct(path string, rv reflect.Value, hits *[]Hit) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, tagged := jsonName(f)
		if name == "-" {
			continue
		}
		if f.Anonymous && !tagged && f.Type.Kind() == reflect.Struct {
			walkStruct(path, rv.Field(i), hits)
			continue
		}
		walk(join(path, name), rv.Field(i).Interface(), hits)
	}
}

func jsonName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false
	}
	name, _, _ := strings.Cut(tag, ",")
	if tag == "-" {
		return "-", true
	}
	if name == "" {
		return f.Name, false
	}
	return name, true
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
