package graph

const (
	DefaultIDKey     = "$id"
	DefaultRefKey    = "$ref"
	DefaultValuesKey = "$values"
)

// Resolver rebuilds an object graph from a payload in which shared objects are
// declared once with an identity tag and referenced elsewhere by a wrapper
// object holding only a reference tag.
type Resolver struct {
	IDKey  string
	RefKey string
	// KeepIDs leaves identity tags in the resolved objects.
	KeepIDs bool
}

// Resolve resolves v with the default $id/$ref tags.
func Resolve(v Value) Value {
	return Resolver{}.Resolve(v)
}

// Resolve walks v depth-first in document order and replaces every reference
// wrapper with the object registered under its tag. Objects are registered
// before their fields are visited, so a reference may point at an ancestor.
// A reference to a tag that has not been declared yet resolves to null.
//
// The input is modified in place and must be resolved exactly once.
func (r Resolver) Resolve(v Value) Value {
	if r.IDKey == "" {
		r.IDKey = DefaultIDKey
	}
	if r.RefKey == "" {
		r.RefKey = DefaultRefKey
	}
	res := &resolution{
		Resolver: r,
		ids:      make(map[string]*Object),
		visited:  make(map[*Object]struct{}),
	}
	return res.visit(v)
}

type resolution struct {
	Resolver
	ids     map[string]*Object
	visited map[*Object]struct{}
}

func (res *resolution) visit(v Value) Value {
	switch v.kind {
	case KindArray:
		for i := range v.arr {
			v.arr[i] = res.visit(v.arr[i])
		}
		return v
	case KindObject:
	default:
		return v
	}

	o := v.obj
	if tag, ok := res.refTag(o); ok {
		if target, ok := res.ids[tag]; ok {
			return ObjectValue(target)
		}
		return Null()
	}

	if _, seen := res.visited[o]; seen {
		return v
	}
	res.visited[o] = struct{}{}

	if id, ok := o.Get(res.IDKey); ok {
		if tag, ok := tagOf(id); ok {
			res.ids[tag] = o
		}
		if !res.KeepIDs {
			o.Delete(res.IDKey)
		}
	}

	for i := range o.fields {
		o.fields[i].Value = res.visit(o.fields[i].Value)
	}
	return v
}

func (res *resolution) refTag(o *Object) (string, bool) {
	if len(o.fields) != 1 || o.fields[0].Key != res.RefKey {
		return "", false
	}
	return tagOf(o.fields[0].Value)
}

func tagOf(v Value) (string, bool) {
	switch v.kind {
	case KindString, KindNumber:
		return v.s, true
	default:
		return "", false
	}
}

// UnwrapLists replaces every object whose only field is key and holds an array
// with that array. It is meant to run after Resolve, once identity tags are gone.
func UnwrapLists(v Value, key string) Value {
	if key == "" {
		key = DefaultValuesKey
	}
	return unwrap(v, key, make(map[*Object]struct{}))
}

func unwrap(v Value, key string, visited map[*Object]struct{}) Value {
	switch v.kind {
	case KindArray:
		for i := range v.arr {
			v.arr[i] = unwrap(v.arr[i], key, visited)
		}
		return v
	case KindObject:
		o := v.obj
		if len(o.fields) == 1 && o.fields[0].Key == key && o.fields[0].Value.kind == KindArray {
			return unwrap(o.fields[0].Value, key, visited)
		}
		if _, seen := visited[o]; seen {
			return v
		}
		visited[o] = struct{}{}
		for i := range o.fields {
			o.fields[i].Value = unwrap(o.fields[i].Value, key, visited)
		}
		return v
	default:
		return v
	}
}
