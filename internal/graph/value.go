// Package graph parses JSON payloads into an order-preserving tagged value tree
// and rebuilds object graphs that were serialized with $id/$ref tags.
package graph

import "strconv"

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON value. The zero Value is null.
//
// Arrays and objects have reference semantics: copying a Value shares the
// underlying elements, and two Values holding the same *Object are the same
// node of the graph.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents or number literal
	arr  []Value
	obj  *Object
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number literal as written in the document.
func Number(literal string) Value { return Value{kind: KindNumber, s: literal} }

func Float(f float64) Value {
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'f', -1, 64)}
}

func String(s string) Value { return Value{kind: KindString, s: s} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func ObjectValue(o *Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Literal returns the number literal of a number value.
func (v Value) Literal() (string, bool) { return v.s, v.kind == KindNumber }

func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Items returns the elements of an array. Assigning to an element of the
// returned slice updates the array in place.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Field is a single key/value pair of an object.
type Field struct {
	Key   string
	Value Value
}

// Object is a JSON object that keeps its fields in document order.
type Object struct {
	fields []Field
}

func NewObject(fields ...Field) *Object {
	o := &Object{}
	for _, f := range fields {
		o.Set(f.Key, f.Value)
	}
	return o
}

func (o *Object) Len() int { return len(o.fields) }

func (o *Object) index(key string) int {
	for i := range o.fields {
		if o.fields[i].Key == key {
			return i
		}
	}
	return -1
}

func (o *Object) Get(key string) (Value, bool) {
	if i := o.index(key); i >= 0 {
		return o.fields[i].Value, true
	}
	return Value{}, false
}

// Set replaces the value of an existing key in place or appends a new field.
func (o *Object) Set(key string, v Value) {
	if i := o.index(key); i >= 0 {
		o.fields[i].Value = v
		return
	}
	o.fields = append(o.fields, Field{Key: key, Value: v})
}

func (o *Object) Delete(key string) bool {
	i := o.index(key)
	if i < 0 {
		return false
	}
	o.fields = append(o.fields[:i], o.fields[i+1:]...)
	return true
}

func (o *Object) Keys() []string {
	keys := make([]string, len(o.fields))
	for i, f := range o.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the object's fields in order.
func (o *Object) Fields() []Field {
	out := make([]Field, len(o.fields))
	copy(out, o.fields)
	return out
}
