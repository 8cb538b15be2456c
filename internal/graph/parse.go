package graph

import (
	"errors"

	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("invalid json")

// Parse decodes a JSON document into a Value. Object fields keep the order in
// which they appear in the document; a repeated key keeps its first position
// and its last value.
func Parse(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		items := make([]Value, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return Array(items...)
	}

	obj := &Object{}
	r.ForEach(func(key, item gjson.Result) bool {
		obj.Set(key.Str, fromResult(item))
		return true
	})
	return ObjectValue(obj)
}
