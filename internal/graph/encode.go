package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes v as JSON. Shared objects are written in full at every use
// site; an object reached again while it is still being written is encoded as
// null, which breaks cycles.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := encoder{buf: &buf, path: make(map[*Object]struct{})}
	if err := enc.write(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return Marshal(v)
}

// Decode encodes v and unmarshals the result into dst.
func Decode(v Value, dst any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	return nil
}

type encoder struct {
	buf  *bytes.Buffer
	path map[*Object]struct{}
}

func (e encoder) write(v Value) error {
	switch v.kind {
	case KindNull:
		e.buf.WriteString("null")
	case KindBool:
		if v.b {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case KindNumber:
		e.buf.WriteString(v.s)
	case KindString:
		return e.writeString(v.s)
	case KindArray:
		e.buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.write(item); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	case KindObject:
		if _, onPath := e.path[v.obj]; onPath {
			e.buf.WriteString("null")
			return nil
		}
		e.path[v.obj] = struct{}{}
		defer delete(e.path, v.obj)

		e.buf.WriteByte('{')
		for i, f := range v.obj.fields {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.writeString(f.Key); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.write(f.Value); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}

func (e encoder) writeString(s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	e.buf.Write(data)
	return nil
}
