package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a literal parameter value or a reference to another object's
// evaluated property. The set of implementations is closed.
type Value interface {
	isValue()
}

// Scalar is a single number.
type Scalar float64

// Vec2 is a 2D vector. It encodes as [x, y].
type Vec2 struct {
	X float64
	Y float64
}

// Matrix is an affine matrix in [a, b, c, d, e, f] layout:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
type Matrix [6]float64

// Text is a string literal.
type Text string

// Reference points at a property of an already evaluated object.
// Authored as "@targetId.property.path".
type Reference struct {
	TargetID   string
	TargetProp string
}

func (Scalar) isValue()    {}
func (Vec2) isValue()      {}
func (Matrix) isValue()    {}
func (Text) isValue()      {}
func (Reference) isValue() {}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// String renders the reference in its authored "@id.path" form.
func (r Reference) String() string {
	if r.TargetProp == "" {
		return "@" + r.TargetID
	}
	return "@" + r.TargetID + "." + r.TargetProp
}

// ParseReference parses "@targetId.property.path". The property path may be empty.
func ParseReference(s string) (Reference, error) {
	if !strings.HasPrefix(s, "@") {
		return Reference{}, fmt.Errorf("reference %q must start with @", s)
	}
	body := s[1:]
	if body == "" {
		return Reference{}, fmt.Errorf("reference %q has no target", s)
	}
	id, prop, _ := strings.Cut(body, ".")
	if id == "" {
		return Reference{}, fmt.Errorf("reference %q has no target", s)
	}
	return Reference{TargetID: id, TargetProp: prop}, nil
}

func (v Vec2) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{v.X, v.Y})
}

// UnmarshalJSON accepts [x, y] or {"x": .., "y": ..}.
func (v *Vec2) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*v = Vec2{obj.X, obj.Y}
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("vec2 needs 2 components, got %d", len(arr))
	}
	*v = Vec2{arr[0], arr[1]}
	return nil
}

func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// DecodeValue decodes an authored value. Numbers become Scalar, two-element
// arrays Vec2, six-element arrays Matrix, "@..." strings Reference, other
// strings Text. Objects are either {"type":"ref",...} or {"x":..,"y":..}.
func DecodeValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.HasPrefix(s, "@") {
			return ParseReference(s)
		}
		return Text(s), nil

	case '[':
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		switch len(arr) {
		case 2:
			return Vec2{arr[0], arr[1]}, nil
		case 6:
			return Matrix{arr[0], arr[1], arr[2], arr[3], arr[4], arr[5]}, nil
		default:
			return nil, fmt.Errorf("decode value: unsupported array length %d", len(arr))
		}

	case '{':
		var obj struct {
			Type       string   `json:"type"`
			TargetID   string   `json:"targetId"`
			TargetProp string   `json:"targetProp"`
			X          *float64 `json:"x"`
			Y          *float64 `json:"y"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		if obj.Type == "ref" {
			if obj.TargetID == "" {
				return nil, fmt.Errorf("decode value: reference without targetId")
			}
			return Reference{TargetID: obj.TargetID, TargetProp: obj.TargetProp}, nil
		}
		if obj.X != nil && obj.Y != nil {
			return Vec2{*obj.X, *obj.Y}, nil
		}
		return nil, fmt.Errorf("decode value: unrecognized object %s", string(raw))

	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		return Scalar(f), nil
	}
}

// EncodeValue is the inverse of DecodeValue.
func EncodeValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Scalar:
		return json.Marshal(float64(val))
	case Vec2:
		return val.MarshalJSON()
	case Matrix:
		return json.Marshal([6]float64(val))
	case Text:
		return json.Marshal(string(val))
	case Reference:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("encode value: unsupported %T", v)
	}
}
