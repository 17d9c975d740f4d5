package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a tagged value carries a type this
// schema does not define.
var ErrUnknownType = errors.New("unknown type")

// marshalTagged encodes v and prepends a "type" member.
func marshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	typeField, _ := json.Marshal(tag)

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typeField)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// peekType reads the "type" member of an object.
func peekType(raw json.RawMessage) (string, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	if probe.Type == "" {
		return "", fmt.Errorf("missing type in %s", truncate(raw, 64))
	}
	return probe.Type, nil
}

func decodeInto[T any](raw json.RawMessage, v *T) (T, error) {
	if err := json.Unmarshal(raw, v); err != nil {
		var zero T
		return zero, err
	}
	return *v, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
