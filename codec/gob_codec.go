package codec

import (
	"bytes"
	"encoding/gob"
)

// GobCodec uses the standard library's encoding/gob. It serializes whatever
// value a caller passes to Msg(v) — arbitrary structs, slices, maps — without
// needing a fixed manual layout for each payload shape.
type GobCodec struct{}

func (c *GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *GobCodec) Type() Type {
	return TypeGob
}
