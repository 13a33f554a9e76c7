package pollr

import (
	"bytes"

	"github.com/tokenized/pkg/wire"

	"github.com/pkg/errors"
)

// EncodeFields writes each field as a Bitcoin varint length followed by the field bytes.
func EncodeFields(fields [][]byte) []byte {
	var buf bytes.Buffer
	for _, field := range fields {
		// Writes to a bytes.Buffer don't fail.
		wire.WriteVarInt(&buf, 0, uint64(len(field)))
		buf.Write(field)
	}
	return buf.Bytes()
}

// DecodeFields reverses EncodeFields. It reads until the payload is exhausted.
func DecodeFields(b []byte) ([][]byte, error) {
	r := bytes.NewReader(b)
	result := make([][]byte, 0, 8)

	for r.Len() > 0 {
		size, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "field %d length : %s", len(result), err)
		}

		if size > uint64(r.Len()) {
			return nil, errors.Wrapf(ErrMalformedToken, "field %d length %d exceeds remaining %d",
				len(result), size, r.Len())
		}

		field := make([]byte, size)
		if _, err := r.Read(field); err != nil && size > 0 {
			return nil, errors.Wrapf(ErrMalformedToken, "field %d : %s", len(result), err)
		}
		result = append(result, field)
	}

	return result, nil
}

// EncodeStrings is EncodeFields for UTF-8 text fields.
func EncodeStrings(fields ...string) []byte {
	raw := make([][]byte, len(fields))
	for i, field := range fields {
		raw[i] = []byte(field)
	}
	return EncodeFields(raw)
}
