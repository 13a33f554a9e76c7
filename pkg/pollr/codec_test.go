package pollr

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

func TestFieldsRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields [][]byte
	}{
		{"empty", [][]byte{}},
		{"single", [][]byte{[]byte("open")}},
		{"empty field", [][]byte{[]byte("vote"), []byte{}, []byte("x")}},
		{"trailing empty field", [][]byte{[]byte("vote"), []byte{}}},
		{"binary", [][]byte{{0x00, 0xff, 0xfd}, {0xfe}}},
		{"three byte length", [][]byte{bytes.Repeat([]byte{'a'}, 253), []byte("b")}},
		{"five byte length", [][]byte{bytes.Repeat([]byte{'c'}, 70000)}},
		{"utf8", [][]byte{[]byte("¿Sí?"), []byte("日本")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := EncodeFields(tt.fields)

			decoded, err := DecodeFields(b)
			if err != nil {
				t.Fatalf("Failed to decode fields : %s", err)
			}

			if diff := cmp.Diff(tt.fields, decoded, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("Decoded fields don't match (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFieldsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"length exceeds remaining", []byte{0x05, 'a', 'b'}},
		{"second field truncated", append(EncodeStrings("vote"), 0x02, 'x')},
		{"truncated varint", []byte{0xfd, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFields(tt.payload); errors.Cause(err) != ErrMalformedToken {
				t.Fatalf("Wrong error : got %v, wanted %v", err, ErrMalformedToken)
			}
		})
	}
}

func TestEncodeFieldsLayout(t *testing.T) {
	got := EncodeStrings("vote", "ab")
	want := []byte{0x04, 'v', 'o', 't', 'e', 0x02, 'a', 'b'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Wrong encoding : got %x, wanted %x", got, want)
	}
}
