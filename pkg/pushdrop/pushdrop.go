// Package pushdrop builds and parses PushDrop locking scripts. A PushDrop script locks an output to
// a public key and carries data fields that are dropped from the stack before the signature check:
//
//	<public key> OP_CHECKSIG <field 0> ... <field n> OP_2DROP ... [OP_DROP]
//
// The form with the fields and drops before the key check is also recognized.
package pushdrop

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

var (
	// ErrNotPushDrop is returned when a script doesn't follow the PushDrop template.
	ErrNotPushDrop = errors.New("Not a PushDrop script")

	// ErrNoFields is returned when a PushDrop script carries no fields.
	ErrNoFields = errors.New("PushDrop script has no fields")
)

// PushDrop is a decoded PushDrop locking script.
type PushDrop struct {
	LockingKey *btcec.PublicKey
	Fields     [][]byte
}

// Lock returns the locking script that carries the fields and locks to the key.
func Lock(key *btcec.PublicKey, fields [][]byte) []byte {
	var buf bytes.Buffer

	writePushData(&buf, key.SerializeCompressed())
	buf.WriteByte(txscript.OP_CHECKSIG)

	for _, field := range fields {
		writePushData(&buf, field)
	}

	for remaining := len(fields); remaining > 0; remaining -= 2 {
		if remaining == 1 {
			buf.WriteByte(txscript.OP_DROP)
			break
		}
		buf.WriteByte(txscript.OP_2DROP)
	}

	return buf.Bytes()
}

// Decode parses a PushDrop locking script.
func Decode(script []byte) (*PushDrop, error) {
	items, err := parse(script)
	if err != nil {
		return nil, errors.Wrap(ErrNotPushDrop, err.Error())
	}

	if len(items) >= 2 && items[0].isPush && items[1].opcode == txscript.OP_CHECKSIG {
		return fromParts(items[0].data, items[2:])
	}

	// Key check after the dropped fields.
	if len(items) >= 2 && items[len(items)-2].isPush &&
		items[len(items)-1].opcode == txscript.OP_CHECKSIG {
		return fromParts(items[len(items)-2].data, items[:len(items)-2])
	}

	return nil, errors.Wrap(ErrNotPushDrop, "missing key check")
}

// Payload returns the first field of a PushDrop script, which is where Pollr tokens live.
func Payload(script []byte) ([]byte, error) {
	pd, err := Decode(script)
	if err != nil {
		return nil, err
	}

	return pd.Fields[0], nil
}

func fromParts(keyData []byte, rest []item) (*PushDrop, error) {
	key, err := btcec.ParsePubKey(keyData, btcec.S256())
	if err != nil {
		return nil, errors.Wrapf(ErrNotPushDrop, "locking key : %s", err)
	}

	result := &PushDrop{LockingKey: key}

	i := 0
	for ; i < len(rest) && rest[i].isPush; i++ {
		result.Fields = append(result.Fields, rest[i].data)
	}

	dropped := 0
	for ; i < len(rest); i++ {
		switch rest[i].opcode {
		case txscript.OP_DROP:
			dropped++
		case txscript.OP_2DROP:
			dropped += 2
		default:
			return nil, errors.Wrapf(ErrNotPushDrop, "unexpected op code 0x%02x", rest[i].opcode)
		}
	}

	if len(result.Fields) == 0 {
		return nil, ErrNoFields
	}

	if dropped != len(result.Fields) {
		return nil, errors.Wrapf(ErrNotPushDrop, "%d fields with %d dropped", len(result.Fields),
			dropped)
	}

	return result, nil
}
