package pushdrop

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

// item is either a data push or a plain op code.
type item struct {
	opcode byte
	isPush bool
	data   []byte
}

// writePushData writes the minimal push of data. Pushes larger than the BTC element limit are
// allowed since BSV scripts don't have one.
func writePushData(buf *bytes.Buffer, data []byte) {
	size := len(data)

	switch {
	case size == 0:
		buf.WriteByte(txscript.OP_0)
		return
	case size == 1 && data[0] >= 1 && data[0] <= 16:
		buf.WriteByte(txscript.OP_1 + data[0] - 1)
		return
	case size == 1 && data[0] == 0x81:
		buf.WriteByte(txscript.OP_1NEGATE)
		return
	case size <= txscript.OP_DATA_75:
		buf.WriteByte(byte(size))
	case size <= 0xff:
		buf.WriteByte(txscript.OP_PUSHDATA1)
		buf.WriteByte(byte(size))
	case size <= 0xffff:
		buf.WriteByte(txscript.OP_PUSHDATA2)
		binary.Write(buf, binary.LittleEndian, uint16(size))
	default:
		buf.WriteByte(txscript.OP_PUSHDATA4)
		binary.Write(buf, binary.LittleEndian, uint32(size))
	}

	buf.Write(data)
}

// parse splits a script into pushes and op codes.
func parse(script []byte) ([]item, error) {
	r := bytes.NewReader(script)
	var result []item

	for r.Len() > 0 {
		opcode, _ := r.ReadByte()

		var size uint32
		switch {
		case opcode == txscript.OP_0:
			result = append(result, item{opcode: opcode, isPush: true, data: []byte{}})
			continue
		case opcode == txscript.OP_1NEGATE:
			result = append(result, item{opcode: opcode, isPush: true, data: []byte{0x81}})
			continue
		case opcode >= txscript.OP_1 && opcode <= txscript.OP_16:
			value := opcode - txscript.OP_1 + 1
			result = append(result, item{opcode: opcode, isPush: true, data: []byte{value}})
			continue
		case opcode <= txscript.OP_DATA_75:
			size = uint32(opcode)
		case opcode == txscript.OP_PUSHDATA1:
			b, err := r.ReadByte()
			if err != nil {
				return nil, errors.Wrap(err, "push data 1 size")
			}
			size = uint32(b)
		case opcode == txscript.OP_PUSHDATA2:
			var s uint16
			if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
				return nil, errors.Wrap(err, "push data 2 size")
			}
			size = uint32(s)
		case opcode == txscript.OP_PUSHDATA4:
			if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
				return nil, errors.Wrap(err, "push data 4 size")
			}
		default:
			result = append(result, item{opcode: opcode})
			continue
		}

		if uint64(size) > uint64(r.Len()) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "push of %d bytes with %d remaining", size,
				r.Len())
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrap(err, "push data")
		}
		result = append(result, item{opcode: opcode, isPush: true, data: data})
	}

	return result, nil
}
