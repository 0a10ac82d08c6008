package substrate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

var ErrDecode = errors.New("scale decode failed")

// decoder reads SCALE primitives from a byte slice
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDecode, n, d.off, d.remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// compact decodes a SCALE compact integer of any width
func (d *decoder) compact() (*big.Int, error) {
	head, err := d.take(1)
	if err != nil {
		return nil, err
	}

	switch head[0] & 0b11 {
	case 0b00:
		return big.NewInt(int64(head[0] >> 2)), nil
	case 0b01:
		rest, err := d.take(1)
		if err != nil {
			return nil, err
		}
		v := binary.LittleEndian.Uint16([]byte{head[0], rest[0]}) >> 2
		return big.NewInt(int64(v)), nil
	case 0b10:
		rest, err := d.take(3)
		if err != nil {
			return nil, err
		}
		v := binary.LittleEndian.Uint32([]byte{head[0], rest[0], rest[1], rest[2]}) >> 2
		return big.NewInt(int64(v)), nil
	default:
		n := int(head[0]>>2) + 4
		le, err := d.take(n)
		if err != nil {
			return nil, err
		}
		be := make([]byte, n)
		for i := range le {
			be[n-1-i] = le[i]
		}
		return new(big.Int).SetBytes(be), nil
	}
}

// compactLen decodes a compact length prefix
func (d *decoder) compactLen() (int, error) {
	v, err := d.compact()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() || v.Int64() > int64(d.remaining()) {
		return 0, fmt.Errorf("%w: length %s exceeds remaining %d bytes", ErrDecode, v, d.remaining())
	}
	return int(v.Int64()), nil
}

func (d *decoder) compactU32() (uint32, error) {
	v, err := d.compact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %s overflows u32", ErrDecode, v)
	}
	return uint32(v.Uint64()), nil
}
