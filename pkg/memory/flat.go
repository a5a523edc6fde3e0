package memory

import (
	"github.com/pkg/errors"
)

// Flat is a fixed-size Space backed by a single byte slice.
type Flat struct {
	buf []byte
}

func NewFlat(size int) *Flat {
	return &Flat{buf: make([]byte, size)}
}

// NewFlatFrom wraps b without copying it.
func NewFlatFrom(b []byte) *Flat {
	return &Flat{buf: b}
}

func (f *Flat) Len() int {
	return len(f.buf)
}

func (f *Flat) Bytes() []byte {
	return f.buf
}

func (f *Flat) index(addr uint64) (int, error) {
	if addr >= uint64(len(f.buf)) {
		return 0, errors.Wrapf(ErrAddressOutOfRange,
			"address 0x%x outside 0x%x-byte buffer", addr, len(f.buf))
	}
	return int(addr), nil
}

func (f *Flat) GetU8(addr uint64, executing bool) (uint8, error) {
	i, err := f.index(addr)
	if err != nil {
		return 0, err
	}
	return f.buf[i], nil
}

func (f *Flat) SetU8(addr uint64, v uint8) error {
	i, err := f.index(addr)
	if err != nil {
		return err
	}
	f.buf[i] = v
	return nil
}
