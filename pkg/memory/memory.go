// Package memory provides byte-addressable address spaces used both for
// reading object files and for building the linked target image.
package memory

import (
	"github.com/pkg/errors"
)

var ErrAddressOutOfRange = errors.New("address out of range")

// Space is a byte-addressable store. Every wider accessor in this package is
// built from GetU8 and SetU8, so an implementation only has to provide the
// single-byte primitives.
//
// executing marks instruction fetches as opposed to data reads. None of the
// implementations here distinguish the two.
type Space interface {
	GetU8(addr uint64, executing bool) (uint8, error)
	SetU8(addr uint64, v uint8) error
}

func GetU16(s Space, addr uint64, executing, bigEndian bool) (uint16, error) {
	a, err := s.GetU8(addr, executing)
	if err != nil {
		return 0, err
	}
	b, err := s.GetU8(addr+1, executing)
	if err != nil {
		return 0, err
	}
	if bigEndian {
		return uint16(b) | uint16(a)<<8, nil
	}
	return uint16(a) | uint16(b)<<8, nil
}

func SetU16(s Space, addr uint64, v uint16, bigEndian bool) error {
	hi, lo := uint8(v>>8), uint8(v)
	if bigEndian {
		hi, lo = lo, hi
	}
	if err := s.SetU8(addr, lo); err != nil {
		return err
	}
	return s.SetU8(addr+1, hi)
}

func GetU32(s Space, addr uint64, executing, bigEndian bool) (uint32, error) {
	a, err := GetU16(s, addr, executing, bigEndian)
	if err != nil {
		return 0, err
	}
	b, err := GetU16(s, addr+2, executing, bigEndian)
	if err != nil {
		return 0, err
	}
	if bigEndian {
		return uint32(b) | uint32(a)<<16, nil
	}
	return uint32(a) | uint32(b)<<16, nil
}

func SetU32(s Space, addr uint64, v uint32, bigEndian bool) error {
	hi, lo := uint16(v>>16), uint16(v)
	if bigEndian {
		hi, lo = lo, hi
	}
	if err := SetU16(s, addr, lo, bigEndian); err != nil {
		return err
	}
	return SetU16(s, addr+2, hi, bigEndian)
}

func GetU64(s Space, addr uint64, executing, bigEndian bool) (uint64, error) {
	a, err := GetU32(s, addr, executing, bigEndian)
	if err != nil {
		return 0, err
	}
	b, err := GetU32(s, addr+4, executing, bigEndian)
	if err != nil {
		return 0, err
	}
	if bigEndian {
		return uint64(b) | uint64(a)<<32, nil
	}
	return uint64(a) | uint64(b)<<32, nil
}

func SetU64(s Space, addr uint64, v uint64, bigEndian bool) error {
	hi, lo := uint32(v>>32), uint32(v)
	if bigEndian {
		hi, lo = lo, hi
	}
	if err := SetU32(s, addr, lo, bigEndian); err != nil {
		return err
	}
	return SetU32(s, addr+4, hi, bigEndian)
}

func CopyBytes(s Space, addr, n uint64, executing bool) ([]byte, error) {
	buf := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		b, err := s.GetU8(addr+i, executing)
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

func CopySignedBytes(s Space, addr, n uint64, executing bool) ([]int8, error) {
	buf, err := CopyBytes(s, addr, n, executing)
	if err != nil {
		return nil, err
	}
	res := make([]int8, len(buf))
	for i, b := range buf {
		res[i] = int8(b)
	}
	return res, nil
}

// CopyASCII reads n bytes and returns them as a string without any decoding.
func CopyASCII(s Space, addr, n uint64) (string, error) {
	buf, err := CopyBytes(s, addr, n, false)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// StringLength counts bytes from addr up to, not including, the first zero.
func StringLength(s Space, addr uint64) (uint64, error) {
	n := uint64(0)
	for {
		b, err := s.GetU8(addr+n, false)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return n, nil
		}
		n++
	}
}

func CopyString(s Space, addr uint64) (string, error) {
	n, err := StringLength(s, addr)
	if err != nil {
		return "", err
	}
	return CopyASCII(s, addr, n)
}

// Copy moves n bytes from src to dst one byte at a time.
func Copy(dst Space, dstAddr uint64, src Space, srcAddr uint64, n uint64) error {
	for i := uint64(0); i < n; i++ {
		b, err := src.GetU8(srcAddr+i, false)
		if err != nil {
			return err
		}
		if err := dst.SetU8(dstAddr+i, b); err != nil {
			return err
		}
	}
	return nil
}

func Fill(dst Space, addr, n uint64, v uint8) error {
	for i := uint64(0); i < n; i++ {
		if err := dst.SetU8(addr+i, v); err != nil {
			return err
		}
	}
	return nil
}
