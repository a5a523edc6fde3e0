package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	const size = 32
	values := []uint64{
		0,
		^uint64(0),
		1 << 63,
		0xaa55aa55aa55aa55,
		0x55aa55aa55aa55aa,
		0x0123456789abcdef,
	}

	for _, bigEndian := range []bool{false, true} {
		for _, v := range values {
			// Start of buffer, an odd address, and the last slot that fits.
			for _, width := range []uint64{2, 4, 8} {
				for _, addr := range []uint64{0, 3, size - width} {
					f := NewFlat(size)
					msg := []any{"width %d addr %d value %#x big %v", width, addr, v, bigEndian}

					switch width {
					case 2:
						require.NoError(t, SetU16(f, addr, uint16(v), bigEndian), msg...)
						got, err := GetU16(f, addr, false, bigEndian)
						require.NoError(t, err, msg...)
						require.Equal(t, uint16(v), got, msg...)
					case 4:
						require.NoError(t, SetU32(f, addr, uint32(v), bigEndian), msg...)
						got, err := GetU32(f, addr, false, bigEndian)
						require.NoError(t, err, msg...)
						require.Equal(t, uint32(v), got, msg...)
					case 8:
						require.NoError(t, SetU64(f, addr, v, bigEndian), msg...)
						got, err := GetU64(f, addr, true, bigEndian)
						require.NoError(t, err, msg...)
						require.Equal(t, v, got, msg...)
					}

					// Nothing outside [addr, addr+width) is touched.
					for i, b := range f.Bytes() {
						if uint64(i) < addr || uint64(i) >= addr+width {
							require.Zero(t, b, msg...)
						}
					}

					require.ErrorIs(t, SetU64(f, size-width+1, v, bigEndian), ErrAddressOutOfRange, msg...)
				}
			}

			f := NewFlat(size)
			require.NoError(t, f.SetU8(size-1, uint8(v)))
			got, err := f.GetU8(size-1, false)
			require.NoError(t, err)
			require.Equal(t, uint8(v), got)
		}
	}
}

func TestByteOrder(t *testing.T) {
	f := NewFlat(8)
	require.NoError(t, SetU32(f, 0, 0x11223344, false))
	require.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, f.Bytes()[:4])

	require.NoError(t, SetU32(f, 4, 0x11223344, true))
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, f.Bytes()[4:])

	v, err := GetU64(f, 0, false, true)
	require.NoError(t, err)
	require.Equal(t, uint64(0x4433221111223344), v)
}

func TestStrings(t *testing.T) {
	f := NewFlatFrom([]byte{0x41, 0x42, 0, 0x43})

	s, err := CopyString(f, 0)
	require.NoError(t, err)
	require.Equal(t, "AB", s)

	n, err := StringLength(f, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	_, err = CopyString(f, 3)
	require.ErrorIs(t, err, ErrAddressOutOfRange)

	ascii, err := CopyASCII(f, 0, 4)
	require.NoError(t, err)
	require.Equal(t, "AB\x00C", ascii)

	signed, err := CopySignedBytes(NewFlatFrom([]byte{0xff, 0x7f}), 0, 2, false)
	require.NoError(t, err)
	require.Equal(t, []int8{-1, 127}, signed)
}

func TestFlatOutOfRange(t *testing.T) {
	f := NewFlat(4)

	_, err := f.GetU8(4, false)
	require.ErrorIs(t, err, ErrAddressOutOfRange)
	require.Contains(t, err.Error(), "0x4")

	require.ErrorIs(t, f.SetU8(1<<63, 1), ErrAddressOutOfRange)
	require.ErrorIs(t, SetU32(f, 2, 0, false), ErrAddressOutOfRange)
}

func TestWindow(t *testing.T) {
	f := NewFlat(16)
	w := NewWindow(f, 0x1000, 8, 4)

	require.NoError(t, SetU32(w, 0x1000, 0xcafebabe, false))
	require.Equal(t, []byte{0xbe, 0xba, 0xfe, 0xca}, f.Bytes()[8:12])

	v, err := GetU32(w, 0x1000, false, false)
	require.NoError(t, err)
	require.Equal(t, uint32(0xcafebabe), v)

	for _, addr := range []uint64{0x0fff, 0x1004, 0} {
		_, err := w.GetU8(addr, false)
		require.ErrorIs(t, err, ErrAddressOutOfRange, "addr 0x%x", addr)
	}
}

func TestCopyAndFill(t *testing.T) {
	src := NewFlatFrom([]byte{1, 2, 3, 4})
	dst := NewFlat(8)

	require.NoError(t, Copy(dst, 2, src, 1, 3))
	require.Equal(t, []byte{0, 0, 2, 3, 4, 0, 0, 0}, dst.Bytes())

	require.NoError(t, Fill(dst, 3, 2, 0xff))
	require.Equal(t, []byte{0, 0, 2, 0xff, 0xff, 0, 0, 0}, dst.Bytes())

	require.ErrorIs(t, Copy(dst, 6, src, 0, 4), ErrAddressOutOfRange)
}
