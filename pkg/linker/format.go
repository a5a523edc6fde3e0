package linker

import (
	"bytes"

	"github.com/pkg/errors"
)

const Magic = "ASMDATA1"
const Version uint32 = 1

// A version field that reads below this value as big-endian marks a
// big-endian file.
const bigEndianVersionLimit = 1000

const (
	SymbolsSection    = "asmdata.symbols"
	ReferencesSection = "asmdata.references"
)

// Header layout.
const (
	offMagic       = 0
	offVersion     = 8
	offPageSize    = 12
	offHint1       = 16
	offHint2       = 24
	offIntHint     = 32
	offStrIndex    = 36
	offHdrIndex    = 40
	offNumSections = 44
	HdrSize        = 48
)

// Section record layout.
const (
	ShdrSize        = 64
	offShEncFlags   = 0
	offShFlags      = 4
	offShFileOffset = 8
	offShVirtOffset = 16
	offShFileSize   = 24
	offShVirtSize   = 32
	offShReserved   = 40
	offShName       = 48
	offShHash       = 56
)

// Symbol record layout.
const (
	SymSize       = 40
	offSymFlags   = 0
	offSymSection = 4
	offSymOffset  = 8
	offSymName    = 16
	offSymLhs     = 24
	offSymOp      = 28
	offSymRhs     = 32
	offSymReserve = 36
)

// Reference record layout.
const (
	RefSize         = 24
	offRefBaseFlags = 0
	offRefWidth     = 1
	offRefExtFlags  = 2
	offRefSection   = 4
	offRefOffset    = 8
	offRefSymbol    = 16
	offRefExtData   = 20
)

const (
	SymDummy uint32 = 1 << 8
	SymExpr  uint32 = 1 << 9
	SymConst uint32 = 1 << 10
	SymOp    uint32 = 1 << 11
)

type Hdr struct {
	Magic       [8]byte
	Version     uint32
	PageSize    uint32
	Hint1       uint64
	Hint2       uint64
	IntHint     uint32
	StrIndex    uint32
	HdrIndex    uint32
	NumSections uint32
}

type SectionHeader struct {
	EncodingFlags uint32
	ContentFlags  uint32
	FileOffset    uint64
	VirtualOffset uint64
	FileSize      uint64
	VirtualSize   uint64
	Reserved      uint64
	Name          uint64
	Hash          uint64
}

type Sym struct {
	Flags    uint32
	Section  uint32
	Offset   uint64
	Name     uint64
	Lhs      uint32
	Op       uint32
	Rhs      uint32
	Reserved uint32
}

// IsDummy reports a symbol without a storage location. Its value has to be
// computed rather than looked up.
func (s *Sym) IsDummy() bool {
	return s.Flags&SymDummy != 0
}

func (s *Sym) IsExpr() bool {
	return s.Flags&SymExpr != 0
}

func (s *Sym) IsConst() bool {
	return s.Flags&SymConst != 0
}

// IsOp reports a symbol whose name is an operator token for expressions.
func (s *Sym) IsOp() bool {
	return s.Flags&SymOp != 0
}

type Ref struct {
	BaseFlags uint8
	Width     uint8
	ExtFlags  uint16
	Section   uint32
	Offset    uint64
	Sym       uint32
	ExtData   uint32
}

// Size returns the patch size in bytes selected by the width code.
func (r *Ref) Size() (int, error) {
	if r.Width > 3 {
		return 0, errors.Wrapf(ErrBadRelocationWidth, "width code %d", r.Width)
	}
	return 1 << r.Width, nil
}

func CheckMagic(contents []byte) bool {
	return bytes.HasPrefix(contents, []byte(Magic))
}
