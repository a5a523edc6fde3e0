package linker

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ksco/asmld/pkg/memory"
)

// ObjectFile is a read-only view over one library in the ASMDATA1 format.
// Records are decoded from the underlying memory on every access.
type ObjectFile struct {
	Name      string
	Mem       memory.Space
	BigEndian bool
	Hdr       Hdr

	StrTab SectionHeader

	NumSymbols uint32
	SymIdx     uint32
	SymOffset  uint64

	NumRefs   uint32
	RefIdx    uint32
	RefOffset uint64
}

func NewObjectFile(name string, mem memory.Space) (*ObjectFile, error) {
	o := &ObjectFile{Name: name, Mem: mem}

	magic, err := memory.CopyASCII(mem, offMagic, uint64(len(Magic)))
	if err != nil {
		return nil, o.wrap(err, "reading magic")
	}
	if magic != Magic {
		return nil, o.wrap(ErrInvalidFormat, fmt.Sprintf("bad magic %q, expected %q", magic, Magic))
	}

	if err := o.parseHeader(); err != nil {
		return nil, err
	}
	if err := o.findTables(); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseObjectFile parses the contents of file, naming it by its full path.
func ParseObjectFile(file *File) (*ObjectFile, error) {
	return NewObjectFile(file.Path(), memory.NewFlatFrom(file.Contents))
}

func (o *ObjectFile) String() string {
	return o.Name
}

func (o *ObjectFile) wrap(err error, msg string) error {
	return errors.Wrapf(err, "%s: %s", o.Name, msg)
}

func (o *ObjectFile) parseHeader() error {
	v, err := memory.GetU32(o.Mem, offVersion, false, true)
	if err != nil {
		return o.wrap(err, "reading version")
	}
	o.BigEndian = v < bigEndianVersionLimit

	r := o.reader(0)
	copy(o.Hdr.Magic[:], Magic)
	o.Hdr.Version = r.u32(offVersion)
	if r.err == nil && o.Hdr.Version != Version {
		return o.wrap(ErrUnsupportedVersion, fmt.Sprintf("version %d, expected %d", o.Hdr.Version, Version))
	}
	o.Hdr.PageSize = r.u32(offPageSize)
	o.Hdr.Hint1 = r.u64(offHint1)
	o.Hdr.Hint2 = r.u64(offHint2)
	o.Hdr.IntHint = r.u32(offIntHint)
	o.Hdr.StrIndex = r.u32(offStrIndex)
	o.Hdr.HdrIndex = r.u32(offHdrIndex)
	o.Hdr.NumSections = r.u32(offNumSections)
	if r.err != nil {
		return o.wrap(r.err, "reading header")
	}

	strtab, err := o.Section(o.Hdr.StrIndex)
	if err != nil {
		return o.wrap(err, "reading string table")
	}
	o.StrTab = strtab
	return nil
}

func (o *ObjectFile) findTables() error {
	idx, ok, err := o.FindSection(SymbolsSection)
	if err != nil {
		return err
	}
	if ok {
		shdr, err := o.Section(idx)
		if err != nil {
			return err
		}
		if err := o.probe(shdr); err != nil {
			return o.wrap(err, "symbol table")
		}
		o.SymIdx = idx
		o.SymOffset = shdr.FileOffset
		o.NumSymbols = uint32(shdr.FileSize / SymSize)
	}

	idx, ok, err = o.FindSection(ReferencesSection)
	if err != nil {
		return err
	}
	if ok {
		shdr, err := o.Section(idx)
		if err != nil {
			return err
		}
		if err := o.probe(shdr); err != nil {
			return o.wrap(err, "reference table")
		}
		o.RefIdx = idx
		o.RefOffset = shdr.FileOffset
		o.NumRefs = uint32(shdr.FileSize / RefSize)
	}
	return nil
}

// probe checks that the last byte of a section's file contents is readable.
func (o *ObjectFile) probe(shdr SectionHeader) error {
	if shdr.FileSize == 0 {
		return nil
	}
	_, err := o.Mem.GetU8(shdr.FileOffset+shdr.FileSize-1, false)
	return err
}

// Str reads a NUL-terminated name from the string table. Offset 0 denotes
// an unnamed entry.
func (o *ObjectFile) Str(offset uint64) (string, error) {
	if offset == 0 {
		return "", nil
	}
	return memory.CopyString(o.Mem, o.StrTab.FileOffset+offset)
}

func (o *ObjectFile) Section(i uint32) (SectionHeader, error) {
	if i >= o.Hdr.NumSections {
		return SectionHeader{}, errors.Wrapf(ErrIndexOutOfRange,
			"%s: section %d of %d", o.Name, i, o.Hdr.NumSections)
	}

	r := o.reader(HdrSize + uint64(i)*ShdrSize)
	shdr := SectionHeader{
		EncodingFlags: r.u32(offShEncFlags),
		ContentFlags:  r.u32(offShFlags),
		FileOffset:    r.u64(offShFileOffset),
		VirtualOffset: r.u64(offShVirtOffset),
		FileSize:      r.u64(offShFileSize),
		VirtualSize:   r.u64(offShVirtSize),
		Reserved:      r.u64(offShReserved),
		Name:          r.u64(offShName),
		Hash:          r.u64(offShHash),
	}
	return shdr, r.err
}

func (o *ObjectFile) SectionName(i uint32) (string, error) {
	shdr, err := o.Section(i)
	if err != nil {
		return "", err
	}
	return o.Str(shdr.Name)
}

// FindSection returns the index of the first section called name.
func (o *ObjectFile) FindSection(name string) (uint32, bool, error) {
	for i := uint32(0); i < o.Hdr.NumSections; i++ {
		n, err := o.SectionName(i)
		if err != nil {
			return 0, false, o.wrap(err, fmt.Sprintf("reading name of section %d", i))
		}
		if n == name {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (o *ObjectFile) Symbol(i uint32) (Sym, error) {
	if i >= o.NumSymbols {
		return Sym{}, errors.Wrapf(ErrIndexOutOfRange,
			"%s: symbol %d of %d", o.Name, i, o.NumSymbols)
	}

	r := o.reader(o.SymOffset + uint64(i)*SymSize)
	sym := Sym{
		Flags:    r.u32(offSymFlags),
		Section:  r.u32(offSymSection),
		Offset:   r.u64(offSymOffset),
		Name:     r.u64(offSymName),
		Lhs:      r.u32(offSymLhs),
		Op:       r.u32(offSymOp),
		Rhs:      r.u32(offSymRhs),
		Reserved: r.u32(offSymReserve),
	}
	return sym, r.err
}

func (o *ObjectFile) SymbolName(i uint32) (string, error) {
	sym, err := o.Symbol(i)
	if err != nil {
		return "", err
	}
	return o.Str(sym.Name)
}

func (o *ObjectFile) Reference(i uint32) (Ref, error) {
	if i >= o.NumRefs {
		return Ref{}, errors.Wrapf(ErrIndexOutOfRange,
			"%s: reference %d of %d", o.Name, i, o.NumRefs)
	}

	r := o.reader(o.RefOffset + uint64(i)*RefSize)
	ref := Ref{
		BaseFlags: r.u8(offRefBaseFlags),
		Width:     r.u8(offRefWidth),
		ExtFlags:  r.u16(offRefExtFlags),
		Section:   r.u32(offRefSection),
		Offset:    r.u64(offRefOffset),
		Sym:       r.u32(offRefSymbol),
		ExtData:   r.u32(offRefExtData),
	}
	return ref, r.err
}

// fieldReader decodes fields relative to base in the file's byte order and
// keeps the first error it runs into.
type fieldReader struct {
	o    *ObjectFile
	base uint64
	err  error
}

func (o *ObjectFile) reader(base uint64) *fieldReader {
	return &fieldReader{o: o, base: base}
}

func (r *fieldReader) u8(off uint64) uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.o.Mem.GetU8(r.base+off, false)
	return v
}

func (r *fieldReader) u16(off uint64) uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = memory.GetU16(r.o.Mem, r.base+off, false, r.o.BigEndian)
	return v
}

func (r *fieldReader) u32(off uint64) uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = memory.GetU32(r.o.Mem, r.base+off, false, r.o.BigEndian)
	return v
}

func (r *fieldReader) u64(off uint64) uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = memory.GetU64(r.o.Mem, r.base+off, false, r.o.BigEndian)
	return v
}
