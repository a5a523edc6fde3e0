package linker

import (
	"encoding/binary"
)

type testSection struct {
	name  string
	data  []byte
	vsize uint64
}

type testSym struct {
	name    string
	flags   uint32
	section uint32
	offset  uint64
	lhs     uint32
	op      uint32
	rhs     uint32
}

type testRef struct {
	width   uint8
	section uint32
	offset  uint64
	sym     uint32
}

// objBuilder assembles ASMDATA1 files for tests. Section 0 is always the
// string table; sections added with section() are numbered from 1.
type objBuilder struct {
	bigEndian bool
	version   uint32
	noTables  bool

	sections []testSection
	syms     []testSym
	refs     []testRef
}

func newObjBuilder(bigEndian bool) *objBuilder {
	return &objBuilder{bigEndian: bigEndian, version: Version}
}

func (b *objBuilder) section(name string, data []byte, vsize uint64) uint32 {
	if vsize < uint64(len(data)) {
		vsize = uint64(len(data))
	}
	b.sections = append(b.sections, testSection{name: name, data: data, vsize: vsize})
	return uint32(len(b.sections))
}

func (b *objBuilder) symbol(s testSym) uint32 {
	b.syms = append(b.syms, s)
	return uint32(len(b.syms) - 1)
}

// define adds a symbol located at offset within section.
func (b *objBuilder) define(name string, section uint32, offset uint64) uint32 {
	return b.symbol(testSym{name: name, section: section, offset: offset})
}

// extern adds a symbol that refers to a definition in another library.
func (b *objBuilder) extern(name string) uint32 {
	return b.symbol(testSym{name: name, section: 0xffffffff})
}

func (b *objBuilder) constant(v uint64) uint32 {
	return b.symbol(testSym{flags: SymDummy | SymConst, offset: v})
}

func (b *objBuilder) operator(token string) uint32 {
	return b.symbol(testSym{name: token, flags: SymDummy | SymOp})
}

func (b *objBuilder) expr(lhs uint32, op string, rhs uint32) uint32 {
	o := b.operator(op)
	return b.symbol(testSym{flags: SymDummy | SymExpr, lhs: lhs, op: o, rhs: rhs})
}

func (b *objBuilder) ref(width uint8, section uint32, offset uint64, sym uint32) {
	b.refs = append(b.refs, testRef{width: width, section: section, offset: offset, sym: sym})
}

func (b *objBuilder) order() binary.ByteOrder {
	if b.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (b *objBuilder) build() []byte {
	bo := b.order()

	strtab := []byte{0}
	addStr := func(s string) uint64 {
		if s == "" {
			return 0
		}
		off := uint64(len(strtab))
		strtab = append(strtab, s...)
		strtab = append(strtab, 0)
		return off
	}

	symtab := make([]byte, len(b.syms)*SymSize)
	for i, s := range b.syms {
		rec := symtab[i*SymSize:]
		bo.PutUint32(rec[offSymFlags:], s.flags)
		bo.PutUint32(rec[offSymSection:], s.section)
		bo.PutUint64(rec[offSymOffset:], s.offset)
		bo.PutUint64(rec[offSymName:], addStr(s.name))
		bo.PutUint32(rec[offSymLhs:], s.lhs)
		bo.PutUint32(rec[offSymOp:], s.op)
		bo.PutUint32(rec[offSymRhs:], s.rhs)
	}

	reftab := make([]byte, len(b.refs)*RefSize)
	for i, r := range b.refs {
		rec := reftab[i*RefSize:]
		rec[offRefBaseFlags] = 0
		rec[offRefWidth] = r.width
		bo.PutUint32(rec[offRefSection:], r.section)
		bo.PutUint64(rec[offRefOffset:], r.offset)
		bo.PutUint32(rec[offRefSymbol:], r.sym)
	}

	all := []testSection{{name: "asmdata.strings"}}
	all = append(all, b.sections...)
	if !b.noTables {
		all = append(all,
			testSection{name: SymbolsSection, data: symtab, vsize: uint64(len(symtab))},
			testSection{name: ReferencesSection, data: reftab, vsize: uint64(len(reftab))})
	}

	names := make([]uint64, len(all))
	for i := range all {
		names[i] = addStr(all[i].name)
	}
	all[0].data = strtab
	all[0].vsize = uint64(len(strtab))

	out := make([]byte, HdrSize+ShdrSize*len(all))
	copy(out, Magic)
	bo.PutUint32(out[offVersion:], b.version)
	bo.PutUint32(out[offPageSize:], 4096)
	bo.PutUint32(out[offStrIndex:], 0)
	bo.PutUint32(out[offNumSections:], uint32(len(all)))

	for i, s := range all {
		for len(out)%8 != 0 {
			out = append(out, 0)
		}
		rec := out[HdrSize+i*ShdrSize:]
		bo.PutUint64(rec[offShFileOffset:], uint64(len(out)))
		bo.PutUint64(rec[offShFileSize:], uint64(len(s.data)))
		bo.PutUint64(rec[offShVirtSize:], s.vsize)
		bo.PutUint64(rec[offShName:], names[i])
		out = append(out, s.data...)
	}
	return out
}
