package linker

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ksco/asmld/pkg/memory"
	"github.com/ksco/asmld/pkg/utils"
)

type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// OutputSection is a named region of the target that receives the matching
// sections of every library in load order.
type OutputSection struct {
	Name   string
	Offset uint64
	Size   uint64
	Align  uint64
	Perm   Perm

	Parts []*SectionPart
}

func NewOutputSection(name string, offset uint64, perm Perm, align uint64) *OutputSection {
	return &OutputSection{
		Name:   name,
		Offset: offset,
		Perm:   perm,
		Align:  align,
	}
}

func (o *OutputSection) Readable() bool   { return o.Perm&PermRead != 0 }
func (o *OutputSection) Writable() bool   { return o.Perm&PermWrite != 0 }
func (o *OutputSection) Executable() bool { return o.Perm&PermExec != 0 }

// End is the first address past the last placed part.
func (o *OutputSection) End() uint64 {
	return o.Offset + o.Size
}

// Place appends section shndx of lib to o. The file-backed bytes are copied
// into the target and the rest of the virtual size is zeroed.
func (o *OutputSection) Place(ctx *Context, lib *Library, shndx uint32) (*SectionPart, error) {
	shdr, err := lib.File.Section(shndx)
	if err != nil {
		return nil, err
	}

	o.Size = utils.AlignTo(o.Size, o.Align)
	part := &SectionPart{
		OutputSection: o,
		Lib:           lib,
		Shndx:         shndx,
		Addr:          o.Offset + o.Size,
		Size:          shdr.VirtualSize,
	}

	fsize := min(shdr.FileSize, shdr.VirtualSize)
	if err := memory.Copy(ctx.Target, part.Addr, lib.File.Mem, shdr.FileOffset, fsize); err != nil {
		return nil, errors.Wrap(err, "copying section contents")
	}
	if err := memory.Fill(ctx.Target, part.Addr+fsize, part.Size-fsize, 0); err != nil {
		return nil, errors.Wrap(err, "clearing reserved space")
	}

	o.Size += part.Size
	o.Parts = append(o.Parts, part)

	level.Debug(ctx.Logger).Log("msg", "placed section", "section", o.Name,
		"library", lib.File.Name, "addr", hex(part.Addr), "size", part.Size)
	return part, nil
}
