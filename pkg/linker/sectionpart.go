package linker

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ksco/asmld/pkg/memory"
)

// SectionPart is the contribution of one library section to an output
// section.
type SectionPart struct {
	OutputSection *OutputSection
	Lib           *Library
	Shndx         uint32
	Addr          uint64
	Size          uint64
}

// ApplyRelocations patches every reference of the owning library that
// targets this part's section.
func (p *SectionPart) ApplyRelocations(ctx *Context) error {
	file := p.Lib.File
	for i := uint32(0); i < file.NumRefs; i++ {
		ref, err := file.Reference(i)
		if err != nil {
			return err
		}
		if ref.Section != p.Shndx {
			continue
		}
		if err := p.applyRelocation(ctx, i, &ref); err != nil {
			return errors.Wrapf(err, "%s: reference %d", file.Name, i)
		}
	}
	return nil
}

func (p *SectionPart) applyRelocation(ctx *Context, idx uint32, ref *Ref) error {
	file := p.Lib.File

	sym, err := p.Lib.Symbol(ref.Sym)
	if err != nil {
		return err
	}
	size, err := ref.Size()
	if err != nil {
		return err
	}

	val, err := sym.FinalValue()
	if err != nil {
		if ctx.Arg.AllowMissing && errors.Is(err, ErrUnresolvedSymbol) {
			level.Warn(ctx.Logger).Log("msg", "skipping reference to missing symbol",
				"library", file.Name, "reference", idx, "err", err)
			return nil
		}
		return err
	}

	addr := p.Addr + ref.Offset
	level.Debug(ctx.Logger).Log("msg", "fixing reference", "library", file.Name,
		"addr", hex(addr), "offset", hex(ref.Offset), "symbol", sym.Name(),
		"value", hex(val), "size", size)

	switch size {
	case 1:
		return ctx.Target.SetU8(addr, uint8(val))
	case 2:
		return memory.SetU16(ctx.Target, addr, uint16(val), file.BigEndian)
	case 4:
		return memory.SetU32(ctx.Target, addr, uint32(val), file.BigEndian)
	default:
		return memory.SetU64(ctx.Target, addr, val, file.BigEndian)
	}
}
