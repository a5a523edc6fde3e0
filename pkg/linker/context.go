package linker

import (
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ksco/asmld/pkg/memory"
	"github.com/ksco/asmld/pkg/utils"
)

const DefaultAlignment uint64 = 16

type Stage int

const (
	StageLoading Stage = iota
	StageDefinitions
	StageReferences
	StageRelocations
	StageFinalized
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageLoading:
		return "loading"
	case StageDefinitions:
		return "definitions"
	case StageReferences:
		return "references"
	case StageRelocations:
		return "relocations"
	case StageFinalized:
		return "finalized"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

type ContextArg struct {
	AllowMissing bool
}

// Context is the link image: it owns the target memory, the output sections
// and the global symbol namespace shared by every loaded library.
type Context struct {
	Arg ContextArg

	Target memory.Space
	Logger log.Logger

	OutputSections map[string]*OutputSection
	SymbolMap      map[string]*Symbol

	Libs    []*Library
	Visited utils.MapSet[string]

	Stage Stage
}

func NewContext(target memory.Space, logger log.Logger) *Context {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Context{
		Target:         target,
		Logger:         logger,
		OutputSections: make(map[string]*OutputSection),
		SymbolMap:      make(map[string]*Symbol),
		Visited:        utils.NewMapSet[string](),
	}
}

func (ctx *Context) checkStage(want Stage, op string) error {
	if ctx.Stage != want {
		return errors.Wrapf(ErrWrongStage, "%s during %s stage", op, ctx.Stage)
	}
	return nil
}

// CreateOutputSection registers a new output section placed at offset in the
// target. An alignment of zero selects DefaultAlignment.
func (ctx *Context) CreateOutputSection(
	name string, offset uint64, perm Perm, align uint64,
) (*OutputSection, error) {
	if err := ctx.checkStage(StageLoading, "creating output section"); err != nil {
		return nil, err
	}
	if _, ok := ctx.OutputSections[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateOutputSection, "%q", name)
	}
	if align == 0 {
		align = DefaultAlignment
	}

	osec := NewOutputSection(name, offset, perm, align)
	ctx.OutputSections[name] = osec
	level.Debug(ctx.Logger).Log("msg", "created output section", "section", name,
		"offset", hex(offset), "perm", perm, "align", align)
	return osec, nil
}

// AddLibrary joins obj into the image. Sections whose names match an output
// section are placed immediately; all other sections are ignored.
func (ctx *Context) AddLibrary(obj *ObjectFile) (*Library, error) {
	if err := ctx.checkStage(StageLoading, "adding library"); err != nil {
		return nil, err
	}

	lib := NewLibrary(obj, len(ctx.Libs))
	ctx.Libs = append(ctx.Libs, lib)

	for i := uint32(0); i < obj.Hdr.NumSections; i++ {
		name, err := obj.SectionName(i)
		if err != nil {
			return nil, err
		}
		osec, ok := ctx.OutputSections[name]
		if !ok {
			continue
		}
		part, err := osec.Place(ctx, lib, i)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: placing section %q", obj.Name, name)
		}
		lib.Parts = append(lib.Parts, part)
	}

	level.Debug(ctx.Logger).Log("msg", "added library", "library", obj.Name,
		"parts", len(lib.Parts), "symbols", obj.NumSymbols, "references", obj.NumRefs)
	return lib, nil
}

func (ctx *Context) LoadLibrary(name string, data []byte) (*Library, error) {
	obj, err := NewObjectFile(name, memory.NewFlatFrom(data))
	if err != nil {
		return nil, err
	}
	return ctx.AddLibrary(obj)
}

// Link runs definition collection, reference resolution and relocation in
// that order. It can only be called once; a failed link leaves the target
// partially written.
func (ctx *Context) Link(allowMissing bool) error {
	if err := ctx.checkStage(StageLoading, "linking"); err != nil {
		return err
	}
	ctx.Arg.AllowMissing = allowMissing

	ctx.Stage = StageDefinitions
	if err := CollectDefinitions(ctx); err != nil {
		ctx.Stage = StageFailed
		return err
	}

	ctx.Stage = StageReferences
	if err := ResolveReferences(ctx); err != nil {
		ctx.Stage = StageFailed
		return err
	}

	ctx.Stage = StageRelocations
	if err := ApplyRelocations(ctx); err != nil {
		ctx.Stage = StageFailed
		return err
	}

	ctx.Stage = StageFinalized
	return nil
}

// ReadTarget copies [start, end) out of the target memory.
func (ctx *Context) ReadTarget(start, end uint64) ([]byte, error) {
	if end < start {
		return nil, errors.Errorf("bad target range [0x%x, 0x%x)", start, end)
	}
	return memory.CopyBytes(ctx.Target, start, end-start, false)
}

// GlobalSymbols returns the global namespace ordered by address, then name.
func (ctx *Context) GlobalSymbols() []*Symbol {
	syms := lo.Values(ctx.SymbolMap)
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Addr != syms[j].Addr {
			return syms[i].Addr < syms[j].Addr
		}
		return syms[i].Name() < syms[j].Name()
	})
	return syms
}

// SortedOutputSections returns the output sections ordered by base offset.
func (ctx *Context) SortedOutputSections() []*OutputSection {
	osecs := lo.Values(ctx.OutputSections)
	sort.SliceStable(osecs, func(i, j int) bool {
		if osecs[i].Offset != osecs[j].Offset {
			return osecs[i].Offset < osecs[j].Offset
		}
		return osecs[i].Name < osecs[j].Name
	})
	return osecs
}
