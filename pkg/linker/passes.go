package linker

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// CollectDefinitions assigns an address to every non-dummy symbol whose
// defining section was placed and publishes it in the global namespace. When
// two libraries define the same name the first one registered wins.
func CollectDefinitions(ctx *Context) error {
	for _, lib := range ctx.Libs {
		if err := lib.CollectDefinitions(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ResolveReferences binds every remaining non-dummy symbol to the global
// definition of the same name.
func ResolveReferences(ctx *Context) error {
	for _, lib := range ctx.Libs {
		if err := lib.ResolveReferences(ctx); err != nil {
			return err
		}
	}
	return nil
}

func ApplyRelocations(ctx *Context) error {
	for _, lib := range ctx.Libs {
		for _, part := range lib.Parts {
			if err := part.ApplyRelocations(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Library) CollectDefinitions(ctx *Context) error {
	for i := range l.Symbols {
		sym := &l.Symbols[i]
		esym, err := sym.Sym()
		if err != nil {
			return err
		}
		if esym.IsDummy() {
			continue
		}

		part := l.FindPart(esym.Section)
		if part == nil {
			continue
		}
		sym.resolve(part, part.Addr+esym.Offset)

		name, err := sym.readName()
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		if prev, ok := ctx.SymbolMap[name]; ok {
			level.Warn(ctx.Logger).Log("msg", "duplicate global symbol", "symbol", name,
				"library", l.File.Name, "defined_in", prev.Lib.File.Name)
			continue
		}
		ctx.SymbolMap[name] = sym
	}
	return nil
}

func (l *Library) ResolveReferences(ctx *Context) error {
	for i := range l.Symbols {
		sym := &l.Symbols[i]
		if sym.IsResolved {
			continue
		}
		esym, err := sym.Sym()
		if err != nil {
			return err
		}
		if esym.IsDummy() {
			continue
		}

		name, err := sym.readName()
		if err != nil {
			return err
		}
		if target, ok := ctx.SymbolMap[name]; ok {
			sym.resolve(target.Part, target.Addr)
			continue
		}

		if !ctx.Arg.AllowMissing {
			return errors.Wrapf(ErrUndefinedSymbol, "%s: %q", l.File.Name, name)
		}
		level.Warn(ctx.Logger).Log("msg", "leaving symbol unresolved", "symbol", name,
			"library", l.File.Name)
	}
	return nil
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
