package linker

import (
	"github.com/pkg/errors"

	"github.com/ksco/asmld/pkg/utils"
)

// Symbol holds the link-time state of one entry of a library's symbol table.
// Flags and fields are always read from the object file, never cached.
type Symbol struct {
	Lib  *Library
	Idx  uint32
	Part *SectionPart
	Addr uint64

	IsResolved bool

	name     string
	nameRead bool
}

func (s *Symbol) Sym() (Sym, error) {
	return s.Lib.File.Symbol(s.Idx)
}

// Name returns the symbol name once it has been read by a link pass.
func (s *Symbol) Name() string {
	return s.name
}

func (s *Symbol) readName() (string, error) {
	if !s.nameRead {
		name, err := s.Lib.File.SymbolName(s.Idx)
		if err != nil {
			return "", err
		}
		s.name = name
		s.nameRead = true
	}
	return s.name, nil
}

func (s *Symbol) resolve(part *SectionPart, addr uint64) {
	s.Part = part
	s.Addr = addr
	s.IsResolved = true
}

// FinalValue is the value a reference to s is patched with: the resolved
// address for ordinary symbols, or the computed value of a constant or
// expression.
func (s *Symbol) FinalValue() (uint64, error) {
	return s.finalValue(utils.NewMapSet[uint32]())
}

func (s *Symbol) finalValue(active utils.MapSet[uint32]) (uint64, error) {
	esym, err := s.Sym()
	if err != nil {
		return 0, err
	}

	if !esym.IsDummy() {
		if !s.IsResolved {
			return 0, errors.Wrapf(ErrUnresolvedSymbol, "%s: %q", s.Lib.File.Name, s.name)
		}
		return s.Addr, nil
	}

	if esym.IsConst() {
		return esym.Offset, nil
	}
	if !esym.IsExpr() {
		return 0, errors.Wrapf(ErrUnevaluableSymbol, "%s: symbol %d", s.Lib.File.Name, s.Idx)
	}

	if active.Contains(s.Idx) {
		return 0, errors.Wrapf(ErrExpressionCycle, "%s: symbol %d", s.Lib.File.Name, s.Idx)
	}
	active.Add(s.Idx)
	defer active.Remove(s.Idx)

	lhs, err := s.Lib.Symbol(esym.Lhs)
	if err != nil {
		return 0, err
	}
	op, err := s.Lib.Symbol(esym.Op)
	if err != nil {
		return 0, err
	}
	rhs, err := s.Lib.Symbol(esym.Rhs)
	if err != nil {
		return 0, err
	}

	l, err := lhs.finalValue(active)
	if err != nil {
		return 0, err
	}
	token, err := op.readName()
	if err != nil {
		return 0, err
	}
	r, err := rhs.finalValue(active)
	if err != nil {
		return 0, err
	}

	v, err := Apply(token, l, r)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: symbol %d", s.Lib.File.Name, s.Idx)
	}
	return v, nil
}
