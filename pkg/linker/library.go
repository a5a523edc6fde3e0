package linker

import (
	"github.com/pkg/errors"
)

// Library is an ObjectFile joined into a Context. Symbols parallels the
// file's symbol table.
type Library struct {
	File    *ObjectFile
	Idx     int
	Parts   []*SectionPart
	Symbols []Symbol
}

func NewLibrary(file *ObjectFile, idx int) *Library {
	lib := &Library{File: file, Idx: idx}
	lib.Symbols = make([]Symbol, file.NumSymbols)
	for i := range lib.Symbols {
		lib.Symbols[i] = Symbol{Lib: lib, Idx: uint32(i)}
	}
	return lib
}

func (l *Library) Symbol(idx uint32) (*Symbol, error) {
	if idx >= uint32(len(l.Symbols)) {
		return nil, errors.Wrapf(ErrIndexOutOfRange,
			"%s: symbol %d of %d", l.File.Name, idx, len(l.Symbols))
	}
	return &l.Symbols[idx], nil
}

// FindPart returns the part placed from section shndx, if any.
func (l *Library) FindPart(shndx uint32) *SectionPart {
	for _, p := range l.Parts {
		if p.Shndx == shndx {
			return p
		}
	}
	return nil
}
