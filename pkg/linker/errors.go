package linker

import (
	"github.com/pkg/errors"

	"github.com/ksco/asmld/pkg/memory"
)

var (
	ErrAddressOutOfRange = memory.ErrAddressOutOfRange

	ErrInvalidFormat      = errors.New("invalid object file format")
	ErrUnsupportedVersion = errors.New("unsupported object file version")
	ErrIndexOutOfRange    = errors.New("table index out of range")
	ErrUnknownFileType    = errors.New("unknown file type")

	ErrDuplicateOutputSection = errors.New("output section already exists")
	ErrWrongStage             = errors.New("operation not allowed at this link stage")

	ErrUndefinedSymbol       = errors.New("undefined symbol")
	ErrUnresolvedSymbol      = errors.New("unresolved symbol")
	ErrBadExpressionOperator = errors.New("bad expression operator")
	ErrUnevaluableSymbol     = errors.New("symbol cannot be evaluated")
	ErrExpressionCycle       = errors.New("expression refers to itself")
	ErrDivideByZero          = errors.New("division by zero in expression")
	ErrBadRelocationWidth    = errors.New("bad relocation width")
)
