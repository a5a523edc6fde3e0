package linker

import (
	"github.com/pkg/errors"
)

// Apply evaluates lhs op rhs. Addition, subtraction, bitwise operators and
// shifts work on the unsigned bit patterns; multiplication, division and
// remainder treat both operands as signed.
func Apply(op string, lhs, rhs uint64) (uint64, error) {
	slhs, srhs := int64(lhs), int64(rhs)
	switch op {
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return uint64(slhs * srhs), nil
	case "/":
		if srhs == 0 {
			return 0, ErrDivideByZero
		}
		return uint64(slhs / srhs), nil
	case "%":
		if srhs == 0 {
			return 0, ErrDivideByZero
		}
		return uint64(slhs % srhs), nil
	case "<<":
		return lhs << (rhs & 63), nil
	case ">>":
		return lhs >> (rhs & 63), nil
	case "&":
		return lhs & rhs, nil
	case "|":
		return lhs | rhs, nil
	}
	return 0, errors.Wrapf(ErrBadExpressionOperator, "%d %q %d", lhs, op, rhs)
}
