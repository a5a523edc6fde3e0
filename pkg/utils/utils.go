package utils

import (
	"fmt"
	"os"
)

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Fatal(v any) {
	fmt.Fprintln(os.Stderr, "asmld: "+"\033[0;1;31mfatal:\033[0m", fmt.Sprintf("%v", v))
	os.Exit(1)
}

// AlignTo rounds val up to a multiple of align. Unlike the usual mask trick
// this also works for alignments that are not powers of two.
func AlignTo(val, align uint64) uint64 {
	if align <= 1 {
		return val
	}
	if r := val % align; r != 0 {
		return val + align - r
	}
	return val
}
