package linker

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ArHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

func (a *ArHdr) StartsWith(s string) bool {
	return string(a.Name[:len(s)]) == s
}

func (a *ArHdr) IsStrtab() bool {
	return a.StartsWith("// ")
}

func (a *ArHdr) IsSymtab() bool {
	return a.StartsWith("/ ") || a.StartsWith("/SYM64/ ")
}

func (a *ArHdr) ReadName(strTab []byte, ptr *[]byte) (string, error) {
	// BSD-style long filename
	if a.StartsWith("#1/") {
		nameLen, err := strconv.Atoi(strings.TrimSpace(string(a.Name[3:])))
		if err != nil {
			return "", errors.Wrap(err, "bad BSD name length")
		}
		if nameLen > len(*ptr) {
			return "", errors.Errorf("BSD name length %d exceeds member", nameLen)
		}
		name := (*ptr)[:nameLen]
		*ptr = (*ptr)[nameLen:]

		if end := bytes.Index(name, []byte{0}); end != -1 {
			name = name[:end]
		}
		return string(name), nil
	}

	// SysV-style long filename
	if a.StartsWith("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(a.Name[1:])))
		if err != nil {
			return "", errors.Wrap(err, "bad long name offset")
		}
		if start < 0 || start > len(strTab) {
			return "", errors.Errorf("long name offset %d outside string table", start)
		}
		end := bytes.Index(strTab[start:], []byte("/\n"))
		if end == -1 {
			return "", errors.Errorf("unterminated long name at %d", start)
		}
		return string(strTab[start : start+end]), nil
	}

	// Short filename
	if end := bytes.Index(a.Name[:], []byte("/")); end != -1 {
		return string(a.Name[:end]), nil
	}
	return strings.TrimRight(string(a.Name[:]), " "), nil
}

func (a *ArHdr) GetSize() (int, error) {
	sz, err := strconv.Atoi(strings.TrimSpace(string(a.Size[:])))
	if err != nil {
		return 0, errors.Wrap(err, "bad member size")
	}
	if sz < 0 {
		return 0, errors.Errorf("negative member size %d", sz)
	}
	return sz, nil
}
