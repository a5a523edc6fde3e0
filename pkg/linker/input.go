package linker

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type FileType = int8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeAr
)

const arMagic = "!<arch>\n"

func GetFileType(contents []byte) FileType {
	if len(contents) == 0 {
		return FileTypeEmpty
	}
	if CheckMagic(contents) {
		return FileTypeObject
	}
	if bytes.HasPrefix(contents, []byte(arMagic)) {
		return FileTypeAr
	}
	return FileTypeUnknown
}

// ReadInputFiles loads every path in order. Archives contribute their members
// in archive order.
func ReadInputFiles(ctx *Context, fs afero.Fs, paths []string) error {
	for _, path := range paths {
		if ctx.Visited.Contains(path) {
			continue
		}
		file, err := NewFile(fs, path)
		if err != nil {
			return err
		}
		if err := ReadFile(ctx, file); err != nil {
			return err
		}
		ctx.Visited.Add(path)
	}
	return nil
}

func ReadFile(ctx *Context, file *File) error {
	switch GetFileType(file.Contents) {
	case FileTypeObject:
		return loadObject(ctx, file)
	case FileTypeAr:
		members, err := ReadArchiveMembers(file)
		if err != nil {
			return err
		}
		for _, child := range members {
			if GetFileType(child.Contents) != FileTypeObject {
				return errors.Wrapf(ErrUnknownFileType, "%s", child.Path())
			}
			if err := loadObject(ctx, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrUnknownFileType, "%s", file.Path())
	}
}

func loadObject(ctx *Context, file *File) error {
	obj, err := ParseObjectFile(file)
	if err != nil {
		return err
	}
	_, err = ctx.AddLibrary(obj)
	return err
}
