package linker

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type File struct {
	Name     string
	Contents []byte

	Parent *File
}

func NewFile(fs afero.Fs, filename string) (*File, error) {
	contents, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return &File{
		Name:     filename,
		Contents: contents,
	}, nil
}

// Path names the file for diagnostics, including its archive if any.
func (f *File) Path() string {
	if f.Parent != nil {
		return f.Parent.Name + "(" + f.Name + ")"
	}
	return f.Name
}
