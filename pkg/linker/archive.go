package linker

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

func ReadArchiveMembers(file *File) ([]*File, error) {
	if GetFileType(file.Contents) != FileTypeAr {
		return nil, errors.Wrapf(ErrUnknownFileType, "%s is not an archive", file.Name)
	}

	hdrSize := int(unsafe.Sizeof(ArHdr{}))
	data := len(arMagic)
	var strTab []byte
	var files []*File

	for len(file.Contents)-data >= 2 {
		if data%2 == 1 {
			data++
		}
		if len(file.Contents)-data < hdrSize {
			break
		}

		hdr := &ArHdr{}
		err := binary.Read(bytes.NewReader(file.Contents[data:]), binary.LittleEndian, hdr)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: reading member header", file.Name)
		}
		size, err := hdr.GetSize()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: member at %d", file.Name, data)
		}
		body := data + hdrSize
		data = body + size
		if data > len(file.Contents) {
			return nil, errors.Errorf("%s: member at %d is truncated", file.Name, body-hdrSize)
		}

		if hdr.IsStrtab() {
			strTab = file.Contents[body:data]
			continue
		}

		if hdr.IsSymtab() {
			continue
		}

		ptr := file.Contents[body:data]
		name, err := hdr.ReadName(strTab, &ptr)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: member at %d", file.Name, body-hdrSize)
		}

		if name == "__.SYMDEF" || name == "__.SYMDEF SORTED" {
			continue
		}

		files = append(files, &File{
			Name:     name,
			Contents: ptr,
			Parent:   file,
		})
	}

	return files, nil
}
