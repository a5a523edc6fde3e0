package memory

import (
	"github.com/pkg/errors"
)

// Window maps the virtual range [VStart, VStart+Size) onto
// [PStart, PStart+Size) of Backing.
type Window struct {
	Backing Space
	VStart  uint64
	PStart  uint64
	Size    uint64
}

func NewWindow(backing Space, vstart, pstart, size uint64) *Window {
	return &Window{
		Backing: backing,
		VStart:  vstart,
		PStart:  pstart,
		Size:    size,
	}
}

func (w *Window) PhysicalAddress(addr uint64) (uint64, error) {
	if addr < w.VStart || addr-w.VStart >= w.Size {
		return 0, errors.Wrapf(ErrAddressOutOfRange,
			"address 0x%x outside window [0x%x, 0x%x)", addr, w.VStart, w.VStart+w.Size)
	}
	return w.PStart + (addr - w.VStart), nil
}

func (w *Window) GetU8(addr uint64, executing bool) (uint8, error) {
	p, err := w.PhysicalAddress(addr)
	if err != nil {
		return 0, err
	}
	return w.Backing.GetU8(p, executing)
}

func (w *Window) SetU8(addr uint64, v uint8) error {
	p, err := w.PhysicalAddress(addr)
	if err != nil {
		return err
	}
	return w.Backing.SetU8(p, v)
}
