//go:build rawusb

package hid

import (
	"fmt"

	"github.com/karalabe/usb"
)

// Fallback backend built on hidapi via karalabe/usb, for platforms where
// the hidraw backend is not usable.

type rawManager struct{}

func newManager() (Manager, error) {
	if !usb.Supported() {
		return nil, fmt.Errorf("hid: usb support not compiled in")
	}
	return &rawManager{}, nil
}

func (m *rawManager) List() ([]Info, error) {
	devs, err := usb.EnumerateHid(0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Product:      d.Product,
			Manufacturer: d.Manufacturer,
			SerialNumber: d.Serial,
		})
	}
	return out, nil
}

func (m *rawManager) Open(info Info) (Device, error) {
	devs, err := usb.EnumerateHid(info.VendorID, info.ProductID)
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if d.Path != info.Path {
			continue
		}
		dev, err := d.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, info.Path)
}
