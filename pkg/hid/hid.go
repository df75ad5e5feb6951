// Package hid abstracts the raw USB HID transport used to talk to stream
// controller hardware. The deck package consumes only these interfaces;
// callers may substitute their own implementation for tests or exotic
// transports.
package hid

import "errors"

// ErrUnavailable is returned by Manager.Open when the device exists but
// cannot be claimed, typically because another process holds it or the
// current user lacks permission.
var ErrUnavailable = errors.New("hid: device unavailable")

// Device represents an opened HID device capable of report I/O.
//
// Buffers passed to Write carry the report ID in their first byte. Read
// blocks until an input report arrives or the device is gone.
type Device interface {
	Write([]byte) (int, error) // send output report
	Read([]byte) (int, error)  // read input report
	Close() error
}

// Info describes one enumerated HID device.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
	SerialNumber string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
}

// NewManager returns the default HID manager for this build.
func NewManager() (Manager, error) {
	return newManager()
}
