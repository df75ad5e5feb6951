// Package deck implements a device-agnostic protocol runtime for USB HID
// stream controllers: button grids, rotary dials and per-key displays.
// Hardware models are described by declarative capability descriptors
// supplied by device plugins; the runtime turns raw HID reports into
// structured input events and rendered images into framed report
// sequences, while keeping one device handle safe under concurrent use.
package deck

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tannerhall/godeck/internal/render"
	"github.com/tannerhall/godeck/pkg/hid"
)

// DeviceID identifies one supported model by its USB identifiers.
type DeviceID struct {
	VendorID  uint16
	ProductID uint16
}

// Manager discovers devices through an injected HID transport and opens
// sessions on them. Which vendor/product pairs to look for is caller
// policy; the manager bakes in none.
type Manager struct {
	hid  hid.Manager
	log  *slog.Logger
	pool *render.Pool
}

// NewManager returns a Manager using the given transport. A nil logger
// falls back to slog.Default.
func NewManager(h hid.Manager, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		hid:  h,
		log:  log,
		pool: render.NewPool(0),
	}
}

// Close releases the manager's encoding workers. Sessions already open
// must be disconnected before the manager is closed.
func (m *Manager) Close() {
	m.pool.Close()
}

// Discover enumerates connected devices matching the filter without
// opening them. An empty filter matches nothing: the runtime ships no
// hardware database, so callers must say what they are looking for.
func (m *Manager) Discover(filter []DeviceID) ([]hid.Info, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	infos, err := m.hid.List()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate: %w", ErrTransport, err)
	}
	var out []hid.Info
	for _, info := range infos {
		for _, id := range filter {
			if info.VendorID == id.VendorID && info.ProductID == id.ProductID {
				out = append(out, info)
				break
			}
		}
	}
	return out, nil
}

// Connect opens the device and binds a new session to it using the given
// descriptor. The descriptor's declared init sequence, if any, is written
// before the session goes live. No retry is attempted; that is caller
// policy.
func (m *Manager) Connect(info hid.Info, desc *Descriptor) (*Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	dev, err := m.hid.Open(info)
	if err != nil {
		if errors.Is(err, hid.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransport, info.Path, err)
	}
	sess, err := m.attach(dev, desc)
	if err != nil {
		dev.Close()
		return nil, err
	}
	m.log.Info("connected",
		slog.String("device", desc.Name), slog.String("path", info.Path))
	return sess, nil
}

// Attach binds a session directly to an already-open device, bypassing
// enumeration. It serves callers that bring their own transport.
func (m *Manager) Attach(dev hid.Device, desc *Descriptor) (*Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return m.attach(dev, desc)
}

func (m *Manager) attach(dev hid.Device, desc *Descriptor) (*Session, error) {
	for i, init := range desc.Commands.Init {
		report, err := commandReport(desc, init)
		if err != nil {
			return nil, fmt.Errorf("init sequence %d: %w", i, err)
		}
		if _, err := dev.Write(report); err != nil {
			return nil, fmt.Errorf("%w: init sequence %d: %w", ErrTransport, i, err)
		}
	}
	return newSession(desc, dev, m.log, m.pool), nil
}
