package deck

import "image"

// Command is one unit of output work accepted by Session.Write. Each
// command becomes exactly one chunk sequence on the wire; sequences from
// concurrent writers are never interleaved.
type Command interface {
	isCommand()
}

// WriteImage renders Image for the key's display and transmits it. On
// models that buffer image writes, a Flush is required before the image
// appears.
type WriteImage struct {
	Key   int
	Image image.Image
}

// SetBrightness sets the backlight brightness. Percent is clamped to
// 0-100.
type SetBrightness struct {
	Percent int
}

// ClearKey blanks one key's display.
type ClearKey struct {
	Key int
}

// ClearAll blanks every key display.
type ClearAll struct{}

// Flush commits buffered image writes on models that require it; a no-op
// elsewhere.
type Flush struct{}

// KeepAlive nudges models that blank their displays without periodic
// traffic.
type KeepAlive struct{}

// Sleep puts the device display to sleep.
type Sleep struct{}

// Shutdown powers the display down for good, running the model's declared
// shutdown report sequence.
type Shutdown struct{}

func (WriteImage) isCommand()    {}
func (SetBrightness) isCommand() {}
func (ClearKey) isCommand()      {}
func (ClearAll) isCommand()      {}
func (Flush) isCommand()         {}
func (KeepAlive) isCommand()     {}
func (Sleep) isCommand()         {}
func (Shutdown) isCommand()      {}
