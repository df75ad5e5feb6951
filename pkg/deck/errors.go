package deck

import "errors"

// Errors returned from the deck package may be tested against these
// sentinels with errors.Is.
var (
	// ErrInvalidDescriptor is returned when a Descriptor fails validation.
	// It is never retried; the descriptor itself is unusable.
	ErrInvalidDescriptor = errors.New("deck: invalid descriptor")

	// ErrDeviceUnavailable is returned at connect time when the device is
	// claimed by another process or cannot be opened for permission
	// reasons. Callers may retry after a delay.
	ErrDeviceUnavailable = errors.New("deck: device unavailable")

	// ErrDeviceLost is detected mid-session and is terminal for that
	// session: the event stream ends and pending writes fail.
	ErrDeviceLost = errors.New("deck: device lost")

	// ErrSessionClosed is returned by Write after a voluntary Disconnect.
	ErrSessionClosed = errors.New("deck: session closed")

	// ErrMalformedReport marks a single undecodable input report. The tick
	// is dropped and the previous input state retained.
	ErrMalformedReport = errors.New("deck: malformed input report")

	// ErrTransport wraps I/O failures that are not terminal for the
	// session, such as errors while running a descriptor's init sequence.
	ErrTransport = errors.New("deck: transport error")

	// ErrUnsupportedImageFormat is returned for pixel formats the codec
	// cannot produce, or when the model has no display at all.
	ErrUnsupportedImageFormat = errors.New("deck: unsupported image format")

	// ErrEncoding is returned when image encoding fails or produces a
	// payload whose size disagrees with the descriptor.
	ErrEncoding = errors.New("deck: image encoding failed")

	// ErrInvalidKey is returned for key indices outside the grid.
	ErrInvalidKey = errors.New("deck: invalid key index")

	// ErrUnsupported is returned for commands the model declares no
	// template for.
	ErrUnsupported = errors.New("deck: operation not supported by this model")
)
