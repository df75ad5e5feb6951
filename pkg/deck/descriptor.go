package deck

import "fmt"

// PixelFormat is the image container a model expects for key images.
type PixelFormat int

const (
	// FormatNone marks models without key displays (pedals, macro pads).
	FormatNone PixelFormat = iota
	FormatJPEG
	FormatBMP
	// FormatRGB565 is raw 16-bit little-endian pixels, row-major.
	FormatRGB565
)

func (f PixelFormat) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatJPEG:
		return "jpeg"
	case FormatBMP:
		return "bmp"
	case FormatRGB565:
		return "rgb565"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Rotation is a clockwise orientation transform applied before encoding.
type Rotation int

const (
	Rot0   Rotation = 0
	Rot90  Rotation = 90
	Rot180 Rotation = 180
	Rot270 Rotation = 270
)

// InputLayout tells where key and dial state lives inside an input report.
// All offsets are into the full report, report ID byte included.
type InputLayout struct {
	ReportLen int // full input report length, report ID included

	// KeyOffset is the first of Keys() consecutive bytes, one per key,
	// nonzero while the key is held.
	KeyOffset int

	// Dial bytes follow the same one-byte-per-input scheme. DialPosOffset
	// bytes carry the absolute dial position. Set both to -1 for models
	// without dials.
	DialPressOffset int
	DialPosOffset   int

	// DialWrap is the modulus at which absolute dial positions wrap.
	// Zero disables wrap normalization.
	DialWrap int
}

// HeaderLayout describes the per-chunk header of image write reports.
// Beyond the sequence number and final-chunk flag the core treats header
// bytes as opaque; everything here comes from a device plugin's protocol
// documentation. Multi-byte fields are little-endian.
type HeaderLayout struct {
	Len      int    // header bytes preceding payload in each chunk
	Template []byte // literal header bytes, report ID at [0]

	SeqOffset int
	SeqWidth  int // 1 or 2
	SeqStart  int // first sequence number of every chunk run

	FinalOffset int // byte set to 1 on the last chunk

	KeyOffset int // target key in each chunk header, -1 if absent
	LenOffset int // chunk payload length (LE16), -1 if absent
}

// CommandSet holds the model's declared command report templates. Empty
// templates mean the model does not support the operation. Templates carry
// the report ID in their first byte and are zero-padded to the command
// report length on the wire.
type CommandSet struct {
	// Init reports are written once, in order, right after connecting.
	Init [][]byte

	Brightness []byte // percent appended
	ClearKey   []byte // wire key index appended
	ClearAll   []byte
	Flush      []byte // commit report for models that buffer image writes
	KeepAlive  []byte
	Sleep      []byte

	// Shutdown reports are written in order to power the display down;
	// some models want a clear report followed by a sleep report.
	Shutdown [][]byte

	// ImageStart, when present, is written once before each image chunk
	// run. It announces the payload length (big-endian 16-bit at
	// ImageStartLenOffset) and the wire key index (at ImageStartKeyOffset).
	ImageStart          []byte
	ImageStartLenOffset int
	ImageStartKeyOffset int
}

// Descriptor is the immutable capability description of one device model.
// It is pure data, supplied by a device plugin, validated once and then
// shared read-only across any number of sessions.
type Descriptor struct {
	Name      string
	VendorID  uint16
	ProductID uint16

	Rows  int
	Cols  int
	Dials int

	// Key display parameters. Width/Height are the per-key pixel
	// dimensions the device expects, before the orientation transform.
	KeyWidth  int
	KeyHeight int
	Format    PixelFormat
	Rotation  Rotation
	FlipX     bool
	FlipY     bool

	// PayloadLen is the exact encoded image payload size in bytes for
	// fixed-size pixel formats. Zero means the size varies per image
	// (JPEG) and the chunk run is sized per payload.
	PayloadLen int

	ReportLen    int // full image chunk report length, report ID included
	CmdReportLen int // command report length; zero means ReportLen

	// KeyBase is added to key indices on the wire; several models number
	// keys from one.
	KeyBase int

	Header   HeaderLayout
	Input    InputLayout
	Commands CommandSet
}

// Keys returns the number of physical keys on the grid.
func (d *Descriptor) Keys() int { return d.Rows * d.Cols }

// Inputs returns the number of physical inputs (keys plus dials).
func (d *Descriptor) Inputs() int { return d.Keys() + d.Dials }

func (d *Descriptor) cmdReportLen() int {
	if d.CmdReportLen > 0 {
		return d.CmdReportLen
	}
	return d.ReportLen
}

// Validate checks the descriptor's internal consistency. It must pass
// before the descriptor is used to connect; all failures wrap
// ErrInvalidDescriptor.
func (d *Descriptor) Validate() error {
	if d.Rows < 1 || d.Cols < 1 {
		return fmt.Errorf("%w: %dx%d key grid", ErrInvalidDescriptor, d.Rows, d.Cols)
	}
	if d.Dials < 0 {
		return fmt.Errorf("%w: negative dial count", ErrInvalidDescriptor)
	}
	if d.ReportLen < 2 {
		return fmt.Errorf("%w: report length %d", ErrInvalidDescriptor, d.ReportLen)
	}
	if d.CmdReportLen < 0 {
		return fmt.Errorf("%w: negative command report length", ErrInvalidDescriptor)
	}
	if err := d.validateHeader(); err != nil {
		return err
	}
	if err := d.validateInput(); err != nil {
		return err
	}
	if d.Format != FormatNone && (d.KeyWidth < 1 || d.KeyHeight < 1) {
		return fmt.Errorf("%w: %dx%d key image", ErrInvalidDescriptor, d.KeyWidth, d.KeyHeight)
	}
	if d.Format == FormatRGB565 && d.PayloadLen != 0 && d.PayloadLen != 2*d.KeyWidth*d.KeyHeight {
		return fmt.Errorf("%w: rgb565 payload length %d for %dx%d keys",
			ErrInvalidDescriptor, d.PayloadLen, d.KeyWidth, d.KeyHeight)
	}
	switch d.Rotation {
	case Rot0, Rot90, Rot180, Rot270:
	default:
		return fmt.Errorf("%w: rotation %d", ErrInvalidDescriptor, d.Rotation)
	}
	if cs := d.Commands; len(cs.ImageStart) > 0 {
		l := d.cmdReportLen()
		if cs.ImageStartLenOffset < 0 || cs.ImageStartLenOffset+2 > l ||
			cs.ImageStartKeyOffset < 0 || cs.ImageStartKeyOffset >= l {
			return fmt.Errorf("%w: image start offsets outside command report", ErrInvalidDescriptor)
		}
	}
	return nil
}

func (d *Descriptor) validateHeader() error {
	h := d.Header
	if h.Len < 1 || h.Len >= d.ReportLen {
		return fmt.Errorf("%w: header length %d with report length %d",
			ErrInvalidDescriptor, h.Len, d.ReportLen)
	}
	if len(h.Template) > h.Len {
		return fmt.Errorf("%w: header template longer than header", ErrInvalidDescriptor)
	}
	if h.SeqWidth != 1 && h.SeqWidth != 2 {
		return fmt.Errorf("%w: sequence width %d", ErrInvalidDescriptor, h.SeqWidth)
	}
	if h.SeqOffset < 1 || h.SeqOffset+h.SeqWidth > h.Len {
		return fmt.Errorf("%w: sequence field outside header", ErrInvalidDescriptor)
	}
	if h.FinalOffset < 1 || h.FinalOffset >= h.Len {
		return fmt.Errorf("%w: final flag outside header", ErrInvalidDescriptor)
	}
	if h.KeyOffset != -1 && (h.KeyOffset < 1 || h.KeyOffset >= h.Len) {
		return fmt.Errorf("%w: key field outside header", ErrInvalidDescriptor)
	}
	if h.LenOffset != -1 && (h.LenOffset < 1 || h.LenOffset+2 > h.Len) {
		return fmt.Errorf("%w: length field outside header", ErrInvalidDescriptor)
	}
	if h.SeqStart < 0 {
		return fmt.Errorf("%w: negative sequence start", ErrInvalidDescriptor)
	}
	return nil
}

func (d *Descriptor) validateInput() error {
	in := d.Input
	if in.ReportLen < 2 {
		return fmt.Errorf("%w: input report length %d", ErrInvalidDescriptor, in.ReportLen)
	}
	if in.KeyOffset < 1 || in.KeyOffset+d.Keys() > in.ReportLen {
		return fmt.Errorf("%w: key state outside input report", ErrInvalidDescriptor)
	}
	if d.Dials == 0 {
		return nil
	}
	if in.DialPressOffset < 1 || in.DialPressOffset+d.Dials > in.ReportLen {
		return fmt.Errorf("%w: dial press state outside input report", ErrInvalidDescriptor)
	}
	if in.DialPosOffset < 1 || in.DialPosOffset+d.Dials > in.ReportLen {
		return fmt.Errorf("%w: dial position outside input report", ErrInvalidDescriptor)
	}
	if in.DialWrap < 0 {
		return fmt.Errorf("%w: negative dial wrap", ErrInvalidDescriptor)
	}
	return nil
}
