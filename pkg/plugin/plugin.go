// Package plugin loads capability descriptors installed by device
// plugins. Descriptors are declarative data, so plugins ship them as TOML
// files; the registry keeps a live view of an installation directory.
package plugin

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tannerhall/godeck/pkg/deck"
)

// file is the on-disk TOML shape of one descriptor.
type file struct {
	Name      string `toml:"name"`
	VendorID  int    `toml:"vendor_id"`
	ProductID int    `toml:"product_id"`
	KeyBase   int    `toml:"key_base"`

	Keys struct {
		Rows       int    `toml:"rows"`
		Cols       int    `toml:"cols"`
		Width      int    `toml:"width"`
		Height     int    `toml:"height"`
		Format     string `toml:"format"`
		Rotation   int    `toml:"rotation"`
		FlipX      bool   `toml:"flip_x"`
		FlipY      bool   `toml:"flip_y"`
		PayloadLen int    `toml:"payload_len"`
	} `toml:"keys"`

	Dials struct {
		Count int `toml:"count"`
		Wrap  int `toml:"wrap"`
	} `toml:"dials"`

	Report struct {
		ImageLen   int `toml:"image_len"`
		CommandLen int `toml:"command_len"`
		InputLen   int `toml:"input_len"`
	} `toml:"report"`

	Header struct {
		Len         int   `toml:"len"`
		Template    []int `toml:"template"`
		SeqOffset   int   `toml:"seq_offset"`
		SeqWidth    int   `toml:"seq_width"`
		SeqStart    int   `toml:"seq_start"`
		FinalOffset int   `toml:"final_offset"`
		KeyOffset   int   `toml:"key_offset"`
		LenOffset   int   `toml:"len_offset"`
	} `toml:"header"`

	Input struct {
		KeyOffset       int `toml:"key_offset"`
		DialPressOffset int `toml:"dial_press_offset"`
		DialPosOffset   int `toml:"dial_pos_offset"`
	} `toml:"input"`

	Commands struct {
		Init           [][]int `toml:"init"`
		Brightness     []int   `toml:"brightness"`
		ClearKey       []int   `toml:"clear_key"`
		ClearAll       []int   `toml:"clear_all"`
		Flush          []int   `toml:"flush"`
		KeepAlive      []int   `toml:"keep_alive"`
		Sleep          []int   `toml:"sleep"`
		Shutdown       [][]int `toml:"shutdown"`
		ImageStart     []int   `toml:"image_start"`
		ImageLenOffset int     `toml:"image_len_offset"`
		ImageKeyOffset int     `toml:"image_key_offset"`
	} `toml:"commands"`
}

// Load reads one descriptor file and validates it.
func Load(path string) (*deck.Descriptor, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	desc, err := f.descriptor()
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return desc, nil
}

func (f *file) descriptor() (*deck.Descriptor, error) {
	format, err := parseFormat(f.Keys.Format)
	if err != nil {
		return nil, err
	}

	init := make([][]byte, 0, len(f.Commands.Init))
	for _, seq := range f.Commands.Init {
		init = append(init, bytesOf(seq))
	}
	shutdown := make([][]byte, 0, len(f.Commands.Shutdown))
	for _, seq := range f.Commands.Shutdown {
		shutdown = append(shutdown, bytesOf(seq))
	}

	desc := &deck.Descriptor{
		Name:      f.Name,
		VendorID:  uint16(f.VendorID),
		ProductID: uint16(f.ProductID),
		Rows:      f.Keys.Rows,
		Cols:      f.Keys.Cols,
		Dials:     f.Dials.Count,
		KeyWidth:  f.Keys.Width,
		KeyHeight: f.Keys.Height,
		Format:    format,
		Rotation:  deck.Rotation(f.Keys.Rotation),
		FlipX:     f.Keys.FlipX,
		FlipY:     f.Keys.FlipY,

		PayloadLen:   f.Keys.PayloadLen,
		ReportLen:    f.Report.ImageLen,
		CmdReportLen: f.Report.CommandLen,
		KeyBase:      f.KeyBase,

		Header: deck.HeaderLayout{
			Len:         f.Header.Len,
			Template:    bytesOf(f.Header.Template),
			SeqOffset:   f.Header.SeqOffset,
			SeqWidth:    f.Header.SeqWidth,
			SeqStart:    f.Header.SeqStart,
			FinalOffset: f.Header.FinalOffset,
			KeyOffset:   orAbsent(f.Header.KeyOffset),
			LenOffset:   orAbsent(f.Header.LenOffset),
		},
		Input: deck.InputLayout{
			ReportLen:       f.Report.InputLen,
			KeyOffset:       f.Input.KeyOffset,
			DialPressOffset: orAbsent(f.Input.DialPressOffset),
			DialPosOffset:   orAbsent(f.Input.DialPosOffset),
			DialWrap:        f.Dials.Wrap,
		},
		Commands: deck.CommandSet{
			Init:                init,
			Brightness:          bytesOf(f.Commands.Brightness),
			ClearKey:            bytesOf(f.Commands.ClearKey),
			ClearAll:            bytesOf(f.Commands.ClearAll),
			Flush:               bytesOf(f.Commands.Flush),
			KeepAlive:           bytesOf(f.Commands.KeepAlive),
			Sleep:               bytesOf(f.Commands.Sleep),
			Shutdown:            shutdown,
			ImageStart:          bytesOf(f.Commands.ImageStart),
			ImageStartLenOffset: f.Commands.ImageLenOffset,
			ImageStartKeyOffset: f.Commands.ImageKeyOffset,
		},
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

func parseFormat(s string) (deck.PixelFormat, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return deck.FormatNone, nil
	case "jpeg", "jpg":
		return deck.FormatJPEG, nil
	case "bmp":
		return deck.FormatBMP, nil
	case "rgb565":
		return deck.FormatRGB565, nil
	}
	return deck.FormatNone, fmt.Errorf("unknown pixel format %q", s)
}

func bytesOf(values []int) []byte {
	if len(values) == 0 {
		return nil
	}
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out
}

// orAbsent maps the TOML zero value to the descriptor's "absent" marker.
// Offset zero would point at the report ID, which no layout uses.
func orAbsent(offset int) int {
	if offset == 0 {
		return -1
	}
	return offset
}
