package deck

// testDescriptor matches the wire parameters of a typical 2x3 controller
// with two dials and 64x32 RGB565 key displays: 64-byte image reports with
// an 8-byte chunk header, 32-byte command reports, keys numbered from one
// on the wire.
func testDescriptor() *Descriptor {
	return &Descriptor{
		Name:      "testpad",
		VendorID:  0x0300,
		ProductID: 0x1001,

		Rows:  2,
		Cols:  3,
		Dials: 2,

		KeyWidth:   64,
		KeyHeight:  32,
		Format:     FormatRGB565,
		PayloadLen: 4096,

		ReportLen:    64,
		CmdReportLen: 32,
		KeyBase:      1,

		Header: HeaderLayout{
			Len:         8,
			Template:    []byte{0x02, 0x01},
			SeqOffset:   2,
			SeqWidth:    2,
			SeqStart:    0,
			FinalOffset: 4,
			KeyOffset:   5,
			LenOffset:   6,
		},
		Input: InputLayout{
			ReportLen:       11,
			KeyOffset:       1,
			DialPressOffset: 7,
			DialPosOffset:   9,
			DialWrap:        256,
		},
		Commands: CommandSet{
			Init:                [][]byte{{0x03, 0x01}},
			Brightness:          []byte{0x03, 0x08},
			ClearKey:            []byte{0x03, 0x0a},
			ClearAll:            []byte{0x03, 0x0b},
			Flush:               []byte{0x03, 0x0c},
			ImageStart:          []byte{0x03, 0x42},
			ImageStartLenOffset: 2,
			ImageStartKeyOffset: 4,
		},
	}
}

// smallDescriptor trades the big payload for a two-chunk one so session
// tests stay fast: 8x4 RGB565 keys are 64 payload bytes, split 56+8.
func smallDescriptor() *Descriptor {
	d := testDescriptor()
	d.KeyWidth = 8
	d.KeyHeight = 4
	d.PayloadLen = 64
	return d
}

// inputReport builds a raw input report for testDescriptor: six key state
// bytes, two dial press bytes, two dial position bytes.
func inputReport(keys [6]byte, dialDown [2]byte, dialPos [2]byte) []byte {
	report := make([]byte, 11)
	copy(report[1:], keys[:])
	copy(report[7:], dialDown[:])
	copy(report[9:], dialPos[:])
	return report
}
