package deck

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// wireChunk is one framed output report ready for transmission. Chunks are
// internal to the write path and never reach the caller.
type wireChunk struct {
	seq   int
	final bool
	data  []byte
}

// frameChunks splits payload into ordered chunks per the descriptor's
// header layout. The last chunk may carry fewer payload bytes; every
// report is padded to the full report length.
func frameChunks(d *Descriptor, key int, payload []byte) []wireChunk {
	h := d.Header
	chunkSize := d.ReportLen - h.Len

	n := (len(payload) + chunkSize - 1) / chunkSize
	if n == 0 {
		n = 1 // an empty payload still produces one final chunk
	}

	chunks := make([]wireChunk, 0, n)
	for page := 0; page < n; page++ {
		sent := page * chunkSize
		take := len(payload) - sent
		if take > chunkSize {
			take = chunkSize
		}

		data := make([]byte, d.ReportLen)
		copy(data, h.Template)

		seq := h.SeqStart + page
		switch h.SeqWidth {
		case 1:
			data[h.SeqOffset] = byte(seq)
		case 2:
			binary.LittleEndian.PutUint16(data[h.SeqOffset:], uint16(seq))
		}

		final := page == n-1
		if final {
			data[h.FinalOffset] = 1
		}
		if h.KeyOffset != -1 {
			data[h.KeyOffset] = byte(key + d.KeyBase)
		}
		if h.LenOffset != -1 {
			binary.LittleEndian.PutUint16(data[h.LenOffset:], uint16(take))
		}
		copy(data[h.Len:], payload[sent:sent+take])

		chunks = append(chunks, wireChunk{seq: seq, final: final, data: data})
	}
	return chunks
}

// commandReport builds one command report from a declared template,
// appending args right after the template bytes and zero-padding to the
// command report length.
func commandReport(d *Descriptor, template []byte, args ...byte) ([]byte, error) {
	if len(template) == 0 {
		return nil, ErrUnsupported
	}
	length := d.cmdReportLen()
	if len(template)+len(args) > length {
		return nil, fmt.Errorf("%w: command longer than report", ErrUnsupported)
	}
	report := make([]byte, length)
	copy(report, template)
	copy(report[len(template):], args)
	return report, nil
}

// imageStartReport builds the announce report preceding an image chunk
// run, carrying the payload length (big-endian) and the wire key index at
// the descriptor's declared offsets.
func imageStartReport(d *Descriptor, key, payloadLen int) ([]byte, error) {
	cs := d.Commands
	report, err := commandReport(d, cs.ImageStart)
	if err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint16(report[cs.ImageStartLenOffset:], uint16(payloadLen))
	report[cs.ImageStartKeyOffset] = byte(key + d.KeyBase)
	return report, nil
}

// hexDump renders a report as dash-separated hex for debug logging.
func hexDump(b []byte) string {
	digits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range digits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
