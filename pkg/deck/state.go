package deck

import "fmt"

// inputState is one absolute snapshot of every physical input. Devices
// report full current state each poll tick; events are produced by diffing
// consecutive snapshots.
type inputState struct {
	keys     []bool
	dialDown []bool
	dialPos  []int
}

func newInputState(d *Descriptor) *inputState {
	return &inputState{
		keys:     make([]bool, d.Keys()),
		dialDown: make([]bool, d.Dials),
		dialPos:  make([]int, d.Dials),
	}
}

// decode overwrites s from one raw input report. A length mismatch leaves
// s untouched and returns ErrMalformedReport.
func (s *inputState) decode(d *Descriptor, report []byte) error {
	if len(report) != d.Input.ReportLen {
		return fmt.Errorf("%w: got %d bytes, want %d",
			ErrMalformedReport, len(report), d.Input.ReportLen)
	}
	for i := range s.keys {
		s.keys[i] = report[d.Input.KeyOffset+i] != 0
	}
	for i := range s.dialDown {
		s.dialDown[i] = report[d.Input.DialPressOffset+i] != 0
	}
	for i := range s.dialPos {
		s.dialPos[i] = int(report[d.Input.DialPosOffset+i])
	}
	return nil
}

// diff emits one event per changed element, keys first, then dials, in
// ascending index order. Within one dial a press change is emitted before
// a rotation. It is a pure function of the two snapshots.
func diff(d *Descriptor, prev, cur *inputState) []Event {
	var events []Event
	for i := range cur.keys {
		switch {
		case cur.keys[i] && !prev.keys[i]:
			events = append(events, Event{Type: KeyDown, Index: i})
		case !cur.keys[i] && prev.keys[i]:
			events = append(events, Event{Type: KeyUp, Index: i})
		}
	}
	for i := range cur.dialDown {
		switch {
		case cur.dialDown[i] && !prev.dialDown[i]:
			events = append(events, Event{Type: DialPress, Index: i})
		case !cur.dialDown[i] && prev.dialDown[i]:
			events = append(events, Event{Type: DialRelease, Index: i})
		}
		if delta := dialDelta(prev.dialPos[i], cur.dialPos[i], d.Input.DialWrap); delta != 0 {
			events = append(events, Event{Type: DialRotate, Index: i, Delta: delta})
		}
	}
	return events
}

// dialDelta is the signed position change, normalized into
// (-wrap/2, wrap/2] when the dial position wraps at a modulus.
func dialDelta(prev, cur, wrap int) int {
	delta := cur - prev
	if wrap > 0 {
		half := wrap / 2
		if delta > half {
			delta -= wrap
		} else if delta <= -half {
			delta += wrap
		}
	}
	return delta
}
