package deck

import "fmt"

// EventType tells what changed on the device.
type EventType int

const (
	KeyDown EventType = iota
	KeyUp
	DialRotate
	DialPress
	DialRelease
)

func (t EventType) String() string {
	switch t {
	case KeyDown:
		return "KeyDown"
	case KeyUp:
		return "KeyUp"
	case DialRotate:
		return "DialRotate"
	case DialPress:
		return "DialPress"
	case DialRelease:
		return "DialRelease"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is one discrete input change. Index counts keys left-to-right,
// top-to-bottom for key events and dials from zero for dial events.
// Delta is the signed rotation step count and is zero for everything but
// DialRotate.
type Event struct {
	Type  EventType
	Index int
	Delta int
}

func (e Event) String() string {
	if e.Type == DialRotate {
		return fmt.Sprintf("%s(%d, %+d)", e.Type, e.Index, e.Delta)
	}
	return fmt.Sprintf("%s(%d)", e.Type, e.Index)
}
