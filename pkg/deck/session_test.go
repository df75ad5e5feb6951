package deck

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tannerhall/godeck/pkg/hid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession binds a session to a mock transport. The manager's init
// sequence writes are dropped from the mock's record so tests see only
// their own traffic.
func newTestSession(t *testing.T, d *Descriptor) (*Session, *hid.MockDevice) {
	t.Helper()

	dev := hid.NewMockDevice()
	m := NewManager(nil, testLogger())
	t.Cleanup(m.Close)

	sess, err := m.Attach(dev, d)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Disconnect() })

	if got := len(dev.Writes()); got != len(d.Commands.Init) {
		t.Fatalf("init wrote %d reports, want %d", got, len(d.Commands.Init))
	}
	return sess, dev
}

func collectEvents(ch <-chan Event, n int, timeout time.Duration) ([]Event, error) {
	deadline := time.After(timeout)
	var out []Event
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out, errors.New("event stream ended early")
			}
			out = append(out, ev)
		case <-deadline:
			return out, errors.New("timeout waiting for events")
		}
	}
	return out, nil
}

func TestSessionEvents(t *testing.T) {
	sess, dev := newTestSession(t, testDescriptor())

	dev.Emit(inputReport([6]byte{}, [2]byte{}, [2]byte{}))
	dev.Emit(inputReport([6]byte{1}, [2]byte{}, [2]byte{}))
	dev.Emit(inputReport([6]byte{1}, [2]byte{}, [2]byte{}))
	dev.Emit(inputReport([6]byte{}, [2]byte{}, [2]byte{}))

	got, err := collectEvents(sess.Events(), 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{{Type: KeyDown, Index: 0}, {Type: KeyUp, Index: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSessionDropsMalformedTick(t *testing.T) {
	sess, dev := newTestSession(t, testDescriptor())

	dev.Emit(inputReport([6]byte{1}, [2]byte{}, [2]byte{}))
	dev.Emit([]byte{0x01, 0x01}) // wrong length; tick dropped
	dev.Emit(inputReport([6]byte{}, [2]byte{}, [2]byte{}))

	got, err := collectEvents(sess.Events(), 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{{Type: KeyDown, Index: 0}, {Type: KeyUp, Index: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSessionDeviceLost(t *testing.T) {
	sess, dev := newTestSession(t, testDescriptor())

	dev.Emit(inputReport([6]byte{1}, [2]byte{}, [2]byte{}))
	if _, err := collectEvents(sess.Events(), 1, time.Second); err != nil {
		t.Fatal(err)
	}

	dev.FailRead(io.ErrUnexpectedEOF)

	// The stream must end cleanly, not with an error value.
	select {
	case ev, ok := <-sess.Events():
		if ok {
			t.Fatalf("unexpected event after device loss: %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event stream did not end after read failure")
	}

	err := sess.Write(context.Background(), SetBrightness{Percent: 50})
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Write after loss = %v, want ErrDeviceLost", err)
	}
}

func TestSessionWriteFailureIsTerminal(t *testing.T) {
	sess, dev := newTestSession(t, testDescriptor())

	dev.FailWrites(io.ErrClosedPipe)
	err := sess.Write(context.Background(), ClearAll{})
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Write = %v, want ErrDeviceLost", err)
	}

	select {
	case _, ok := <-sess.Events():
		if ok {
			t.Fatal("event after write failure")
		}
	case <-time.After(time.Second):
		t.Fatal("event stream still open after write failure")
	}
}

func TestSessionDisconnectIdempotent(t *testing.T) {
	sess, _ := newTestSession(t, testDescriptor())

	if err := sess.Disconnect(); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if err := sess.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}

	select {
	case _, ok := <-sess.Events():
		if ok {
			t.Fatal("event after disconnect")
		}
	case <-time.After(time.Second):
		t.Fatal("event stream still open after disconnect")
	}

	if err := sess.Write(context.Background(), ClearAll{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Write after disconnect = %v, want ErrSessionClosed", err)
	}
}

func TestSessionWriteCommands(t *testing.T) {
	d := testDescriptor()
	sess, dev := newTestSession(t, d)
	ctx := context.Background()

	if err := sess.SetBrightness(ctx, 130); err != nil { // clamped to 100
		t.Fatal(err)
	}
	if err := sess.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sess.Write(ctx, ClearKey{Key: 2}); err != nil {
		t.Fatal(err)
	}

	writes := dev.Writes()[len(d.Commands.Init):]
	if len(writes) != 3 {
		t.Fatalf("got %d reports, want 3", len(writes))
	}
	if !bytes.Equal(writes[0][:3], []byte{0x03, 0x08, 100}) {
		t.Errorf("brightness report %s", hexDump(writes[0][:3]))
	}
	if !bytes.Equal(writes[1][:2], []byte{0x03, 0x0b}) {
		t.Errorf("clear report %s", hexDump(writes[1][:2]))
	}
	if !bytes.Equal(writes[2][:3], []byte{0x03, 0x0a, 3}) { // key 2, numbered from one
		t.Errorf("clear key report %s", hexDump(writes[2][:3]))
	}
}

func TestSessionFlushWithoutTemplate(t *testing.T) {
	d := testDescriptor()
	d.Commands.Flush = nil
	sess, dev := newTestSession(t, d)

	if err := sess.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(dev.Writes()); got != len(d.Commands.Init) {
		t.Errorf("flush on immediate-mode model wrote %d reports", got-len(d.Commands.Init))
	}
}

func TestSessionShutdownSequence(t *testing.T) {
	d := testDescriptor()
	d.Commands.Shutdown = [][]byte{{0x03, 0x0a, 0xFF}, {0x03, 0x0d}}
	sess, dev := newTestSession(t, d)

	if err := sess.Write(context.Background(), Shutdown{}); err != nil {
		t.Fatal(err)
	}

	writes := dev.Writes()[len(d.Commands.Init):]
	if len(writes) != 2 {
		t.Fatalf("shutdown wrote %d reports, want 2", len(writes))
	}
	if !bytes.Equal(writes[0][:3], []byte{0x03, 0x0a, 0xFF}) {
		t.Errorf("first shutdown report %s", hexDump(writes[0][:3]))
	}
	if !bytes.Equal(writes[1][:2], []byte{0x03, 0x0d}) {
		t.Errorf("second shutdown report %s", hexDump(writes[1][:2]))
	}
	for _, w := range writes {
		if len(w) != d.CmdReportLen {
			t.Errorf("shutdown report length %d, want %d", len(w), d.CmdReportLen)
		}
	}
}

func TestSessionShutdownUndeclared(t *testing.T) {
	sess, _ := newTestSession(t, testDescriptor())

	if err := sess.Write(context.Background(), Shutdown{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Write(Shutdown) = %v, want ErrUnsupported", err)
	}
}

func TestSessionUnsupportedCommand(t *testing.T) {
	d := testDescriptor()
	d.Commands.Sleep = nil
	sess, _ := newTestSession(t, d)

	if err := sess.Write(context.Background(), Sleep{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Write(Sleep) = %v, want ErrUnsupported", err)
	}
}

func TestSessionInvalidKey(t *testing.T) {
	sess, _ := newTestSession(t, smallDescriptor())

	err := sess.SetImage(context.Background(), 6, solidImage(8, 4, color.White))
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("SetImage(6) = %v, want ErrInvalidKey", err)
	}
}

func TestSessionWriteAfterManagerClose(t *testing.T) {
	dev := hid.NewMockDevice()
	m := NewManager(nil, testLogger())
	sess, err := m.Attach(dev, smallDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Disconnect() })

	m.Close()

	err = sess.SetImage(context.Background(), 0, solidImage(8, 4, color.White))
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SetImage after manager close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionWriteImage(t *testing.T) {
	d := smallDescriptor()
	sess, dev := newTestSession(t, d)

	if err := sess.SetImage(context.Background(), 1, solidImage(8, 4, color.White)); err != nil {
		t.Fatal(err)
	}

	writes := dev.Writes()[len(d.Commands.Init):]
	// announce + ceil(64/56) = 2 chunks
	if len(writes) != 3 {
		t.Fatalf("got %d reports, want 3", len(writes))
	}
	if !bytes.Equal(writes[0][:2], d.Commands.ImageStart) {
		t.Errorf("first report is not the image announce: %s", hexDump(writes[0][:2]))
	}
	if writes[0][d.Commands.ImageStartKeyOffset] != 2 {
		t.Errorf("announced key = %d, want 2", writes[0][d.Commands.ImageStartKeyOffset])
	}
	if writes[1][d.Header.FinalOffset] != 0 || writes[2][d.Header.FinalOffset] != 1 {
		t.Error("final flag not on the last chunk alone")
	}
}

func TestSessionWriteSerialization(t *testing.T) {
	// Two concurrent image writes must never interleave their chunk
	// sequences at the transport boundary.
	d := smallDescriptor()
	sess, dev := newTestSession(t, d)
	dev.WriteDelay = 200 * time.Microsecond

	var wg sync.WaitGroup
	for _, key := range []int{0, 1} {
		wg.Add(1)
		go func(key int) {
			defer wg.Done()
			if err := sess.SetImage(context.Background(), key, solidImage(8, 4, color.White)); err != nil {
				t.Errorf("key %d: %v", key, err)
			}
		}(key)
	}
	wg.Wait()

	writes := dev.Writes()[len(d.Commands.Init):]
	if len(writes) != 6 { // 2 x (announce + 2 chunks)
		t.Fatalf("got %d reports, want 6", len(writes))
	}

	// Each write's reports carry its wire key; arrival order must be two
	// uninterrupted groups of three.
	keyOf := func(r []byte) byte {
		if bytes.Equal(r[:2], d.Commands.ImageStart) {
			return r[d.Commands.ImageStartKeyOffset]
		}
		return r[d.Header.KeyOffset]
	}
	first := keyOf(writes[0])
	for i, r := range writes[:3] {
		if keyOf(r) != first {
			t.Fatalf("report %d: key %d inside key %d's sequence", i, keyOf(r), first)
		}
	}
	second := keyOf(writes[3])
	if second == first {
		t.Fatalf("second group repeats key %d", first)
	}
	for i, r := range writes[3:] {
		if keyOf(r) != second {
			t.Fatalf("report %d: key %d inside key %d's sequence", i+3, keyOf(r), second)
		}
	}
}

func TestSessionDisconnectDrainsInflightWrite(t *testing.T) {
	d := testDescriptor() // 74-chunk image writes
	sess, dev := newTestSession(t, d)
	dev.WriteDelay = 100 * time.Microsecond

	started := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		close(started)
		writeErr <- sess.SetImage(context.Background(), 0, solidImage(64, 32, color.White))
	}()

	<-started
	// Give the write time to take the guard, then disconnect under it.
	time.Sleep(2 * time.Millisecond)
	if err := sess.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	select {
	case err := <-writeErr:
		// Either the sequence completed before the guard was taken over,
		// or it had not started and was refused. It must not fail midway.
		if err != nil && !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("in-flight write = %v", err)
		}
		if err == nil {
			writes := dev.Writes()[len(d.Commands.Init):]
			if len(writes) != 75 { // announce + 74 chunks
				t.Fatalf("completed write produced %d reports, want 75", len(writes))
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write did not resolve after disconnect")
	}
}
