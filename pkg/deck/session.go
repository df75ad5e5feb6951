package deck

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/tannerhall/godeck/internal/render"
	"github.com/tannerhall/godeck/pkg/hid"
)

type stage int

const (
	stageConnected stage = iota
	stageDisconnecting
	stageClosed
)

// Session is the live, exclusive binding between this runtime and one
// connected device. A polling goroutine decodes input reports into events
// while writers share the output channel through a single guard held for
// one full chunk sequence at a time.
type Session struct {
	desc *Descriptor
	dev  hid.Device
	log  *slog.Logger
	pool *render.Pool

	events chan Event

	// writeMu serializes chunk sequences. It is acquired once per command
	// and held until the command's last report has been accepted by the
	// transport, so two logical writes can never interleave on the wire.
	writeMu sync.Mutex

	mu    stateMu
	done  chan struct{}
	dOnce sync.Once // closes done
	cOnce sync.Once // closes the device handle

	prev, cur *inputState
}

type stateMu struct {
	sync.Mutex
	stage stage
	lost  error // terminal transport error; nil on voluntary close
}

func newSession(desc *Descriptor, dev hid.Device, log *slog.Logger, pool *render.Pool) *Session {
	s := &Session{
		desc:   desc,
		dev:    dev,
		log:    log,
		pool:   pool,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		prev:   newInputState(desc),
		cur:    newInputState(desc),
	}
	go s.pollLoop()
	return s
}

// Descriptor returns the capability descriptor this session was opened
// with. It must not be mutated.
func (s *Session) Descriptor() *Descriptor { return s.desc }

// Events returns the session's input event stream, ordered by detection
// time. The channel is closed once the session reaches its terminal
// state; a lost device ends the stream without an error value.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) pollLoop() {
	defer close(s.events)

	buf := make([]byte, s.desc.Input.ReportLen)
	for {
		n, err := s.dev.Read(buf)
		if err != nil {
			if s.closing() {
				return
			}
			s.fail(err)
			return
		}

		if err := s.cur.decode(s.desc, buf[:n]); err != nil {
			// Tick dropped; the previous snapshot stays authoritative.
			s.log.Warn("dropping input report", slog.Any("error", err))
			continue
		}

		for _, ev := range diff(s.desc, s.prev, s.cur) {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}

		// The new snapshot becomes the baseline only after every event
		// for this tick has been emitted.
		s.prev, s.cur = s.cur, s.prev
	}
}

func (s *Session) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.stage != stageConnected
}

// fail records a terminal transport error, releases the handle and wakes
// anything blocked on the session.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.mu.stage != stageClosed {
		s.mu.stage = stageClosed
		s.mu.lost = err
	}
	s.mu.Unlock()

	s.log.Error("device lost", slog.String("device", s.desc.Name), slog.Any("error", err))
	s.dOnce.Do(func() { close(s.done) })
	s.cOnce.Do(func() { s.dev.Close() })
}

// writeErr reports why writes are no longer possible, or nil while the
// session is connected.
func (s *Session) writeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.mu.stage == stageConnected:
		return nil
	case s.mu.lost != nil:
		return fmt.Errorf("%w: %v", ErrDeviceLost, s.mu.lost)
	default:
		return ErrSessionClosed
	}
}

// Write transmits one command and returns once its full chunk sequence
// has been accepted by the transport. Concurrent calls are serialized in
// acquisition order; a sequence that has started is never abandoned by
// caller-side cancellation, it either completes or fails with
// ErrDeviceLost.
func (s *Session) Write(ctx context.Context, cmd Command) error {
	reports, err := s.buildReports(ctx, cmd)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.writeErr(); err != nil {
		return err
	}
	for i, report := range reports {
		s.log.Debug("write report",
			slog.Int("seq", i), slog.String("bytes", hexDump(report[:min(len(report), 16)])))
		if _, err := s.dev.Write(report); err != nil {
			s.fail(err)
			return fmt.Errorf("%w: report %d of %d: %v", ErrDeviceLost, i+1, len(reports), err)
		}
	}
	return nil
}

// buildReports turns a command into its ordered report sequence. Image
// encoding is CPU-bound and runs on the render pool, before the write
// guard is taken.
func (s *Session) buildReports(ctx context.Context, cmd Command) ([][]byte, error) {
	cs := s.desc.Commands
	switch c := cmd.(type) {
	case WriteImage:
		if c.Key < 0 || c.Key >= s.desc.Keys() {
			return nil, fmt.Errorf("%w: %d of %d keys", ErrInvalidKey, c.Key, s.desc.Keys())
		}
		payload, err := s.pool.Do(ctx, func() ([]byte, error) {
			return renderPayload(s.desc, c.Image)
		})
		if errors.Is(err, render.ErrClosed) {
			// The manager owning the pool is gone; the session is over.
			return nil, ErrSessionClosed
		}
		if err != nil {
			return nil, err
		}
		var reports [][]byte
		if len(cs.ImageStart) > 0 {
			start, err := imageStartReport(s.desc, c.Key, len(payload))
			if err != nil {
				return nil, err
			}
			reports = append(reports, start)
		}
		for _, chunk := range frameChunks(s.desc, c.Key, payload) {
			reports = append(reports, chunk.data)
		}
		return reports, nil

	case SetBrightness:
		percent := c.Percent
		if percent < 0 {
			percent = 0
		} else if percent > 100 {
			percent = 100
		}
		return s.singleReport(cs.Brightness, byte(percent))

	case ClearKey:
		if c.Key < 0 || c.Key >= s.desc.Keys() {
			return nil, fmt.Errorf("%w: %d of %d keys", ErrInvalidKey, c.Key, s.desc.Keys())
		}
		return s.singleReport(cs.ClearKey, byte(c.Key+s.desc.KeyBase))

	case ClearAll:
		return s.singleReport(cs.ClearAll)

	case Flush:
		if len(cs.Flush) == 0 {
			return nil, nil // model applies image writes immediately
		}
		return s.singleReport(cs.Flush)

	case KeepAlive:
		return s.singleReport(cs.KeepAlive)

	case Sleep:
		return s.singleReport(cs.Sleep)

	case Shutdown:
		if len(cs.Shutdown) == 0 {
			return nil, ErrUnsupported
		}
		reports := make([][]byte, 0, len(cs.Shutdown))
		for _, template := range cs.Shutdown {
			report, err := commandReport(s.desc, template)
			if err != nil {
				return nil, err
			}
			reports = append(reports, report)
		}
		return reports, nil

	default:
		return nil, fmt.Errorf("%w: unknown command %T", ErrUnsupported, cmd)
	}
}

func (s *Session) singleReport(template []byte, args ...byte) ([][]byte, error) {
	report, err := commandReport(s.desc, template, args...)
	if err != nil {
		return nil, err
	}
	return [][]byte{report}, nil
}

// SetImage renders img onto key's display.
func (s *Session) SetImage(ctx context.Context, key int, img image.Image) error {
	return s.Write(ctx, WriteImage{Key: key, Image: img})
}

// SetBrightness sets the backlight brightness, clamped to 0-100.
func (s *Session) SetBrightness(ctx context.Context, percent int) error {
	return s.Write(ctx, SetBrightness{Percent: percent})
}

// Clear blanks every key display.
func (s *Session) Clear(ctx context.Context) error {
	return s.Write(ctx, ClearAll{})
}

// Flush commits buffered image writes on models that require it.
func (s *Session) Flush(ctx context.Context) error {
	return s.Write(ctx, Flush{})
}

// Disconnect stops the poll loop, lets an in-flight chunk sequence finish
// and releases the device handle. It is idempotent; calling it on a
// closed session is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.mu.stage == stageClosed {
		s.mu.Unlock()
		return nil
	}
	s.mu.stage = stageDisconnecting
	s.mu.Unlock()

	// Wait for the in-flight write, if any. Partial chunk sequences are
	// never abandoned; the device's reassembly state must stay sound.
	s.writeMu.Lock()
	s.mu.Lock()
	s.mu.stage = stageClosed
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.dOnce.Do(func() { close(s.done) })

	var err error
	s.cOnce.Do(func() { err = s.dev.Close() })
	return err
}
