package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPoolDo(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	data, err := p.Do(context.Background(), func() ([]byte, error) {
		return []byte{1, 2, 3}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Errorf("got %v", data)
	}

	wantErr := errors.New("boom")
	if _, err := p.Do(context.Background(), func() ([]byte, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("Do = %v, want %v", err, wantErr)
	}
}

func TestPoolConcurrent(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := p.Do(context.Background(), func() ([]byte, error) {
				return []byte{byte(i)}, nil
			})
			if err != nil || len(data) != 1 || data[0] != byte(i) {
				t.Errorf("job %d: got %v, %v", i, data, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestPoolDoAfterClose(t *testing.T) {
	p := NewPool(1)
	p.Close()

	_, err := p.Do(context.Background(), func() ([]byte, error) {
		t.Error("job ran on a closed pool")
		return nil, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Do = %v, want ErrClosed", err)
	}
}

func TestPoolCancelledWait(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	go p.Do(context.Background(), func() ([]byte, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	// The single worker is busy; a cancelled context must not wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Do(ctx, func() ([]byte, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v, want DeadlineExceeded", err)
	}
	close(release)
}
