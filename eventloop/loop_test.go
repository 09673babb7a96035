package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		l.Wait()
	})
	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	var n int
	if err := l.Call(context.Background(), func() error {
		n = len(got)
		return nil
	}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if n != 50 {
		t.Fatalf("expected 50 tasks, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran out of order (got %d)", i, v)
		}
	}
}

func TestLoop_CallReturnsError(t *testing.T) {
	l := startLoop(t)
	want := errors.New("boom")

	if err := l.Call(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestLoop_CallSerializesConcurrentCallers(t *testing.T) {
	l := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Call(context.Background(), func() error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	if counter != 1000 {
		t.Errorf("expected 1000, got %d", counter)
	}
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("bad task") })

	if err := l.Call(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("loop should survive a panicking task: %v", err)
	}

	if err := l.Call(context.Background(), func() error { panic("bad call") }); err == nil {
		t.Error("expected error from panicking call")
	}
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := New()
	ctx := context.Background()
	go l.Run(ctx)
	l.Stop()
	l.Wait()

	if l.Post(func() {}) {
		t.Error("Post should fail after Stop")
	}
	if err := l.Call(ctx, func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestLoop_AfterFunc(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_AfterFuncStopped(t *testing.T) {
	l := startLoop(t)

	ran := false
	timer := l.AfterFunc(20*time.Millisecond, func() { ran = true })
	if !timer.Stop() {
		t.Error("expected Stop to report a pending timer")
	}

	time.Sleep(50 * time.Millisecond)
	l.Call(context.Background(), func() error { return nil })
	if ran {
		t.Error("stopped timer must not run")
	}
}

func TestLoop_AfterFuncStoppedWhileQueued(t *testing.T) {
	l := startLoop(t)

	ran := false
	var timer *Timer
	timerSet := make(chan struct{})

	l.Post(func() {
		<-timerSet
		// The timer fires and queues its task behind this one
		time.Sleep(20 * time.Millisecond)
		timer.Stop()
	})
	timer = l.AfterFunc(time.Millisecond, func() { ran = true })
	close(timerSet)

	l.Call(context.Background(), func() error { return nil })
	if ran {
		t.Error("timer stopped on the loop before running must be skipped")
	}
}
