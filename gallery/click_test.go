package gallery

import (
	"errors"
	"testing"
	"time"
)

const testWindow = 30 * time.Millisecond

func TestClick_OpensEditorAfterWindow(t *testing.T) {
	h := newHarness(t)
	names := h.addImages(1)
	editor := &fakeEditor{opened: make(chan string, 1)}
	h.open(Config{Editor: editor, ClickWindow: testWindow})

	if err := h.do(func() error { return h.g.Click(names[0]) }); err != nil {
		t.Fatalf("Click() error = %v", err)
	}

	select {
	case path := <-editor.opened:
		var want string
		h.do(func() error {
			img, _ := h.g.Image(names[0])
			want = img.Path
			return nil
		})
		if path != want {
			t.Errorf("editor opened %q, want %q", path, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("editor was not opened")
	}
}

func TestDoubleClick_CancelsSingleClick(t *testing.T) {
	h := newHarness(t)
	names := h.addImages(1)
	editor := &fakeEditor{opened: make(chan string, 1)}
	h.open(Config{Editor: editor, ClickWindow: testWindow})

	err := h.do(func() error {
		if err := h.g.Click(names[0]); err != nil {
			return err
		}
		return h.g.DoubleClick(names[0])
	})
	if err != nil {
		t.Fatalf("Click/DoubleClick error = %v", err)
	}

	select {
	case img := <-h.events.edits:
		if img.Name != names[0] {
			t.Errorf("OnEditComment(%q), want %q", img.Name, names[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("comment prompt not requested")
	}

	select {
	case path := <-editor.opened:
		t.Errorf("editor opened %q after double click", path)
	case <-time.After(4 * testWindow):
	}
}

func TestClick_WithoutEditorReportsError(t *testing.T) {
	h := newHarness(t)
	names := h.addImages(1)
	h.open(Config{ClickWindow: testWindow})

	h.do(func() error { return h.g.Click(names[0]) })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.events.mu.Lock()
		n := len(h.events.errs)
		h.events.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("no OnError for missing editor")
}

func TestClick_UnknownImage(t *testing.T) {
	h := newHarness(t)
	h.open(Config{ClickWindow: testWindow})

	err := h.do(func() error { return h.g.Click("nope.png") })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Click() error = %v, want ErrNotFound", err)
	}
}
