package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
}

func TestCommand_EditRunsAndWaits(t *testing.T) {
	skipOnWindows(t)
	target := filepath.Join(t.TempDir(), "image.png")
	os.WriteFile(target, nil, 0644)

	c := Command{Line: `sh -c 'sleep 0.1; touch "$1.edited"' sh`}
	if err := c.Edit(context.Background(), target); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if _, err := os.Stat(target + ".edited"); err != nil {
		t.Errorf("command did not finish before Edit returned: %v", err)
	}
}

func TestCommand_EditReportsFailure(t *testing.T) {
	skipOnWindows(t)
	c := Command{Line: `sh -c 'echo broken >&2; exit 3' sh`}
	err := c.Edit(context.Background(), "x.png")
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Edit() error = %v, want output included", err)
	}
}

func TestCommand_Invalid(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrNoCommand},
		{"   ", ErrNoCommand},
	}
	for _, tt := range tests {
		if err := (Command{Line: tt.line}).Start("x"); !errors.Is(err, tt.want) {
			t.Errorf("Start() with %q error = %v, want %v", tt.line, err, tt.want)
		}
	}

	if err := (Command{Line: `"unterminated`}).Start("x"); err == nil {
		t.Error("Start() with unbalanced quotes error = nil")
	}
	if err := (Command{Line: "definitely-not-a-real-program-xyz"}).Start("x"); err == nil {
		t.Error("Start() with unknown program error = nil")
	}
}

func TestCommand_StartDoesNotWait(t *testing.T) {
	skipOnWindows(t)
	c := Command{Line: `sh -c 'sleep 2' sh`}
	start := time.Now()
	if err := c.Start("x"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Start() took %v, want immediate return", elapsed)
	}
}
