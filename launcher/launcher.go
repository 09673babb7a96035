// Package launcher runs the external programs the daemon hands images and
// documents to: the image editor and the document opener.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/kballard/go-shellquote"
)

var ErrNoCommand = errors.New("no command configured")

// Command is a configured command line. The file path is appended as the
// last argument.
type Command struct {
	Line string
}

// DefaultEditor returns the platform's stock image editor command.
func DefaultEditor() string {
	if runtime.GOOS == "windows" {
		return "mspaint"
	}
	return DefaultOpener()
}

// DefaultOpener returns the platform's "open with default app" command.
func DefaultOpener() string {
	switch runtime.GOOS {
	case "windows":
		return "cmd /c start \"\""
	case "darwin":
		return "open"
	default:
		return "xdg-open"
	}
}

func (c Command) build(ctx context.Context, path string) (*exec.Cmd, error) {
	words, err := shellquote.Split(c.Line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", c.Line, err)
	}
	if len(words) == 0 {
		return nil, ErrNoCommand
	}
	program, err := exec.LookPath(words[0])
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", words[0], err)
	}
	args := append(words[1:], path)
	return exec.CommandContext(ctx, program, args...), nil
}

// Edit runs the command on path and waits for it to exit.
func (c Command) Edit(ctx context.Context, path string) error {
	cmd, err := c.build(ctx, path)
	if err != nil {
		return err
	}
	slog.Info("launching editor", "cmd", cmd.Path, "file", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", cmd.Path, err, out)
		}
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return nil
}

// Start runs the command on path without waiting for it.
func (c Command) Start(path string) error {
	cmd, err := c.build(context.Background(), path)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	slog.Info("opened file", "cmd", cmd.Path, "file", path, "pid", cmd.Process.Pid)
	go cmd.Wait()
	return nil
}
