package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/util"
)

// ErrNoCommand is returned when no command to monitor was given.
var ErrNoCommand = errors.New("no command to run")

// fallbackPaths are tried when the command is not on PATH.
var fallbackPaths = []string{"/usr/local/bin", "/opt/homebrew/bin"}

// FindCommand resolves name on PATH, then in well-known install locations.
func FindCommand(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	for _, dir := range fallbackPaths {
		candidate := dir + string(os.PathSeparator) + name
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("command %q not found", name)
}

// TerminalSource runs a command inside a pseudo-terminal, mirrors its
// output to Stdout and emits every chunk it writes as a RawEvent. Stdin is
// forwarded to the command; a terminal stdin is switched to raw mode for
// the duration of the run.
type TerminalSource struct {
	Command string
	Args    []string
	Env     []string
	Stdin   io.Reader
	Stdout  io.Writer
}

// Run blocks until the command exits and returns its exit code.
func (s *TerminalSource) Run(ctx context.Context, handler Handler) (int, error) {
	if s.Command == "" {
		return -1, ErrNoCommand
	}
	path, err := FindCommand(s.Command)
	if err != nil {
		return -1, err
	}
	stdin := s.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := s.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	cmd := exec.CommandContext(ctx, path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("failed to start %s in PTY: %w", s.Command, err)
	}
	defer ptmx.Close()

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		stopResize := followWindowSize(f, ptmx)
		defer stopResize()

		oldState, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			util.LogWarnf("Failed to switch terminal to raw mode: %v", err)
		} else {
			defer term.Restore(int(f.Fd()), oldState)
		}
	}

	go func() {
		// Ends with the process: writes fail once the PTY is closed
		_, _ = io.Copy(ptmx, stdin)
	}()

	if err := pump(ptmx, stdout, handler); err != nil {
		util.LogWarnf("PTY read failed: %v", err)
	}

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return 0, nil
	case errors.As(waitErr, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("failed to wait for %s: %w", s.Command, waitErr)
	}
}

// pump copies PTY output to stdout and the handler until the PTY closes.
// Linux reports a closed PTY as EIO, which is treated like EOF.
func pump(ptmx io.Reader, stdout io.Writer, handler Handler) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			if _, werr := stdout.Write(buf[:n]); werr != nil {
				util.LogDebugf("Failed to mirror output: %v", werr)
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			handler(model.RawEvent{
				Payload:    payload,
				SourceKind: model.SourceTerminal,
				ReceivedAt: time.Now(),
			})
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
