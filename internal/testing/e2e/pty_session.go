package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/penwyp/go-claude-voice/internal/core/normalize"
)

// PTYSession runs a binary inside a pseudo-terminal and captures what it
// draws, the way a user's terminal would see it.
type PTYSession struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	cancel context.CancelFunc

	outputLock sync.RWMutex
	output     bytes.Buffer

	done     chan struct{}
	exitCode int
	waitErr  error
}

// PTYConfig contains configuration for a PTY session
type PTYConfig struct {
	// Command and arguments to run
	Command string
	Args    []string

	// Working directory
	WorkDir string

	// Environment variables added to the current environment
	Env []string

	// Terminal size
	Rows uint16
	Cols uint16

	// Timeout for the entire session
	Timeout time.Duration
}

// StartPTYSession starts config.Command in a new pseudo-terminal.
func StartPTYSession(config *PTYConfig) (*PTYSession, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Rows == 0 {
		config.Rows = 24
	}
	if config.Cols == 0 {
		config.Cols = 80
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	if config.WorkDir != "" {
		cmd.Dir = config.WorkDir
	}
	cmd.Env = append(os.Environ(), config.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: config.Rows, Cols: config.Cols})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &PTYSession{
		cmd:    cmd,
		ptmx:   ptmx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.capture()
	return s, nil
}

func (s *PTYSession) capture() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.outputLock.Lock()
			s.output.Write(buf[:n])
			s.outputLock.Unlock()
		}
		if err != nil {
			break
		}
	}

	s.waitErr = s.cmd.Wait()
	s.exitCode = s.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if errors.As(s.waitErr, &exitErr) {
		s.waitErr = nil
	}
	close(s.done)
}

// SendString types str into the terminal.
func (s *PTYSession) SendString(str string) error {
	_, err := s.ptmx.Write([]byte(str))
	return err
}

// Signal delivers sig to the process.
func (s *PTYSession) Signal(sig os.Signal) error {
	return s.cmd.Process.Signal(sig)
}

// Output returns everything drawn so far, escape sequences included.
func (s *PTYSession) Output() string {
	s.outputLock.RLock()
	defer s.outputLock.RUnlock()
	return s.output.String()
}

// CleanOutput returns the output with escape sequences removed.
func (s *PTYSession) CleanOutput() string {
	return normalize.Strip(s.Output())
}

// WaitForText waits for text to appear in the cleaned output.
func (s *PTYSession) WaitForText(text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(s.CleanOutput(), text) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for text: %s", text)
}

// Wait blocks until the process exits and returns its exit code.
func (s *PTYSession) Wait(timeout time.Duration) (int, error) {
	select {
	case <-s.done:
		return s.exitCode, s.waitErr
	case <-time.After(timeout):
		return -1, fmt.Errorf("process still running after %v", timeout)
	}
}

// Close kills the process if it is still running and releases the PTY.
func (s *PTYSession) Close() {
	s.cancel()
	s.ptmx.Close()
	<-s.done
}
