//go:build unix

package source

import (
	"os"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/penwyp/go-claude-voice/internal/util"
)

// followWindowSize copies the size of tty to ptmx now and on every SIGWINCH.
func followWindowSize(tty, ptmx *os.File) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	go func() {
		for range ch {
			if err := pty.InheritSize(tty, ptmx); err != nil {
				util.LogDebugf("Failed to resize PTY: %v", err)
			}
		}
	}()
	ch <- unix.SIGWINCH
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
