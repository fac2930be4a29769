//go:build !unix

package source

import (
	"os"

	"github.com/creack/pty"
)

func followWindowSize(tty, ptmx *os.File) (stop func()) {
	_ = pty.InheritSize(tty, ptmx)
	return func() {}
}
