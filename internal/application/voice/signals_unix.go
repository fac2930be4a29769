//go:build unix

package voice

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/penwyp/go-claude-voice/internal/util"
)

// notifyStop makes SIGUSR1 silence speech, e.g. `pkill -USR1 go-claude-voice`.
func (o *Orchestrator) notifyStop() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				util.LogInfo("SIGUSR1 received, stopping speech")
				o.Stop()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
