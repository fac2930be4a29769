//go:build !unix

package voice

func (o *Orchestrator) notifyStop() (stop func()) {
	return func() {}
}
