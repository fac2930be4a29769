//go:build !unix

package speech

import "os/exec"

// killProcessGroupOnCancel keeps the exec default of killing the process.
func killProcessGroupOnCancel(cmd *exec.Cmd) {}
