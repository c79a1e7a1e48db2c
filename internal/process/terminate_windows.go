//go:build windows

package process

import "os"

// Windows has no deliverable SIGTERM for console processes started this
// way, so terminate is a kill.
func terminate(p *os.Process) error {
	return p.Kill()
}
