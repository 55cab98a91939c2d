//go:build !unix

package runner

import (
	"os"
	"os/exec"
	"time"
)

// Without process groups only the step's own process can be signalled.

func setProcessGroup(*exec.Cmd) {}

func interruptGroup(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func reapGroup(*os.Process, time.Time) {}
