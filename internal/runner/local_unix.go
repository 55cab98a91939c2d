//go:build unix

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// reapPollInterval is how often reapGroup checks for survivors.
const reapPollInterval = 20 * time.Millisecond

// setProcessGroup makes the step the leader of a new process group whose
// id is the step's pid.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptGroup(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGINT)
}

func killGroup(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}

// reapGroup waits until no process of the step's group is left or the
// deadline passes, then kills whatever remains.
func reapGroup(p *os.Process, deadline time.Time) {
	for groupAlive(p.Pid) && time.Now().Before(deadline) {
		time.Sleep(reapPollInterval)
	}
	if groupAlive(p.Pid) {
		_ = killGroup(p)
	}
}

// groupAlive reports whether any process is left in group pgid. Signal 0
// checks for existence without delivering anything.
func groupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
