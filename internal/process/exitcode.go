package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// exitStatus extracts the exit status from a Wait() error.
// A process killed by a signal reports 128 + signal number.
func exitStatus(err error) Exit {
	if err == nil {
		return Exit{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return Exit{Code: 128 + int(status.Signal()), Signaled: true}
			}
			return Exit{Code: status.ExitStatus()}
		}
		return Exit{Code: exitErr.ExitCode()}
	}

	return Exit{Code: 1}
}

var timeoutExit = Exit{Code: TimeoutExitCode, TimedOut: true}

// setProcessGroup puts the child in its own process group so the whole
// tree can be killed on timeout.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killGroup sends SIGKILL to the child's process group. The child leads
// its own group (Setpgid), so the group id is its pid and stays valid
// after the leader has exited and been reaped.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		// No group members left; make sure the leader itself is gone.
		if kerr := cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			return kerr
		}
		return nil
	}
	return err
}
