//go:build !windows

package launcher

import (
	"errors"
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the command in its own process group so the
// children it spawns (reloader, workers) can be signalled together.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// signalProcessGroup delivers sig to the command's whole process group.
// A group that no longer exists is not an error.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid

	pgid, err := syscall.Getpgid(pid)
	if err != nil || pgid <= 0 {
		// Leader already reaped; with Setpgid the group id equals its pid
		pgid = pid
	}
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// execProcess replaces the current process image
func execProcess(argv0 string, argv []string, env []string) error {
	return syscall.Exec(argv0, argv, env)
}
