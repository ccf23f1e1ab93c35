package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ParentProcess describes the process that started this one, read from
// /proc. The owner is the owner of the /proc entry, which is the real uid
// and gid of the parent.
func ParentProcess() (*Process, error) {
	return processInfo("/proc", os.Getppid())
}

func processInfo(procRoot string, pid int) (*Process, error) {
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	exe, err := os.Readlink(filepath.Join(dir, "exe"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable of process %d: %w", pid, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat process %d: %w", pid, err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("no owner information for process %d", pid)
	}
	return &Process{PID: pid, Exe: exe, UID: stat.Uid, GID: stat.Gid}, nil
}

// DisableCoreDumps marks the process as not dumpable so secrets held in
// memory do not end up in core files and cannot be read through ptrace by
// other processes of the same user.
func DisableCoreDumps() error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("failed to disable core dumps: %w", err)
	}
	return nil
}
