// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/log"
)

// lockName is the advisory lockfile guarding each registry directory.
const lockName = ".lock"

// registryLock is an advisory, per-registry mutual exclusion guard held for the duration of
// any mutating operation. It is a lockfile rather than flock so it behaves identically on
// the in-memory filesystem used by tests.
type registryLock struct {
	path string
}

// lockRegistry acquires the advisory lock for dir. A lock held by a live process is an
// immediate failure; no waiting, consistent with the no-retry policy. A lock left behind by
// a dead process is broken and re-acquired once.
func lockRegistry(dir string) (*registryLock, error) {
	path := dir + string(os.PathSeparator) + lockName

	for attempt := 0; attempt < 2; attempt++ {
		f, err := filesystem.API().OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return &registryLock{path: path}, nil
		}

		if !os.IsExist(err) {
			return nil, errs.NewIO("acquire registry lock", path, err)
		}

		holder := lockHolder(path)
		if holder != 0 && processAlive(holder) {
			return nil, errs.NewIO("acquire registry lock", path,
				fmt.Errorf("registry is locked by process %d", holder))
		}

		log.Warnf("breaking stale registry lock %s (holder %d gone)", path, holder)
		if err := filesystem.API().Remove(path); err != nil {
			return nil, errs.NewIO("break stale registry lock", path, err)
		}
	}

	return nil, errs.NewIO("acquire registry lock", path, os.ErrExist)
}

// release removes the lockfile. Safe to call once per acquisition.
func (l *registryLock) release() {
	if err := filesystem.API().Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Warnf("release registry lock %s: %s", l.path, err)
	}
}

// lockHolder reads the PID recorded in the lockfile, or 0 if unreadable.
func lockHolder(path string) int {
	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// processAlive reports whether the PID refers to a live process, using the conventional
// signal-0 probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
