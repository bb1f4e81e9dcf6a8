package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// AlreadyOwnedError reports that another live process holds a session's lock.
type AlreadyOwnedError struct {
	Path string
	PID  int
}

func (e *AlreadyOwnedError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("session is already in use by process %d (lock %s)", e.PID, e.Path)
	}
	return fmt.Sprintf("session is already in use by another process (lock %s)", e.Path)
}

// dirLock is an OS advisory lock on the session's lock sentinel. The kernel
// drops the lock when the owner dies, so a leftover sentinel is never stale;
// the recorded pid is for error messages and debugging only.
type dirLock struct {
	fl *flock.Flock
}

func acquireDirLock(path string) (*dirLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	if !locked {
		return nil, &AlreadyOwnedError{Path: path, PID: readLockPID(path)}
	}
	// best effort; the flock itself is authoritative
	_ = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
	return &dirLock{fl: fl}, nil
}

func (l *dirLock) release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}

func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	if !pidAlive(pid) {
		return 0
	}
	return pid
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
