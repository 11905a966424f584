//go:build unix

package fileproc

import (
	"os"
	"syscall"
)

// lockFile acquires a whole-file advisory lock via flock(2). The lock
// range is always the entire file, so flock's whole-file semantics give
// the same guarantee as an fcntl(F_SETLK) range lock without the range
// bookkeeping.
func lockFile(f *os.File, mode LockMode) error {
	how := syscall.LOCK_SH
	if mode == LockWrite {
		how = syscall.LOCK_EX
	}
	return syscall.Flock(int(f.Fd()), how)
}

func unlockFile(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
