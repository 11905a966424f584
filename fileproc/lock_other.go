//go:build !unix

package fileproc

import "os"

// lockFile is a no-op placeholder on non-POSIX platforms; MED's lock
// discipline is defined in terms of POSIX range locks
// and has no portable equivalent worth faking here.
func lockFile(f *os.File, mode LockMode) error { return nil }

func unlockFile(f *os.File) {}
