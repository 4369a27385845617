// PID-file locking on Windows via LockFileEx/UnlockFileEx.
//
// Windows has no flock(2), so the single-daemon-per-user guarantee is kept
// with the Win32 LockFileEx API from [golang.org/x/sys/windows] instead.
// LOCKFILE_FAIL_IMMEDIATELY gives the same fail-fast semantics as LOCK_NB
// on Unix: a second crashwatch start sees an error, not a hang.

//go:build windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// lockFile takes an exclusive fail-fast lock on the open PID file with
// LockFileEx. An immediate error means another crashwatch process already
// owns the file, which start-up reports as a running instance. Only the
// first byte is locked (length 1, offset 0); the lock is mutual exclusion
// for the daemon, not protection of the PID file's contents.
func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1, 0,
		ol,
	); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile releases the byte range locked by lockFile via UnlockFileEx
// during shutdown. Closing the handle would release it too; the explicit
// call keeps teardown symmetric with lockFile.
func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(
		windows.Handle(f.Fd()),
		0,
		1, 0,
		ol,
	); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
