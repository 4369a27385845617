// PID-file locking for non-Windows platforms via flock(2).
//
// Only one crashwatch daemon may watch an artifact directory per user, so
// the daemon holds an advisory [syscall.Flock] lock on its PID file for its
// whole lifetime. A second `crashwatch start` sees EWOULDBLOCK and reports
// the running instance instead of corrupting the artifact index.

//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// lockFile takes an exclusive non-blocking flock on the open PID file.
// LOCK_NB makes the call fail immediately with EWOULDBLOCK when another
// crashwatch process holds the lock, which start-up treats as "already
// running" rather than an error worth retrying.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile drops the flock on the PID file during shutdown. Closing the
// descriptor would release it anyway; the explicit unlock keeps teardown
// symmetric with lockFile.
func unlockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
