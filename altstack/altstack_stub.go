// No-op crash-signal hardening for platforms without rt_sigaction.
//
// The alternate-stack flag is a Linux concern in this project: the fuzzing
// engines that need it drive Linux targets. On other platforms every
// operation reports success without touching signal dispositions, so
// cross-platform callers (the daemon, harness glue) need no build tags of
// their own.

//go:build !linux

package altstack

import "syscall"

// Harden is a no-op on this platform and always reports success.
func Harden(sig syscall.Signal) error {
	return nil
}

// OnAltStack always reports false on this platform: dispositions are never
// modified, so no handler is flagged for the alternate stack.
func OnAltStack(sig syscall.Signal) (bool, error) {
	return false, nil
}

// StackEnabled always reports false on this platform.
func StackEnabled() (bool, error) {
	return false, nil
}
