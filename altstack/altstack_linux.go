// Linux crash-signal hardening via rt_sigaction(2).
//
// The Go runtime installs its own handlers with SA_ONSTACK, but a process
// driven by an external fuzzing engine (a c-archive harness, a sanitizer
// runtime linked in through cgo) may carry engine-installed handlers that
// lack the flag. Reading the current disposition and reinstalling it with
// SA_ONSTACK added preserves whatever handler is in place — Go's, the
// engine's, or SIG_DFL — while guaranteeing it runs on the alternate stack.

//go:build linux

package altstack

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ///////////////////////////////////////////////
// rt_sigaction Plumbing
// ///////////////////////////////////////////////

// sigaction mirrors the kernel's struct sigaction on 64-bit Linux: handler,
// flags, restorer, then the blocked-signal mask. The restorer field is
// round-tripped untouched, which keeps the read-modify-write safe on
// architectures (amd64) where SA_RESTORER is mandatory for installed
// handlers.
type sigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

// Kernel signal constants not exported by x/sys/unix, mirroring the
// sigaction struct above.
const (
	// saOnStack is the SA_ONSTACK sigaction flag: run the handler on the
	// alternate signal stack.
	saOnStack = 0x08000000
	// ssDisable is the SS_DISABLE stack_t flag: no alternate stack is
	// currently installed.
	ssDisable = 0x2
)

// sigsetSize is the byte size of the kernel sigset_t that rt_sigaction
// expects as its fourth argument.
const sigsetSize = 8

// rtSigaction wraps the raw rt_sigaction syscall. Either newAct or oldAct
// may be nil: pass only oldAct to query a disposition, only newAct to
// install one.
func rtSigaction(sig syscall.Signal, newAct, oldAct *sigaction) error {
	var newPtr, oldPtr uintptr
	if newAct != nil {
		newPtr = uintptr(unsafe.Pointer(newAct))
	}
	if oldAct != nil {
		oldPtr = uintptr(unsafe.Pointer(oldAct))
	}
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), newPtr, oldPtr, sigsetSize, 0, 0); e != 0 {
		return e
	}
	return nil
}

// ///////////////////////////////////////////////
// Hardening
// ///////////////////////////////////////////////

// Harden reads the current OS disposition for sig, sets the SA_ONSTACK
// flag, and reinstalls it. The handler function, signal mask, and all other
// flags are preserved. Hardening a signal whose flag is already set is a
// no-op.
func Harden(sig syscall.Signal) error {
	var sa sigaction
	if err := rtSigaction(sig, nil, &sa); err != nil {
		return fmt.Errorf("read disposition for %s: %w", Name(sig), err)
	}
	if sa.flags&saOnStack != 0 {
		return nil
	}
	sa.flags |= saOnStack
	if err := rtSigaction(sig, &sa, nil); err != nil {
		return fmt.Errorf("reinstall disposition for %s: %w", Name(sig), err)
	}
	return nil
}

// OnAltStack reports whether sig's current handler is flagged to run on the
// alternate signal stack.
func OnAltStack(sig syscall.Signal) (bool, error) {
	var sa sigaction
	if err := rtSigaction(sig, nil, &sa); err != nil {
		return false, fmt.Errorf("read disposition for %s: %w", Name(sig), err)
	}
	return sa.flags&saOnStack != 0, nil
}

// ///////////////////////////////////////////////
// Alternate Stack Query
// ///////////////////////////////////////////////

// stackt mirrors the kernel's stack_t on 64-bit Linux for the sigaltstack
// query below.
type stackt struct {
	sp    uintptr
	flags int32
	_     [4]byte
	size  uintptr
}

// StackEnabled reports whether the calling thread has an alternate signal
// stack installed (sigaltstack(2)). The Go runtime installs one per thread,
// so this returning false indicates an unusual embedding (such as a foreign
// thread calling into a c-archive without a signal stack).
func StackEnabled() (bool, error) {
	var ss stackt
	if _, _, e := unix.RawSyscall(unix.SYS_SIGALTSTACK, 0, uintptr(unsafe.Pointer(&ss)), 0); e != 0 {
		return false, fmt.Errorf("query alternate stack: %w", error(e))
	}
	return ss.flags&ssDisable == 0 && ss.size > 0, nil
}
