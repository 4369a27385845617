// Package altstack re-registers the process's crash-signal handlers with the
// alternate-signal-stack flag set, so that a fuzzing engine driving this
// process can still catch and report crashes whose handler would otherwise
// run on a corrupted or overflowed thread stack.
//
// The package touches a fixed set of signals (see [Signals]): segmentation
// faults, aborts, floating-point errors, bus errors, and illegal
// instructions. For each one the current OS disposition is read, the
// alternate-stack flag is OR-ed in, and the disposition is reinstalled —
// the existing handler function and all other flags are preserved.
//
// [Setup] is the entry point a harness calls once at process start, before
// any input is delivered. It never fails: the underlying system calls are
// expected to succeed, and any error is logged at debug level and dropped.
//
// Only Linux performs real work; on other platforms every operation is a
// no-op that reports success (see altstack_stub.go).
package altstack

import (
	"log/slog"
	"sync"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Set
// ///////////////////////////////////////////////

// crashSignals is the fixed set of signals whose handlers are re-registered
// onto the alternate stack. These are the faults a fuzzing engine needs to
// observe from a handler that cannot rely on the faulting thread's stack.
var crashSignals = []syscall.Signal{
	syscall.SIGSEGV,
	syscall.SIGABRT,
	syscall.SIGFPE,
	syscall.SIGBUS,
	syscall.SIGILL,
}

// Signals returns a copy of the fixed crash-signal set handled by this
// package. The slice is safe for callers to modify.
func Signals() []syscall.Signal {
	out := make([]syscall.Signal, len(crashSignals))
	copy(out, crashSignals)
	return out
}

// signalNames maps the fixed crash-signal set to conventional names.
// syscall.Signal.String returns descriptions ("segmentation fault") which
// are unsuitable for logs and status output. The crash-adjacent signals a
// config may add live in extraSignalNames (names_unix.go, names_windows.go)
// because not every platform's syscall package defines them.
var signalNames = map[syscall.Signal]string{
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGFPE:  "SIGFPE",
	syscall.SIGBUS:  "SIGBUS",
	syscall.SIGILL:  "SIGILL",
}

// Name returns the conventional name for a known signal, falling back to
// the runtime's description for anything else.
func Name(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	if name, ok := extraSignalNames[sig]; ok {
		return name
	}
	return sig.String()
}

// ///////////////////////////////////////////////
// Setup Hook
// ///////////////////////////////////////////////

// setupOnce guards Setup so that repeat calls (e.g. from both a harness
// init and the daemon main) re-register handlers only once.
var setupOnce sync.Once

// Setup re-registers every signal in [Signals] with the alternate-stack
// flag. It is invoked once at process start, before any fuzzing input is
// processed, and always succeeds: per-signal failures are logged at debug
// level and otherwise ignored.
func Setup() {
	setupOnce.Do(func() {
		for _, sig := range crashSignals {
			if err := Harden(sig); err != nil {
				slog.Debug("altstack: harden failed", "signal", Name(sig), "error", err)
			}
		}
	})
}

// HardenAll applies [Harden] to every signal in [Signals] and returns the
// first error encountered, after attempting all signals. Unlike [Setup] it
// surfaces failures, for callers that want to report them.
func HardenAll() error {
	var first error
	for _, sig := range crashSignals {
		if err := Harden(sig); err != nil && first == nil {
			first = err
		}
	}
	return first
}
