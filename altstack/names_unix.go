//go:build !windows

package altstack

import "syscall"

// extraSignalNames covers the crash-adjacent signals a config may add to
// the fixed set on Unix-like platforms.
var extraSignalNames = map[syscall.Signal]string{
	syscall.SIGTRAP: "SIGTRAP",
	syscall.SIGSYS:  "SIGSYS",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGXCPU: "SIGXCPU",
	syscall.SIGXFSZ: "SIGXFSZ",
}
