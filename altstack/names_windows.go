//go:build windows

package altstack

import "syscall"

// extraSignalNames covers the crash-adjacent extra signals whose constants
// the Windows syscall package defines. SIGSYS, SIGXCPU, and SIGXFSZ do not
// exist there.
var extraSignalNames = map[syscall.Signal]string{
	syscall.SIGTRAP: "SIGTRAP",
	syscall.SIGQUIT: "SIGQUIT",
}
