//go:build windows

package config

import "syscall"

// signalsByName lists the extra signals accepted on Windows, limited to
// the constants its syscall package defines. SIGSYS, SIGXCPU, and SIGXFSZ
// do not exist there.
var signalsByName = map[string]syscall.Signal{
	"SIGTRAP": syscall.SIGTRAP,
	"SIGQUIT": syscall.SIGQUIT,
}
