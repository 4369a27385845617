//go:build !windows

package config

import "syscall"

// signalsByName lists the extra signals accepted on Unix-like platforms.
var signalsByName = map[string]syscall.Signal{
	"SIGTRAP": syscall.SIGTRAP,
	"SIGSYS":  syscall.SIGSYS,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGXCPU": syscall.SIGXCPU,
	"SIGXFSZ": syscall.SIGXFSZ,
}
