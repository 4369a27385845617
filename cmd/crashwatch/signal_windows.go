// Shutdown signal handling for the daemon on Windows.
//
// Windows has no SIGTERM, so the only stop request the daemon can receive
// is [os.Interrupt] (Ctrl+C / CTRL_C_EVENT); the Go runtime folds
// CTRL_BREAK_EVENT and console-close events into it as well. The crash
// signals the altstack package cares about never reach this channel: their
// dispositions stay with the fuzzing engine, and alternate-stack hardening
// is a no-op off Linux anyway.

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalChannel returns a buffered channel that receives os.Interrupt, the
// only shutdown request Windows delivers. A buffer of 1 keeps the signal
// from being dropped while the daemon's select loop is busy flushing the
// artifact index.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
