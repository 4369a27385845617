// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile     = "crashwatch.pid"
	ConfigFile  = "config.toml"
	LogFile     = "crashwatch.log"
	IndexFile   = "artifacts.json"
	SocketFile  = "control.sock"
	ArtifactDir = "artifacts"
)

// Project identity.
const (
	BinaryName = "crashwatch"
	DataDirRel = ".crashwatch" // relative to $HOME
)

// PipeName returns the Windows named pipe used for the control endpoint.
// The pipe name carries the user identity so daemons run by different
// users on the same machine do not collide.
func PipeName() string {
	user := os.Getenv("USERNAME")
	if user == "" {
		user = "default"
	}
	return `\\.\pipe\crashwatch-` + user
}

// Remote-fetched file paths (relative to repo root).
const ReleaseManifest = ".release-manifest.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Index returns the full path to the artifact index file.
func (d DataDir) Index() string { return filepath.Join(d.Root, IndexFile) }

// Socket returns the full path to the control socket (unix platforms).
func (d DataDir) Socket() string { return filepath.Join(d.Root, SocketFile) }

// Artifacts returns the default artifact directory under the data root,
// used when the config does not name one.
func (d DataDir) Artifacts() string { return filepath.Join(d.Root, ArtifactDir) }
