// Package artifact manages crash artifacts written by a fuzzing engine:
// discovering them on disk, classifying and fingerprinting them, and
// tracking which ones have been reported in a versioned JSON index.
//
// Fuzzing engines drop artifacts into a directory using conventional name
// prefixes (crash-, leak-, oom-, timeout- followed by an input hash). The
// daemon watches that directory (see [Watcher]), scans it ([Scan]), and
// records what it finds in an [Index] so restarts never re-report an
// artifact the collector has already seen.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ///////////////////////////////////////////////
// Artifact Types
// ///////////////////////////////////////////////

// Kind classifies an artifact by the failure that produced it.
type Kind string

// Artifact kinds, matching the name prefixes fuzzing engines use.
const (
	KindCrash   Kind = "crash"
	KindLeak    Kind = "leak"
	KindOOM     Kind = "oom"
	KindTimeout Kind = "timeout"
	KindOther   Kind = "other"
)

// kindPrefixes maps artifact name prefixes to kinds. Order matters only for
// readability; prefixes do not overlap.
var kindPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"crash-", KindCrash},
	{"leak-", KindLeak},
	{"oom-", KindOOM},
	{"timeout-", KindTimeout},
}

// KindOf classifies an artifact file name by its prefix.
func KindOf(name string) Kind {
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(name, kp.prefix) {
			return kp.kind
		}
	}
	return KindOther
}

// Artifact is the metadata recorded for a single crash artifact file.
type Artifact struct {
	// Name is the artifact's file base name (e.g. "crash-0a1b2c").
	Name string `json:"name"`
	// Kind classifies the failure: crash, leak, oom, timeout, or other.
	Kind Kind `json:"kind"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// SHA256 is the hex digest of the file contents, the artifact's
	// stable identity across renames and re-runs.
	SHA256 string `json:"sha256"`
	// ModTime is the file's modification time as a Unix timestamp.
	ModTime int64 `json:"modTime"`
	// Signal is the crash signal guessed from the harness log sidecar
	// (<name>.log), e.g. "SIGSEGV". Empty when no sidecar exists, no
	// known token was found, or the artifact is not a crash.
	Signal string `json:"signal,omitempty"`
}

// sidecarSuffix marks harness log files written next to an artifact. They
// carry the engine's output for the run, not the crashing input itself.
const sidecarSuffix = ".log"

// signalTokens maps substrings found in sanitizer and harness logs to the
// conventional name of the crash signal. Longer tokens are listed before
// the short forms they contain.
var signalTokens = []struct {
	token  string
	signal string
}{
	{"SIGSEGV", "SIGSEGV"},
	{"SEGV", "SIGSEGV"},
	{"SIGABRT", "SIGABRT"},
	{"ABRT", "SIGABRT"},
	{"SIGFPE", "SIGFPE"},
	{"FPE", "SIGFPE"},
	{"SIGBUS", "SIGBUS"},
	{"SIGILL", "SIGILL"},
	{"illegal instruction", "SIGILL"},
}

// GuessSignal reads the harness log sidecar next to a crash artifact and
// guesses the crash signal from well-known sanitizer tokens. It returns ""
// when no sidecar exists or no token matches.
func GuessSignal(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name+sidecarSuffix))
	if err != nil {
		return ""
	}
	text := string(data)
	for _, st := range signalTokens {
		if strings.Contains(text, st.token) {
			return st.signal
		}
	}
	return ""
}

// ///////////////////////////////////////////////
// Discovery
// ///////////////////////////////////////////////

// FromFile builds an [Artifact] for the file at dir/name, hashing its
// contents.
func FromFile(dir, name string) (Artifact, error) {
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Artifact{}, fmt.Errorf("hash artifact: %w", err)
	}

	a := Artifact{
		Name:    name,
		Kind:    KindOf(name),
		Size:    info.Size(),
		SHA256:  hex.EncodeToString(h.Sum(nil)),
		ModTime: info.ModTime().Unix(),
	}
	if a.Kind == KindCrash {
		a.Signal = GuessSignal(dir, name)
	}
	return a, nil
}

// Scan walks dir (non-recursively — engines write artifacts flat) and
// returns an [Artifact] for every regular file whose base name the match
// function accepts. Files that vanish or turn unreadable mid-scan are
// logged at debug level and skipped: the engine may still be writing them,
// and the next scan will pick them up.
func Scan(dir string, match func(name string) bool) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !match(e.Name()) {
			continue
		}
		// Harness log sidecars match artifact patterns (crash-xxx.log
		// matches crash-*) but are metadata, not artifacts.
		if strings.HasSuffix(e.Name(), sidecarSuffix) {
			continue
		}
		a, err := FromFile(dir, e.Name())
		if err != nil {
			slog.Debug("skipping unreadable artifact", "name", e.Name(), "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
