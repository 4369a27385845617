// Package main implements the crashwatch daemon, which hardens the
// process's crash-signal handlers, watches a fuzzing corpus directory for
// new crash artifacts, and reports them to a collector.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rootpkg "tools.zach/dev/crashwatch"
	"tools.zach/dev/crashwatch/altstack"
	"tools.zach/dev/crashwatch/internal/artifact"
	"tools.zach/dev/crashwatch/internal/config"
	"tools.zach/dev/crashwatch/internal/control"
	"tools.zach/dev/crashwatch/internal/logger"
	"tools.zach/dev/crashwatch/internal/paths"
	"tools.zach/dev/crashwatch/internal/report"
	"tools.zach/dev/crashwatch/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Signal Hardening
// ///////////////////////////////////////////////

// hardenSignals applies alternate-stack hardening to the fixed crash-signal
// set plus any extras from the config, returning the names of every signal
// touched. Per-signal failures are logged and skipped; the daemon keeps
// running either way.
func hardenSignals(cfg *config.Config) []string {
	altstack.Setup()

	names := make([]string, 0, len(altstack.Signals())+len(cfg.Signals.Extra))
	for _, sig := range altstack.Signals() {
		names = append(names, altstack.Name(sig))
	}
	for _, sig := range cfg.ExtraSignals() {
		if err := altstack.Harden(sig); err != nil {
			slog.Warn("hardening extra signal failed", "signal", altstack.Name(sig), "error", err)
			continue
		}
		names = append(names, altstack.Name(sig))
	}

	if ok, err := altstack.StackEnabled(); err != nil {
		slog.Debug("alternate stack query failed", "error", err)
	} else if !ok {
		slog.Warn("no alternate signal stack installed; hardened handlers will run on the thread stack")
	}
	return names
}

// ///////////////////////////////////////////////
// Control Handler
// ///////////////////////////////////////////////

// daemonState implements [control.Handler], serving status and log-tail
// queries from CLI invocations while the event loop mutates the counters.
type daemonState struct {
	version         string
	start           time.Time
	watchDir        string
	logPath         string
	polling         func() bool
	hardenedSignals []string

	mu        sync.Mutex
	artifacts int
	reported  int
}

// setCounts updates the artifact counters shown in status output.
func (d *daemonState) setCounts(artifacts, reported int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.artifacts = artifacts
	d.reported = reported
}

func (d *daemonState) Status() control.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The watcher can demote itself from fsnotify to polling mid-run, so the
	// mode is read live rather than captured at startup.
	polling := false
	if d.polling != nil {
		polling = d.polling()
	}

	ready, _ := altstack.StackEnabled()
	return control.Status{
		PID:             os.Getpid(),
		Version:         d.version,
		UptimeSeconds:   int64(time.Since(d.start).Seconds()),
		WatchDir:        d.watchDir,
		Polling:         polling,
		HardenedSignals: d.hardenedSignals,
		AltStackReady:   ready,
		Artifacts:       d.artifacts,
		Reported:        d.reported,
	}
}

func (d *daemonState) TailLog(lines int) ([]string, error) {
	tail, err := logger.ReadTail(d.logPath, lines)
	if err != nil {
		return nil, err
	}
	if tail == "" {
		return nil, nil
	}
	return strings.Split(strings.TrimRight(tail, "\n"), "\n"), nil
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for crashwatch data,
// typically ~/.crashwatch. Falls back to ./.crashwatch if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Client Commands
// ///////////////////////////////////////////////

// runStatus queries a running daemon and prints its status.
func runStatus(dp DataPaths) int {
	c, err := control.Dial(dp.Socket())
	if err != nil {
		fmt.Fprintf(os.Stderr, "crashwatch: %v\n", err)
		return 1
	}
	defer c.Close()

	st, err := c.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "crashwatch: %v\n", err)
		return 1
	}

	fmt.Printf("crashwatch %s (pid %d)\n", st.Version, st.PID)
	fmt.Printf("  uptime:    %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
	fmt.Printf("  watching:  %s", st.WatchDir)
	if st.Polling {
		fmt.Printf(" (polling)")
	}
	fmt.Println()
	fmt.Printf("  signals:   %s\n", strings.Join(st.HardenedSignals, " "))
	fmt.Printf("  altstack:  %v\n", st.AltStackReady)
	fmt.Printf("  artifacts: %d (%d reported)\n", st.Artifacts, st.Reported)
	return 0
}

// runTail queries a running daemon and prints its trailing log lines.
func runTail(dp DataPaths, lines int) int {
	c, err := control.Dial(dp.Socket())
	if err != nil {
		fmt.Fprintf(os.Stderr, "crashwatch: %v\n", err)
		return 1
	}
	defer c.Close()

	log, err := c.TailLog(lines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crashwatch: %v\n", err)
		return 1
	}
	for _, line := range log {
		fmt.Println(line)
	}
	return 0
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, state, and logs")
	showVersion := flag.Bool("version", false, "Print version and exit")
	statusFlag := flag.Bool("status", false, "Print the status of a running daemon and exit")
	tailLines := flag.Int("tail", 0, "Print the last N log lines of a running daemon and exit")
	hardenOnly := flag.Bool("harden-only", false, "Harden crash-signal handlers and exit without starting the daemon")
	flag.Parse()

	if *showVersion {
		fmt.Println(resolveVersion())
		return
	}

	dp := DataPaths{Root: *dataDir}

	if *statusFlag {
		os.Exit(runStatus(dp))
	}
	if *tailLines > 0 {
		os.Exit(runTail(dp, *tailLines))
	}
	if *hardenOnly {
		if err := altstack.HardenAll(); err != nil {
			fmt.Fprintf(os.Stderr, "crashwatch: harden: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dp.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.New(dp.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("crashwatch starting", "version", ver, "data_dir", dp.Root)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("update check panic", "error", r)
			}
		}()
		update.Check(ver)
	}()

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dp, token, pidFile)

	var hardened []string
	if cfg.Signals.Harden {
		hardened = hardenSignals(cfg)
		slog.Info("crash-signal handlers hardened", "signals", strings.Join(hardened, " "))
	} else {
		slog.Info("signal hardening disabled by config")
	}

	watchDir := cfg.ArtifactDir(dp.Root)
	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		slog.Error("failed to create artifact dir", "dir", watchDir, "error", err)
		os.Exit(1)
	}

	index, err := artifact.LoadIndex(dp.Index())
	if err != nil {
		slog.Error("failed to load artifact index", "error", err)
		os.Exit(1)
	}

	reporter := report.New(cfg.Report)
	if reporter == nil {
		slog.Info("no collector configured, artifacts recorded locally only")
	}

	pollInterval := time.Duration(cfg.Watch.PollIntervalSeconds) * time.Second
	watcher, err := artifact.NewWatcher(watchDir, cfg.MatchesArtifact, pollInterval)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	if watcher.Polling() {
		slog.Info("using polling mode for artifact watching")
	}

	state := &daemonState{
		version:         ver,
		start:           time.Now(),
		watchDir:        watchDir,
		logPath:         dp.Log(),
		polling:         watcher.Polling,
		hardenedSignals: hardened,
	}

	ctl, err := control.NewServer(dp.Socket(), state)
	if err != nil {
		slog.Error("failed to open control endpoint", "error", err)
		os.Exit(1)
	}
	defer ctl.Close()
	go func() {
		if serveErr := ctl.Serve(); serveErr != nil {
			slog.Warn("control server stopped", "error", serveErr)
		}
	}()

	run(cfg, watcher, index, reporter, state, dp, watchDir, pollInterval)
}

// ///////////////////////////////////////////////
// Event Loop
// ///////////////////////////////////////////////

// loopState holds mutable state carried across iterations of the main event loop.
type loopState struct {
	// lastArtifactTime is the wall-clock time the most recent new artifact was
	// indexed, used to evaluate the daemon idle timeout.
	lastArtifactTime time.Time

	// indexDirty tracks whether the in-memory index has diverged from disk
	// since the last save.
	indexDirty bool
}

// run is the main event loop. It listens for file-system change events from
// the [artifact.Watcher], a periodic poll ticker, and OS signals, dispatching
// each to [processArtifacts] to index and report new crash artifacts. The loop
// runs until an OS interrupt/terminate signal is received or the daemon idle
// timeout fires.
func run(
	cfg *config.Config,
	watcher *artifact.Watcher,
	index *artifact.Index,
	reporter *report.Reporter,
	state *daemonState,
	dp DataPaths,
	watchDir string,
	pollInterval time.Duration,
) {
	daemonIdleMinutes := int64(cfg.Behavior.DaemonIdleMinutes)
	pruneMaxAge := time.Duration(cfg.Behavior.IndexPruneDays) * 24 * time.Hour

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	sigCh := signalChannel()

	ls := loopState{lastArtifactTime: time.Now()}

	processArtifacts(cfg, index, reporter, state, dp, watchDir, &ls, pruneMaxAge)

	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			saveIndex(index, dp, &ls)
			return

		case <-watcher.Events():
			processArtifacts(cfg, index, reporter, state, dp, watchDir, &ls, 0)

		case <-pollTicker.C:
			processArtifacts(cfg, index, reporter, state, dp, watchDir, &ls, pruneMaxAge)
			if checkDaemonIdle(&ls, daemonIdleMinutes) {
				saveIndex(index, dp, &ls)
				return
			}
		}
	}
}

// checkDaemonIdle returns true if the daemon should exit due to idle timeout.
// A zero or negative daemonIdleMinutes value disables the check.
func checkDaemonIdle(ls *loopState, daemonIdleMinutes int64) bool {
	if daemonIdleMinutes <= 0 || ls.lastArtifactTime.IsZero() {
		return false
	}
	idleDuration := time.Since(ls.lastArtifactTime)
	if idleDuration > time.Duration(daemonIdleMinutes)*time.Minute {
		slog.Info("daemon idle timeout, exiting", "idle_minutes", int(idleDuration.Minutes()))
		return true
	}
	return false
}

// saveIndex flushes the index to disk when the loop dirtied it.
func saveIndex(index *artifact.Index, dp DataPaths, ls *loopState) {
	if !ls.indexDirty {
		return
	}
	if err := index.Save(dp.Index()); err != nil {
		slog.Error("failed to save artifact index", "error", err)
		return
	}
	ls.indexDirty = false
}

// ///////////////////////////////////////////////
// Artifact Processing
// ///////////////////////////////////////////////

// processArtifacts rescans the watch directory, indexes new artifacts,
// uploads anything unreported, prunes stale index entries when pruneMaxAge
// is non-zero, and persists the index if it changed. Called on every watcher
// event and poll tick.
func processArtifacts(
	cfg *config.Config,
	index *artifact.Index,
	reporter *report.Reporter,
	state *daemonState,
	dp DataPaths,
	watchDir string,
	ls *loopState,
	pruneMaxAge time.Duration,
) {
	found, err := artifact.Scan(watchDir, cfg.MatchesArtifact)
	if err != nil {
		slog.Warn("artifact scan failed", "error", err)
		return
	}

	now := time.Now()
	present := make(map[string]bool, len(found))
	for _, a := range found {
		present[a.Name] = true
		if index.Observe(a, now) {
			attrs := []any{
				"name", a.Name,
				"kind", string(a.Kind),
				"size", a.Size,
				"sha256", a.SHA256,
			}
			if a.Signal != "" {
				attrs = append(attrs, "signal", a.Signal)
			}
			slog.Info("new crash artifact", attrs...)
			ls.lastArtifactTime = now
			ls.indexDirty = true
		}
	}

	if reporter != nil {
		for _, e := range index.Unreported() {
			if !present[e.Name] {
				continue // gone from disk; nothing to upload
			}
			if err := reporter.Send(watchDir, e.Artifact); err != nil {
				slog.Warn("artifact report failed", "name", e.Name, "error", err)
				continue
			}
			index.MarkReported(e.Name)
			ls.indexDirty = true
			slog.Info("artifact reported", "name", e.Name)
		}
	}

	if pruneMaxAge > 0 {
		if removed := index.Prune(present, now, pruneMaxAge); removed > 0 {
			slog.Info("pruned stale index entries", "count", removed)
			ls.indexDirty = true
		}
	}

	saveIndex(index, dp, ls)
	state.setCounts(index.Counts())
}
