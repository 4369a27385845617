package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "watch.patterns")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate
// the generated config.default.toml with inline comments and alternative
// examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Watch ─────────────────────────────────────────────────────
	"watch.dir": {
		Comment: "Artifact directory to watch.\nLeave empty to use <data-dir>/artifacts.\nPoint this at the -artifact_prefix directory your fuzzing engine writes to.",
		Alternatives: []string{
			`dir = "/var/lib/fuzzing/artifacts"`,
		},
	},
	"watch.patterns": {
		Comment: "Glob patterns (doublestar syntax) that identify crash artifacts.\nThe defaults match libFuzzer's crash-, leak-, oom- and timeout- prefixes.",
	},
	"watch.poll_interval_seconds": {
		Comment: "Rescan cadence, and the fallback polling interval when native\nfile-change notification is unavailable.",
	},

	// ── Signals ───────────────────────────────────────────────────
	"signals.harden": {
		Comment: "Re-register the crash-signal handlers (SEGV, ABRT, FPE, BUS, ILL)\nwith the alternate-stack flag at daemon start, so crash handlers still\nrun when the faulting thread's own stack is unusable.",
	},
	"signals.extra": {
		Comment: "Additional signal names to harden beyond the fixed set.\nAccepted: SIGQUIT, SIGSYS, SIGTRAP, SIGXCPU, SIGXFSZ.",
		Alternatives: []string{
			`extra = ["SIGTRAP", "SIGSYS"]`,
		},
	},

	// ── Report ────────────────────────────────────────────────────
	"report.url": {
		Comment: "Collector endpoint new artifacts are POSTed to as JSON.\nLeave empty to disable reporting (artifacts are still indexed locally).",
		Alternatives: []string{
			`url = "https://collector.example.com/v1/artifacts"`,
		},
	},
	"report.token": {
		Comment: "Optional bearer token sent in the Authorization header.",
		Alternatives: []string{
			`token = "..."`,
		},
	},
	"report.upload_payload": {
		Comment: "Include the artifact bytes (base64) in the report when the file is\nwithin max_payload_kb. Metadata-only reports are sent otherwise.",
	},
	"report.max_payload_kb": {},
	"report.timeout_seconds": {
		Comment: "Per-attempt upload timeout. Transient failures are retried with\nbackoff, then re-queued for the next poll tick.",
	},

	// ── Behavior ──────────────────────────────────────────────────
	"behavior.daemon_idle_minutes": {
		Comment: "Exit after this many minutes without a new artifact. 0 = run forever.",
	},
	"behavior.index_prune_days": {
		Comment: "Drop index entries whose artifact has been gone from disk for this\nmany days. 0 = never prune.",
	},

	// ── Log ───────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level: trace, debug, info, warn, error, fail.",
	},
	"log.max_size_mb": {
		Comment: "Log file size before rotation (3 rotated files are kept).",
	},
}
