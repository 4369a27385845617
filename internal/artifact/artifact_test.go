package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// KindOf Tests
// ///////////////////////////////////////////////

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"crash-0a1b2c3d", KindCrash},
		{"leak-deadbeef", KindLeak},
		{"oom-cafebabe", KindOOM},
		{"timeout-12345678", KindTimeout},
		{"crash", KindOther},
		{"slow-unit-abc", KindOther},
		{"", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.name); got != tt.want {
				t.Errorf("KindOf(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// FromFile Tests
// ///////////////////////////////////////////////

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte("\xde\xad\xbe\xef fuzz input")
	if err := os.WriteFile(filepath.Join(dir, "crash-abc123"), contents, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	a, err := FromFile(dir, "crash-abc123")
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if a.Name != "crash-abc123" {
		t.Errorf("Name = %q, want %q", a.Name, "crash-abc123")
	}
	if a.Kind != KindCrash {
		t.Errorf("Kind = %q, want %q", a.Kind, KindCrash)
	}
	if a.Size != int64(len(contents)) {
		t.Errorf("Size = %d, want %d", a.Size, len(contents))
	}
	sum := sha256.Sum256(contents)
	if want := hex.EncodeToString(sum[:]); a.SHA256 != want {
		t.Errorf("SHA256 = %q, want %q", a.SHA256, want)
	}
	if a.ModTime == 0 {
		t.Error("ModTime not populated")
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile(t.TempDir(), "crash-nope"); err == nil {
		t.Fatal("FromFile on missing file succeeded, want error")
	}
}

func TestFromFileSignalFromSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crash-sig"), []byte("input"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	sidecar := "==1234==ERROR: AddressSanitizer: SEGV on unknown address 0x000000000000\n"
	if err := os.WriteFile(filepath.Join(dir, "crash-sig.log"), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("WriteFile sidecar failed: %v", err)
	}

	a, err := FromFile(dir, "crash-sig")
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if a.Signal != "SIGSEGV" {
		t.Errorf("Signal = %q, want %q", a.Signal, "SIGSEGV")
	}
}

func TestFromFileNoSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crash-bare"), []byte("input"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	a, err := FromFile(dir, "crash-bare")
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if a.Signal != "" {
		t.Errorf("Signal = %q, want empty", a.Signal)
	}
}

// ///////////////////////////////////////////////
// GuessSignal Tests
// ///////////////////////////////////////////////

func TestGuessSignal(t *testing.T) {
	tests := []struct {
		name    string
		sidecar string
		want    string
	}{
		{"asan segv", "SUMMARY: AddressSanitizer: SEGV", "SIGSEGV"},
		{"explicit sigsegv", "process received SIGSEGV", "SIGSEGV"},
		{"abort", "libFuzzer: deadly signal SIGABRT", "SIGABRT"},
		{"fpe", "ERROR: FPE on unknown address", "SIGFPE"},
		{"bus", "caught SIGBUS", "SIGBUS"},
		{"illegal instruction", "runtime error: illegal instruction", "SIGILL"},
		{"no token", "timeout after 60 seconds", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "crash-x.log"), []byte(tt.sidecar), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			if got := GuessSignal(dir, "crash-x"); got != tt.want {
				t.Errorf("GuessSignal = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuessSignalNoSidecar(t *testing.T) {
	if got := GuessSignal(t.TempDir(), "crash-x"); got != "" {
		t.Errorf("GuessSignal = %q, want empty", got)
	}
}

// ///////////////////////////////////////////////
// Scan Tests
// ///////////////////////////////////////////////

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"crash-aaa":    "input a",
		"leak-bbb":     "input b",
		"corpus-entry": "not an artifact",
		"README":       "docs",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	// Subdirectories are skipped even when their name matches.
	if err := os.Mkdir(filepath.Join(dir, "crash-dir"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	// Sidecar logs match crash-* but are not artifacts.
	if err := os.WriteFile(filepath.Join(dir, "crash-aaa.log"), []byte("SEGV"), 0o644); err != nil {
		t.Fatalf("WriteFile sidecar failed: %v", err)
	}

	match := func(name string) bool {
		return strings.HasPrefix(name, "crash-") || strings.HasPrefix(name, "leak-")
	}
	got, err := Scan(dir, match)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	names := map[string]bool{}
	for _, a := range got {
		names[a.Name] = true
	}
	if len(got) != 2 || !names["crash-aaa"] || !names["leak-bbb"] {
		t.Errorf("Scan returned %v, want exactly crash-aaa and leak-bbb", names)
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), func(string) bool { return true }); err == nil {
		t.Fatal("Scan of missing directory succeeded, want error")
	}
}

func TestScanEmptyDir(t *testing.T) {
	got, err := Scan(t.TempDir(), func(string) bool { return true })
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan of empty dir returned %d artifacts, want 0", len(got))
	}
}
