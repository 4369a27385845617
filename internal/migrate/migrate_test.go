package migrate

import (
	"errors"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// Run Tests
// ///////////////////////////////////////////////

func TestRunAppliesInOrder(t *testing.T) {
	migrations := []Migration{
		{Version: 3, Description: "third", Upgrade: appendStep("c")},
		{Version: 2, Description: "second", Upgrade: appendStep("b")},
	}

	data, version, err := Run([]byte("a"), 1, migrations)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if version != 3 {
		t.Errorf("final version = %d, want 3", version)
	}
	if string(data) != "abc" {
		t.Errorf("data = %q, want %q (migrations applied in version order)", data, "abc")
	}
}

func TestRunSkipsApplied(t *testing.T) {
	migrations := []Migration{
		{Version: 2, Description: "second", Upgrade: appendStep("b")},
		{Version: 3, Description: "third", Upgrade: appendStep("c")},
	}

	data, version, err := Run([]byte("x"), 2, migrations)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if version != 3 {
		t.Errorf("final version = %d, want 3", version)
	}
	if string(data) != "xc" {
		t.Errorf("data = %q, want %q (v2 already applied)", data, "xc")
	}
}

func TestRunUpgradeError(t *testing.T) {
	boom := errors.New("boom")
	migrations := []Migration{
		{Version: 2, Description: "explodes", Upgrade: func([]byte) ([]byte, error) {
			return nil, boom
		}},
	}

	_, version, err := Run([]byte("x"), 1, migrations)
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want wrapped %v", err, boom)
	}
	if version != 1 {
		t.Errorf("version after failure = %d, want 1 (unchanged)", version)
	}
	if !strings.Contains(err.Error(), "v2") {
		t.Errorf("error %q does not name the failing version", err)
	}
}

// ///////////////////////////////////////////////
// Registry Tests
// ///////////////////////////////////////////////

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("registering a duplicate version did not panic")
		}
	}()

	r := &Registry{CurrentVersion: 2}
	r.Register(Migration{Version: 2, Description: "first"})
	r.Register(Migration{Version: 2, Description: "conflict"})
}

func TestRegistryNeedsMigration(t *testing.T) {
	r := &Registry{CurrentVersion: 2}
	r.Register(Migration{Version: 2, Description: "up", Upgrade: appendStep("")})

	tests := []struct {
		name        string
		fileVersion int
		want        bool
	}{
		{"older file", 1, true},
		{"current file", 2, false},
		{"newer file", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.NeedsMigration(tt.fileVersion); got != tt.want {
				t.Errorf("NeedsMigration(%d) = %v, want %v", tt.fileVersion, got, tt.want)
			}
		})
	}
}

// appendStep returns an Upgrade func that appends s to the data.
func appendStep(s string) func([]byte) ([]byte, error) {
	return func(data []byte) ([]byte, error) {
		return append(data, s...), nil
	}
}
