package acl

import (
	"os"
	"path/filepath"
	"testing"
)

func writeACLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acl.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPermitExactMatch(t *testing.T) {
	path := writeACLFile(t, "C1,pub,home/firstfloor/kitchen\nC1,sub,home/firstfloor/bedroom\n")
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !table.Permit("C1", "home/firstfloor/kitchen", true) {
		t.Fatalf("expected publish permit")
	}
	if !table.Permit("C1", "home/firstfloor/bedroom", false) {
		t.Fatalf("expected subscribe permit")
	}
}

func TestPermitDeniesByDefault(t *testing.T) {
	path := writeACLFile(t, "C1,pub,home/firstfloor/kitchen\n")
	table, _ := Load(path)
	if table.Permit("C1", "home/firstfloor/kitchen", false) {
		t.Fatalf("direction mismatch should deny")
	}
	if table.Permit("C2", "home/firstfloor/kitchen", true) {
		t.Fatalf("unknown client should deny")
	}
	if table.Permit("C1", "other/topic", true) {
		t.Fatalf("unlisted topic should deny")
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeACLFile(t, "# comment\nC1,pub,topic_a\nC2,weird,topic_b\ntoo,many,fields,here\n")
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}
}

func TestLoadCapacityExceeded(t *testing.T) {
	var b []byte
	extra := 5
	for i := 0; i < MaxRules+extra; i++ {
		b = append(b, []byte("C,pub,topic\n")...)
	}
	path := filepath.Join(t.TempDir(), "acl.txt")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}

	dropped := 0
	table := New()
	table.OnCapacityExceeded = func(string) { dropped++ }
	table, err := table.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if table.Len() != MaxRules {
		t.Fatalf("Len() = %d, want %d", table.Len(), MaxRules)
	}
	if dropped != extra {
		t.Fatalf("dropped = %d, want %d", dropped, extra)
	}
}

func TestNilTableDeniesEverything(t *testing.T) {
	var table *Table
	if table.Permit("C1", "topic", true) {
		t.Fatalf("nil table should deny")
	}
}
