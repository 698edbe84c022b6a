package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	if err := os.WriteFile(path, []byte("broker_id: B3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.BrokerID != "B3" {
		t.Fatalf("BrokerID = %q, want B3", opts.BrokerID)
	}
	if opts.ACLFile != "acl.txt" {
		t.Fatalf("ACLFile default = %q", opts.ACLFile)
	}
	if opts.MapRefreshIntervalSecs != 10 {
		t.Fatalf("MapRefreshIntervalSecs default = %d, want 10", opts.MapRefreshIntervalSecs)
	}
}

func TestTrustStorePathTemplate(t *testing.T) {
	opts := Default()
	opts.BrokerID = "B3"
	got := opts.TrustStorePath()
	want := "trust_history/trust_store_B3.txt"
	if got != want {
		t.Fatalf("TrustStorePath() = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/broker.yaml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
