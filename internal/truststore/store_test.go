package truststore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, mapContent, localContent string) *Store {
	t.Helper()
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "network_map.txt")
	localPath := filepath.Join(dir, "trust_store_B3.txt")

	if mapContent != "" {
		if err := os.WriteFile(mapPath, []byte(mapContent), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if localContent != "" {
		if err := os.WriteFile(localPath, []byte(localContent), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := New(Options{
		Self:           "B3",
		SharedMapPath:  mapPath,
		LocalStorePath: localPath,
	})
	s.Init()
	return s
}

func TestInitLoadsSharedMapThenOverlaysLocal(t *testing.T) {
	s := newTestStore(t, "B1,B3,0.9\n", "B1,9,0\n")
	r, sVal, ok := s.Graph.LinkCounters("B1", "B3")
	if !ok {
		t.Fatalf("expected B1->B3 link present")
	}
	if r != 9 || sVal != 0 {
		t.Fatalf("local overlay should win: got r=%d s=%d", r, sVal)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t, "", "")
	s.Graph.SetLinkCounters("B2", "B3", 3, 1)
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := New(Options{Self: "B3", SharedMapPath: s.sharedMapPath, LocalStorePath: s.localStorePath})
	s2.Init()
	r, sVal, ok := s2.Graph.LinkCounters("B2", "B3")
	if !ok || r != 3 || sVal != 1 {
		t.Fatalf("round trip failed: r=%d s=%d ok=%v", r, sVal, ok)
	}
}

func TestSaveOnlyPersistsLinksTargetingSelf(t *testing.T) {
	s := newTestStore(t, "", "")
	s.Graph.SetLinkCounters("B2", "B3", 3, 1)
	s.Graph.SetLinkCounters("B2", "B4", 7, 0) // not targeting self, must not persist
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(s.localStorePath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !contains(content, "B2,3,1") {
		t.Fatalf("expected B2,3,1 row, got %q", content)
	}
	if contains(content, "B4") {
		t.Fatalf("non-self-targeting link leaked into local store: %q", content)
	}
}

func TestTickRespectsRefreshInterval(t *testing.T) {
	s := newTestStore(t, "B1,B3,0.9\n", "")
	start := time.Now()
	s.refreshInterval = time.Minute
	s.lastRefresh = start

	s.Graph.SetLinkCounters("B5", "B3", 1, 0) // simulate feedback applied mid-interval
	s.Tick(start.Add(10 * time.Second))       // well within the interval, should no-op

	if _, _, ok := s.Graph.LinkCounters("B5", "B3"); !ok {
		t.Fatalf("tick within interval must not have reset the graph")
	}

	s.Tick(start.Add(2 * time.Minute)) // past the interval, should reload
	if _, _, ok := s.Graph.LinkCounters("B5", "B3"); ok {
		t.Fatalf("tick past interval should have reloaded from files, dropping unsaved feedback")
	}
	if _, _, ok := s.Graph.LinkCounters("B1", "B3"); !ok {
		t.Fatalf("tick past interval should have reloaded the shared map")
	}
}

func TestInitToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(Options{
		Self:           "B3",
		SharedMapPath:  filepath.Join(dir, "missing_map.txt"),
		LocalStorePath: filepath.Join(dir, "missing_store.txt"),
	})
	var errs []string
	s.OnError = func(msg string, err error) { errs = append(errs, msg) }
	s.Init() // must not panic
	if len(errs) == 0 {
		t.Fatalf("expected an io_error notice for the missing shared map")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
