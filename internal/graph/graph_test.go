package graph

import (
	"math"
	"os"
	"testing"
)

func TestPointTrustRangeAndDefault(t *testing.T) {
	if got := PointTrust(0, 0); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("PointTrust(0,0) = %v, want 0.5", got)
	}
	for r := 0; r <= 10; r++ {
		for s := 0; s <= 10; s++ {
			trust := PointTrust(r, s)
			if trust < 0 || trust > 1 {
				t.Fatalf("PointTrust(%d,%d) = %v out of [0,1]", r, s, trust)
			}
		}
	}
}

func TestPointTrustMonotonicity(t *testing.T) {
	for r := 0; r <= 5; r++ {
		for s := 0; s <= 5; s++ {
			if PointTrust(r+1, s) <= PointTrust(r, s) {
				t.Fatalf("trust(%d+1,%d) not greater than trust(%d,%d)", r, s, r, s)
			}
			if PointTrust(r, s+1) >= PointTrust(r, s) {
				t.Fatalf("trust(%d,%d+1) not less than trust(%d,%d)", r, s, r, s)
			}
		}
	}
}

func TestStaticTrustInversion(t *testing.T) {
	cases := []float64{0.01, 0.1, 0.3, 0.49, 0.5, 0.51, 0.7, 0.9, 0.99}
	for _, tr := range cases {
		r, s := StaticTrustToCounters(tr)
		got := PointTrust(r, s)
		if math.Abs(got-tr) > 0.05 {
			t.Errorf("static trust %v -> (r=%d,s=%d) -> %v, want within 0.05", tr, r, s, got)
		}
	}
}

func TestLeastTrustworthyPathScoreSameNode(t *testing.T) {
	g := New()
	g.SetLinkCounters("B1", "B2", 4, 0)
	if got := g.LeastTrustworthyPathScore("B1", "B1"); got != 1 {
		t.Fatalf("score(X,X) = %v, want 1", got)
	}
}

func TestLeastTrustworthyPathScoreNoPath(t *testing.T) {
	g := New()
	g.SetLinkCounters("B1", "B2", 4, 0)
	if got := g.LeastTrustworthyPathScore("B2", "B1"); got != 0 {
		t.Fatalf("score with no path = %v, want 0", got)
	}
}

func TestLeastTrustworthyPathScoreMinimumAverage(t *testing.T) {
	g := New()
	// Direct path B1->B3 average trust(4,0) ~ 0.833
	g.SetLinkCounters("B1", "B3", 4, 0)
	// Longer path B1->B2->B3 with a weak link should pull the average down
	g.SetLinkCounters("B1", "B2", 4, 0)
	g.SetLinkCounters("B2", "B3", 0, 5)

	direct := PointTrust(4, 0)
	viaB2 := (PointTrust(4, 0) + PointTrust(0, 5)) / 2

	got := g.LeastTrustworthyPathScore("B1", "B3")
	want := math.Min(direct, viaB2)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("score = %v, want min(%v,%v) = %v", got, direct, viaB2, want)
	}
}

func TestDirectTrustDefaultsToHalf(t *testing.T) {
	g := New()
	g.SetLinkCounters("B1", "B3", 4, 0)
	if got := g.DirectTrust("B9", "B3"); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("DirectTrust for absent link = %v, want 0.5", got)
	}
}

func TestSetLinkCountersOverwrite(t *testing.T) {
	g := New()
	g.SetLinkCounters("B1", "B3", 1, 1)
	g.SetLinkCounters("B1", "B3", 9, 0)
	r, s, ok := g.LinkCounters("B1", "B3")
	if !ok || r != 9 || s != 0 {
		t.Fatalf("overwrite failed: r=%d s=%d ok=%v", r, s, ok)
	}
}

func TestNodeCapacityExceeded(t *testing.T) {
	g := New()
	var warned []string
	g.OnCapacityExceeded = func(kind, id string) { warned = append(warned, kind+":"+id) }

	for i := 0; i < MaxNodes+2; i++ {
		g.SetLinkCounters("self", "n"+string(rune('a'+i)), 1, 0)
	}
	if g.NodeCount() > MaxNodes {
		t.Fatalf("node count %d exceeds MaxNodes %d", g.NodeCount(), MaxNodes)
	}
	if len(warned) == 0 {
		t.Fatalf("expected capacity warning, got none")
	}
}

func TestEdgeCapacityExceeded(t *testing.T) {
	g := New()
	var warned []string
	g.OnCapacityExceeded = func(kind, id string) { warned = append(warned, kind+":"+id) }

	for i := 0; i < MaxEdgesPerNode+2; i++ {
		g.SetLinkCounters("self", "t"+string(rune('a'+i)), 1, 0)
	}
	if len(g.IterOutEdges("self")) > MaxEdgesPerNode {
		t.Fatalf("edge count exceeds MaxEdgesPerNode")
	}
	if len(warned) == 0 {
		t.Fatalf("expected edge capacity warning, got none")
	}
}

func TestLoadSharedMapSkipsMalformedLines(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "map-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	content := "# comment\nB1,B3,0.9\nbad line\nB2,B3,1.5\nB4,,0.5\n"
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g := New()
	if err := g.LoadSharedMap(f.Name()); err != nil {
		t.Fatalf("LoadSharedMap: %v", err)
	}
	if r, s, ok := g.LinkCounters("B1", "B3"); !ok || r <= 0 {
		t.Fatalf("expected B1->B3 link loaded, got r=%d s=%d ok=%v", r, s, ok)
	}
	if _, _, ok := g.LinkCounters("B2", "B3"); ok {
		t.Fatalf("out-of-range static_trust line should have been skipped")
	}
}
