// Package graph implements the in-memory directed graph of brokers and
// neighbor trust links used by the trust evaluator. Nodes are addressed by
// small integer indices into fixed-size arrays rather than pointers, so the
// graph has no heap churn and trust-path search can keep a simple bitset of
// visited nodes.
//
// Called by: truststore (load/overlay), evaluator (direct trust, path score),
// feedback (counter mutation)
// Calls: the standard library, plus golang.org/x/sys/unix for the shared-map
// read lock
package graph

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Capacity limits fixed at compile time.
const (
	MaxNodes        = 32
	MaxEdgesPerNode = 8
	BaseRateDelta   = 0.5 // δ: base-rate prior in the trust formula
)

// Node is a broker identity slot in the arena.
type Node struct {
	ID   string
	used bool
}

// Link is a directed, weighted edge stored in the source node's edge list.
// Target is the index of the destination node, not a pointer, so cycles in
// the graph cost nothing extra to represent.
type Link struct {
	Target int
	R      int
	S      int
	used   bool
}

// Graph is a fixed-capacity arena of nodes and their out-edges.
type Graph struct {
	nodes      [MaxNodes]Node
	edges      [MaxNodes][MaxEdgesPerNode]Link
	edgeCounts [MaxNodes]int
	nodeCount  int

	// OnCapacityExceeded, if set, is called once per dropped entry so the
	// caller can log a WARN without this package depending on a logger.
	OnCapacityExceeded func(kind, id string)
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

func (g *Graph) warnCapacity(kind, id string) {
	if g.OnCapacityExceeded != nil {
		g.OnCapacityExceeded(kind, id)
	}
}

// FindNode returns the index of id, or -1 if absent. O(N), N ≤ MaxNodes.
func (g *Graph) FindNode(id string) int {
	for i := 0; i < g.nodeCount; i++ {
		if g.nodes[i].used && g.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// EnsureNode returns the index of id, creating it if there is room. Returns
// -1 if the graph is already at MaxNodes.
func (g *Graph) EnsureNode(id string) int {
	if idx := g.FindNode(id); idx >= 0 {
		return idx
	}
	if g.nodeCount >= MaxNodes {
		g.warnCapacity("node", id)
		return -1
	}
	idx := g.nodeCount
	g.nodes[idx] = Node{ID: id, used: true}
	g.nodeCount++
	return idx
}

// NodeCount reports how many nodes are currently populated.
func (g *Graph) NodeCount() int { return g.nodeCount }

// NodeID returns the broker id stored at idx.
func (g *Graph) NodeID(idx int) string {
	if idx < 0 || idx >= g.nodeCount {
		return ""
	}
	return g.nodes[idx].ID
}

// findEdge returns the edge slot index within sourceIdx's edge list pointing
// at targetIdx, or -1 if none exists yet.
func (g *Graph) findEdge(sourceIdx, targetIdx int) int {
	for i := 0; i < g.edgeCounts[sourceIdx]; i++ {
		if g.edges[sourceIdx][i].used && g.edges[sourceIdx][i].Target == targetIdx {
			return i
		}
	}
	return -1
}

// SetLinkCounters overwrites (or creates) the (r,s) counters of the
// source->target link, creating either endpoint node if room permits.
// Exceeding MAX_NODES or MAX_EDGES_PER_NODE silently drops the entry and
// invokes OnCapacityExceeded.
func (g *Graph) SetLinkCounters(source, target string, r, s int) {
	srcIdx := g.EnsureNode(source)
	if srcIdx < 0 {
		return
	}
	tgtIdx := g.EnsureNode(target)
	if tgtIdx < 0 {
		return
	}

	if i := g.findEdge(srcIdx, tgtIdx); i >= 0 {
		g.edges[srcIdx][i].R = r
		g.edges[srcIdx][i].S = s
		return
	}

	if g.edgeCounts[srcIdx] >= MaxEdgesPerNode {
		g.warnCapacity("edge", source+"->"+target)
		return
	}
	slot := g.edgeCounts[srcIdx]
	g.edges[srcIdx][slot] = Link{Target: tgtIdx, R: r, S: s, used: true}
	g.edgeCounts[srcIdx]++
}

// LinkCounters returns the (r,s) counters of source->target, and whether the
// link exists.
func (g *Graph) LinkCounters(source, target string) (r, s int, ok bool) {
	srcIdx := g.FindNode(source)
	if srcIdx < 0 {
		return 0, 0, false
	}
	tgtIdx := g.FindNode(target)
	if tgtIdx < 0 {
		return 0, 0, false
	}
	i := g.findEdge(srcIdx, tgtIdx)
	if i < 0 {
		return 0, 0, false
	}
	return g.edges[srcIdx][i].R, g.edges[srcIdx][i].S, true
}

// OutEdge is a (target broker id, r, s) tuple returned by IterOutEdges.
type OutEdge struct {
	Target string
	R      int
	S      int
}

// IterOutEdges returns the out-edges of node id in insertion order.
func (g *Graph) IterOutEdges(id string) []OutEdge {
	idx := g.FindNode(id)
	if idx < 0 {
		return nil
	}
	out := make([]OutEdge, 0, g.edgeCounts[idx])
	for i := 0; i < g.edgeCounts[idx]; i++ {
		l := g.edges[idx][i]
		if !l.used {
			continue
		}
		out = append(out, OutEdge{Target: g.nodes[l.Target].ID, R: l.R, S: l.S})
	}
	return out
}

// PointTrust computes trust(r,s) = r/(r+s+2) + δ·2/(r+s+2).
//
// trust(0,0) = 0.5; rises monotonically with r, falls monotonically with s;
// always in [0,1].
func PointTrust(r, s int) float64 {
	denom := float64(r + s + 2)
	return float64(r)/denom + BaseRateDelta*2/denom
}

// DirectTrust returns trust(r,s) of the source->target link, or
// PointTrust(0,0) = 0.5 if the link is absent.
func (g *Graph) DirectTrust(source, target string) float64 {
	r, s, ok := g.LinkCounters(source, target)
	if !ok {
		return PointTrust(0, 0)
	}
	return PointTrust(r, s)
}

// StaticTrustToCounters inverts PointTrust under δ=0.5 so that
// PointTrust(r,s) ≈ t, for converting a shared map's static trust value
// into synthetic (r,s) counters.
func StaticTrustToCounters(t float64) (r, s int) {
	switch {
	case t > 0.5:
		r = int(math.Round((2*t - 1) / (1 - t)))
		return r, 0
	case t > 0:
		s = int(math.Round(1/t - 2))
		return 0, s
	default:
		return 0, 99
	}
}

// LeastTrustworthyPathScore finds all simple directed paths start->end and
// returns the minimum path average (arithmetic mean of per-edge direct
// trust) across them. Returns 1 if start == end, 0 if no path exists.
// Depth-first with a visited bitset; bounded by MaxNodes.
func (g *Graph) LeastTrustworthyPathScore(start, end string) float64 {
	if start == end {
		return 1
	}
	startIdx := g.FindNode(start)
	endIdx := g.FindNode(end)
	if startIdx < 0 || endIdx < 0 {
		return 0
	}

	var visited [MaxNodes]bool
	best := math.Inf(1)
	found := false

	var dfs func(node int, sumTrust float64, depth int)
	dfs = func(node int, sumTrust float64, depth int) {
		visited[node] = true
		defer func() { visited[node] = false }()

		for i := 0; i < g.edgeCounts[node]; i++ {
			l := g.edges[node][i]
			if !l.used || visited[l.Target] {
				continue
			}
			trust := PointTrust(l.R, l.S)
			if l.Target == endIdx {
				avg := (sumTrust + trust) / float64(depth+1)
				if avg < best {
					best = avg
					found = true
				}
				continue
			}
			dfs(l.Target, sumTrust+trust, depth+1)
		}
	}
	dfs(startIdx, 0, 0)

	if !found {
		return 0
	}
	return best
}

// Reset clears the graph back to empty, used before reloading the shared map.
func (g *Graph) Reset() {
	*g = Graph{OnCapacityExceeded: g.OnCapacityExceeded}
}

// LoadSharedMap reads a CSV-like file of `source,target,static_trust` rows
// into the graph, converting static trust to (r,s) counters. Lines starting
// with '#' are comments; malformed lines are skipped, not fatal.
func (g *Graph) LoadSharedMap(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open shared map %s: %w", path, err)
	}
	defer f.Close()

	// Other brokers may be rewriting this file concurrently; a shared
	// advisory lock avoids reading a half-written row. Best-effort: a lock
	// failure (e.g. on a filesystem that doesn't support flock) still lets
	// the read proceed rather than blocking startup.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err == nil {
		defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}

	return g.loadSharedMapFrom(f)
}

func (g *Graph) loadSharedMapFrom(f *os.File) error {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		source := strings.TrimSpace(fields[0])
		target := strings.TrimSpace(fields[1])
		t, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil || source == "" || target == "" || t <= 0 || t >= 1 {
			continue
		}
		r, s := StaticTrustToCounters(t)
		g.SetLinkCounters(source, target, r, s)
	}
	return scanner.Err()
}
