// Package truststore implements the durable per-broker store of
// incoming-link (r,s) counters: load/save of the local trust rows, and
// the periodic tick that reloads the shared network map and overlays the
// broker's authoritative local counters on top of it.
package truststore

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trustmesh/interceptor/internal/graph"
)

// DefaultRefreshInterval is the default trust-map reload cadence.
const DefaultRefreshInterval = 10 * time.Second

// Store owns the broker's in-memory graph and its durability.
type Store struct {
	Graph *graph.Graph

	self             string
	sharedMapPath    string
	localStorePath   string
	refreshInterval  time.Duration
	lastRefresh      time.Time

	// OnWarn/OnError, if set, receive io-error and capacity-exceeded
	// notices without this package depending on a logger implementation.
	OnWarn  func(msg string)
	OnError func(msg string, err error)
}

// Options configures a new Store.
type Options struct {
	Self            string
	SharedMapPath   string
	LocalStorePath  string
	RefreshInterval time.Duration
}

// New constructs a Store and its graph, but does not read any files yet —
// call Init to perform the startup load.
func New(opts Options) *Store {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	s := &Store{
		self:            opts.Self,
		sharedMapPath:   opts.SharedMapPath,
		localStorePath:  opts.LocalStorePath,
		refreshInterval: interval,
	}
	s.Graph = graph.New()
	s.Graph.OnCapacityExceeded = func(kind, id string) {
		if s.OnWarn != nil {
			s.OnWarn(fmt.Sprintf("capacity_exceeded: dropped %s %s", kind, id))
		}
	}
	return s
}

// Init loads the shared map then overlays the local store: the graph is
// built at startup from the shared map file and then overlaid with the
// broker's own local counters. I/O errors are logged, not fatal — the
// broker proceeds with whatever state it managed to load.
func (s *Store) Init() {
	if err := s.Graph.LoadSharedMap(s.sharedMapPath); err != nil {
		s.warnIO("load shared map", err)
	}
	if err := s.loadLocal(); err != nil {
		s.warnIO("load local trust store", err)
	}
	s.lastRefresh = time.Now()
}

func (s *Store) warnIO(action string, err error) {
	if s.OnError != nil {
		s.OnError(action, err)
	}
}

// loadLocal reads `source,r,s` rows and overwrites the corresponding
// source->self links in the graph. Rows for unknown source nodes are still
// applied — overlay introduces the source node if the shared map didn't
// already have it, matching "local rows overwriting global rows".
func (s *Store) loadLocal() error {
	f, err := os.Open(s.localStorePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

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
		r, errR := strconv.Atoi(strings.TrimSpace(fields[1]))
		sVal, errS := strconv.Atoi(strings.TrimSpace(fields[2]))
		if source == "" || errR != nil || errS != nil || r < 0 || sVal < 0 {
			continue
		}
		s.Graph.SetLinkCounters(source, s.self, r, sVal)
	}
	return scanner.Err()
}

// Save atomically rewrites the local trust store file with the current
// incoming-link rows (links whose target is self).
func (s *Store) Save() error {
	tmp := s.localStorePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		s.warnIO("save local trust store", err)
		return err
	}

	var writeErr error
	w := bufio.NewWriter(f)
	for i := 0; i < s.Graph.NodeCount(); i++ {
		source := s.Graph.NodeID(i)
		if source == s.self {
			continue
		}
		r, sVal, ok := s.Graph.LinkCounters(source, s.self)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s,%d,%d\n", source, r, sVal); err != nil {
			writeErr = err
			break
		}
	}
	if writeErr == nil {
		writeErr = w.Flush()
	}
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(tmp)
		s.warnIO("save local trust store", writeErr)
		return writeErr
	}
	if closeErr != nil {
		s.warnIO("save local trust store", closeErr)
		return closeErr
	}
	if err := os.Rename(tmp, s.localStorePath); err != nil {
		s.warnIO("save local trust store", err)
		return err
	}
	return nil
}

// Tick runs on each host tick. Every refreshInterval it reloads the shared
// map from zero and overlays the local store on top. A tick that fires
// before the interval has elapsed is a no-op.
func (s *Store) Tick(now time.Time) {
	if now.Sub(s.lastRefresh) < s.refreshInterval {
		return
	}
	s.Graph.Reset()
	if err := s.Graph.LoadSharedMap(s.sharedMapPath); err != nil {
		s.warnIO("reload shared map", err)
	}
	if err := s.loadLocal(); err != nil {
		s.warnIO("reload local trust store", err)
	}
	s.lastRefresh = now
}

// Self returns the local broker identity this store overlays onto.
func (s *Store) Self() string { return s.self }
