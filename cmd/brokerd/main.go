// Command brokerd runs one trust-aware interceptor as a standalone pub/sub
// host: it loads broker options, builds the plugin, starts the hostsim
// dispatcher, and exposes a small chi-routed admin surface for health and
// trust-graph inspection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustmesh/interceptor/internal/config"
	"github.com/trustmesh/interceptor/internal/graph"
	"github.com/trustmesh/interceptor/internal/hostsim"
	"github.com/trustmesh/interceptor/internal/metrics"
	"github.com/trustmesh/interceptor/public/plugin"
)

func main() {
	configPath := flag.String("config", "broker.yaml", "path to broker options file")
	listenAddr := flag.String("listen", ":9001", "pub/sub listen address")
	flag.Parse()

	opts, err := config.Load(*configPath)
	if err != nil {
		log.Printf("brokerd: %v, falling back to defaults", err)
		opts = config.Default()
	}

	reg := prometheus.NewRegistry()
	metricsSet := metrics.NewSet(reg)

	p, err := plugin.Init(opts, metricsSet)
	if err != nil {
		log.Fatalf("brokerd: init plugin: %v", err)
	}
	defer p.Cleanup()

	server := hostsim.NewServer(*listenAddr, p.Context())

	stop := make(chan struct{})
	go func() {
		if err := server.Run(stop); err != nil {
			log.Printf("brokerd: hostsim server stopped: %v", err)
		}
	}()

	adminServer := &http.Server{Addr: opts.AdminAddr, Handler: adminRouter(p, reg)}
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("brokerd: admin server stopped: %v", err)
		}
	}()

	log.Printf("brokerd: broker=%s pubsub=%s admin=%s", opts.BrokerID, *listenAddr, opts.AdminAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("brokerd: shutting down")
	close(stop)
	server.Close()
	adminServer.Shutdown(context.Background())
}

func adminRouter(p *plugin.Plugin, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/graph", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graphSnapshot(p))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

func graphSnapshot(p *plugin.Plugin) map[string]interface{} {
	g := p.Context().Store.Graph
	nodes := make([]string, 0, g.NodeCount())
	edges := make([]map[string]interface{}, 0)
	for i := 0; i < g.NodeCount(); i++ {
		id := g.NodeID(i)
		nodes = append(nodes, id)
		for _, e := range g.IterOutEdges(id) {
			edges = append(edges, map[string]interface{}{
				"source": id,
				"target": e.Target,
				"r":      e.R,
				"s":      e.S,
				"trust":  graph.PointTrust(e.R, e.S),
			})
		}
	}
	return map[string]interface{}{
		"self":  p.Context().Self,
		"nodes": nodes,
		"edges": edges,
	}
}
