package interceptor

import (
	"github.com/trustmesh/interceptor/internal/acl"
	"github.com/trustmesh/interceptor/internal/config"
	"github.com/trustmesh/interceptor/internal/evaluator"
	"github.com/trustmesh/interceptor/internal/logx"
	"github.com/trustmesh/interceptor/internal/metrics"
	"github.com/trustmesh/interceptor/internal/truststore"
)

// NewContext builds a Context from host options, loading the ACL table and
// the trust store/graph the way the host's init(options) callback expects.
// metricsSet may be nil if the host doesn't want Prometheus instrumentation.
func NewContext(opts config.Options, metricsSet *metrics.Set) (*Context, error) {
	log, err := logx.New(opts.LogFile, opts.BrokerID)
	if err != nil {
		return nil, err
	}

	aclTable := acl.New()
	aclTable.OnCapacityExceeded = func(line string) {
		log.With(map[string]interface{}{"component": "acl", "line": line}).Warn("capacity_exceeded: dropped acl rule")
	}
	if _, err := aclTable.LoadFile(opts.ACLFile); err != nil {
		log.With(map[string]interface{}{"component": "acl"}).Error("io_error: " + err.Error())
		aclTable = acl.New()
	}

	store := truststore.New(truststore.Options{
		Self:            opts.BrokerID,
		SharedMapPath:   opts.NetworkMapFile,
		LocalStorePath:  opts.TrustStorePath(),
		RefreshInterval: opts.RefreshInterval(),
	})
	store.OnWarn = func(msg string) {
		log.With(map[string]interface{}{"component": "graph"}).Warn(msg)
	}
	store.OnError = func(msg string, err error) {
		log.With(map[string]interface{}{"component": "truststore"}).Error("io_error: " + msg + ": " + err.Error())
	}
	store.Init()

	return &Context{
		Self:      opts.BrokerID,
		HMACKey:   []byte(opts.HMACKey),
		ACL:       aclTable,
		Store:     store,
		Evaluator: evaluator.New(),
		Log:       log,
		Metrics:   metricsSet,
	}, nil
}
