// Package evaluator implements the trust evaluator: the accept/drop
// decision over an inbound message's last signer, plus the
// least-trustworthy-path score computed for observability.
//
// Only the direct-trust gate on the last signer is authoritative; the path
// score is always computed and returned so callers can log or export it,
// but it never gates the decision in this build.
package evaluator

import "github.com/trustmesh/interceptor/internal/graph"

// Theta is θ, the local acceptance threshold on direct trust.
const Theta = 0.5

// Decision is the outcome of evaluating one inbound forwarded message.
type Decision struct {
	Accept      bool
	DirectTrust float64
	PathScore   float64
}

// Evaluator decides whether to accept a message based on the direct trust
// of its last signer toward self.
type Evaluator struct {
	// PathPolicy is reserved for a future configuration switch that would
	// gate on PathScore instead of DirectTrust. It is never read by Decide
	// in this build.
	PathPolicy bool
}

// New returns an Evaluator using the authoritative last-signer policy.
func New() *Evaluator {
	return &Evaluator{}
}

// Decide evaluates whether self should accept a message whose immediately
// preceding broker is lastSigner. For a local-origin message (issuer ==
// self) the caller is expected to have already bypassed this check — Decide itself
// has no special case for that because it has no notion of "who issued
// this message", only of graph trust between two ids.
func (e *Evaluator) Decide(g *graph.Graph, lastSigner, self string) Decision {
	direct := g.DirectTrust(lastSigner, self)
	path := g.LeastTrustworthyPathScore(lastSigner, self)
	return Decision{
		Accept:      direct >= Theta,
		DirectTrust: direct,
		PathScore:   path,
	}
}
