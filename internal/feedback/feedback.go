// Package feedback implements the feedback handler: parsing the
// reserved-topic feedback payload and applying it to the local incoming
// links of the network graph.
package feedback

import "github.com/trustmesh/interceptor/internal/graph"

// NegativeMultiplier is μ, the negative-feedback asymmetry multiplier.
const NegativeMultiplier = 5

// Sign is the feedback polarity.
type Sign string

const (
	Positive Sign = "positive"
	Negative Sign = "negative"
)

// Feedback is the reserved-topic payload carrying a client's trust signal.
type Feedback struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Feedback Sign   `json:"feedback"`
}

// Apply mutates the source->target link counters in g according to fb:
//  1. target != self -> ignored.
//  2. link absent -> ignored (feedback never creates new links).
//  3. positive -> r++.
//  4. negative -> s += NegativeMultiplier.
//
// Returns true if a mutation happened, so the caller knows whether to
// persist the trust store.
func Apply(g *graph.Graph, self string, fb *Feedback) bool {
	if fb.Target != self {
		return false
	}
	r, s, ok := g.LinkCounters(fb.Source, fb.Target)
	if !ok {
		return false
	}

	switch fb.Feedback {
	case Positive:
		r++
	case Negative:
		s += NegativeMultiplier
	default:
		return false
	}

	g.SetLinkCounters(fb.Source, fb.Target, r, s)
	return true
}
