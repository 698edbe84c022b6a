// Package interceptor implements the message interceptor: the glue that
// parses, authenticates, authorizes, trust-gates, and signs every inbound
// message, and that routes feedback-topic payloads to the feedback handler
// instead of the data plane.
//
// Context is the single broker-owned state value: one struct owned by the
// plugin, no package-level globals, passed as an opaque handle by the host
// to each callback.
package interceptor

import (
	"fmt"
	"time"

	"github.com/trustmesh/interceptor/internal/acl"
	"github.com/trustmesh/interceptor/internal/evaluator"
	"github.com/trustmesh/interceptor/internal/feedback"
	"github.com/trustmesh/interceptor/internal/logx"
	"github.com/trustmesh/interceptor/internal/mac"
	"github.com/trustmesh/interceptor/internal/metrics"
	"github.com/trustmesh/interceptor/internal/tokenat"
	"github.com/trustmesh/interceptor/internal/truststore"
)

// FeedbackTopic is the reserved control topic consumed by the feedback
// handler rather than delivered on the data plane.
const FeedbackTopic = "internal/feedback"

// FeedbackProcessedTopic is the sentinel the feedback topic is rewritten to
// before the host's normal delivery path sees it.
const FeedbackProcessedTopic = "internal/feedback/processed"

// Decision is a tagged variant: exactly one of Forward, Drop, or
// PassThrough is populated, signaled by Kind.
type Decision struct {
	Kind DecisionKind

	// Forward
	Payload []byte
	Topic   string // may differ from the inbound topic (feedback rewrite)

	// Drop
	Reason string
}

// DecisionKind tags which variant of Decision is populated.
type DecisionKind int

const (
	KindForward DecisionKind = iota
	KindDrop
	KindPassThrough
)

func (k DecisionKind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindDrop:
		return "drop"
	case KindPassThrough:
		return "pass_through"
	default:
		return "unknown"
	}
}

// String renders a Decision for operator-facing output (logs, CLI replay).
func (d Decision) String() string {
	switch d.Kind {
	case KindDrop:
		return fmt.Sprintf("drop reason=%s", d.Reason)
	case KindPassThrough:
		return "pass_through"
	default:
		return fmt.Sprintf("forward topic=%s bytes=%d", d.Topic, len(d.Payload))
	}
}

// Event is one inbound message delivered by the host's on_message(event)
// callback.
type Event struct {
	Topic   string
	Payload []byte
}

// Context is the broker-owned state bundle: ACL table, trust store/graph,
// MAC key, self identity, evaluator, logger, and metrics sink. The host
// holds this as an opaque handle and passes it to every callback.
type Context struct {
	Self    string
	HMACKey []byte

	ACL       *acl.Table
	Store     *truststore.Store
	Evaluator *evaluator.Evaluator
	Log       *logx.Logger
	Metrics   *metrics.Set
}

// OnMessage runs parse, MAC verification, ACL check, trust gate, and
// signing for one inbound event and returns the disposition the host
// should act on. It never panics or returns an error the host must
// propagate — every path ends in an explicit Decision.
func (c *Context) OnMessage(ev Event) Decision {
	if ev.Topic == FeedbackTopic {
		return c.handleFeedback(ev)
	}

	at, err := tokenat.Parse(ev.Payload)
	if err != nil {
		if err == tokenat.ErrNotJSON {
			if c.Metrics != nil {
				c.Metrics.RecordPassThrough()
			}
			return Decision{Kind: KindPassThrough}
		}
		c.logDrop("malformed_json", "WARN", ev.Topic, nil, err)
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}

	stripped, tag := at.StripMAC()
	noMAC, err := stripped.SerializeWithoutMAC()
	if err != nil || !mac.Verify(c.HMACKey, noMAC, tag) {
		c.logDrop("mac_mismatch", "WARN", ev.Topic, at.Signers, nil)
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}

	if !c.publishPermitted(at) {
		c.logDrop("acl_denied", "INFO", ev.Topic, at.Signers, nil)
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}

	if at.IssuerBroker != c.Self {
		last := at.LastSigner()
		decision := c.Evaluator.Decide(c.Store.Graph, last, c.Self)
		if c.Metrics != nil {
			c.Metrics.ObservePathScore(last, c.Self, decision.PathScore)
		}
		if !decision.Accept {
			if c.Log != nil {
				c.Log.With(map[string]interface{}{
					"component":    "evaluator",
					"reason":       "trust_denied",
					"signer_chain": at.Signers,
					"direct_trust": decision.DirectTrust,
					"path_score":   decision.PathScore,
				}).Info("dropping message: trust below threshold")
			}
			if c.Metrics != nil {
				c.Metrics.RecordDrop("trust_denied")
			}
			return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
		}
		if c.Log != nil {
			c.Log.With(map[string]interface{}{
				"component":    "evaluator",
				"signer_chain": at.Signers,
				"direct_trust": decision.DirectTrust,
				"path_score":   decision.PathScore,
			}).Info("accepting message: trust at or above threshold")
		}
	}

	at.AppendSigner(c.Self)
	resealed, err := at.SerializeWithoutMAC()
	if err != nil {
		c.logDrop("malformed_json", "WARN", ev.Topic, at.Signers, err)
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}
	newTag := mac.Compute(c.HMACKey, resealed)
	final := at.AttachMAC(newTag)
	out, err := final.Serialize()
	if err != nil {
		c.logDrop("malformed_json", "WARN", ev.Topic, at.Signers, err)
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}

	if c.Metrics != nil {
		c.Metrics.RecordForward()
	}
	return Decision{Kind: KindForward, Payload: out, Topic: ev.Topic}
}

func (c *Context) publishPermitted(at *tokenat.AT) bool {
	for _, topic := range at.PublishTopics {
		if !c.ACL.Permit(at.ClientID, topic, true) {
			return false
		}
	}
	return true
}

func (c *Context) handleFeedback(ev Event) Decision {
	fb, err := feedback.Parse(ev.Payload)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("feedback: " + err.Error())
		}
		return Decision{Kind: KindDrop, Reason: "ACL_DENIED"}
	}

	applied := feedback.Apply(c.Store.Graph, c.Self, fb)
	if applied {
		if err := c.Store.Save(); err != nil && c.Log != nil {
			c.Log.Error("feedback: failed to persist trust store: " + err.Error())
		}
	}
	if c.Metrics != nil {
		c.Metrics.RecordFeedback(string(fb.Feedback), applied)
	}
	return Decision{Kind: KindForward, Payload: ev.Payload, Topic: FeedbackProcessedTopic}
}

func (c *Context) logDrop(reason, level, topic string, signers []string, err error) {
	if c.Log == nil {
		return
	}
	entry := c.Log.With(map[string]interface{}{
		"component":    "interceptor",
		"reason":       reason,
		"topic":        topic,
		"signer_chain": signers,
	})
	msg := "dropping message"
	if err != nil {
		msg += ": " + err.Error()
	}
	switch level {
	case "WARN":
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
	if c.Metrics != nil {
		c.Metrics.RecordDrop(reason)
	}
}

// OnTick drives the periodic trust-map refresh.
func (c *Context) OnTick(now time.Time) {
	c.Store.Tick(now)
}

// Cleanup flushes the trust store, the host's cleanup() callback.
func (c *Context) Cleanup() error {
	return c.Store.Save()
}
