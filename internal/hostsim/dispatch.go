// Package hostsim implements a minimal TCP pub/sub host that exercises the
// interceptor plugin the way a real broker would: every inbound publish is
// routed through interceptor.Context.OnMessage before being distributed to
// subscribers, and a ticker drives periodic OnTick refreshes.
//
// The interceptor's state (graph, ACL, trust store) is meant to be touched
// from a single logical thread. hostsim honors that by running exactly one
// dispatch goroutine per Server: connection goroutines only decode/encode
// wire frames and hand work to the dispatcher over a channel, collapsing
// all topic/interceptor mutation onto a single loop instead of per-topic
// mutexes.
package hostsim

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/trustmesh/interceptor/internal/interceptor"
)

// Request is the JSON-RPC style envelope agents send to the host.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the JSON-RPC style reply the host sends back.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// RPCError follows JSON-RPC 2.0 error conventions.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// connection is one agent's live TCP link.
type connection struct {
	id      string
	agentID string
	conn    net.Conn
	encoder *json.Encoder
}

// topic holds the set of subscribers for a given topic name.
type topic struct {
	subscribers []*connection
}

// job is a unit of work handed from a connection goroutine to the single
// dispatch loop: an RPC request to fulfill. Ticks reach the loop through its
// own ticker, not as jobs.
type job struct {
	req    *Request
	conn   *connection
	result chan *Response
}

// Server is the pub/sub host. It owns one Context and runs one dispatch
// goroutine; every other goroutine only moves bytes.
type Server struct {
	Addr string
	Ctx  *interceptor.Context

	TickInterval time.Duration

	listener net.Listener
	jobs     chan job

	connMux     sync.Mutex
	connections map[string]*connection

	topicMux sync.Mutex // guards only the topics map's existence, not delivery
	topics   map[string]*topic
}

// NewServer constructs a Server bound to addr, wrapping ctx.
func NewServer(addr string, ctx *interceptor.Context) *Server {
	tick := 5 * time.Second
	return &Server{
		Addr:         addr,
		Ctx:          ctx,
		TickInterval: tick,
		jobs:         make(chan job, 64),
		connections:  make(map[string]*connection),
		topics:       make(map[string]*topic),
	}
}

// Run listens on Addr and serves until stop is closed. It blocks.
func (s *Server) Run(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("hostsim: listen on %s: %w", s.Addr, err)
	}
	s.listener = ln

	go s.acceptLoop()
	s.dispatchLoop(stop)
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	defer netConn.Close()

	connID := fmt.Sprintf("conn_%d", time.Now().UnixNano())
	c := &connection{
		id:      connID,
		conn:    netConn,
		encoder: json.NewEncoder(netConn),
	}

	s.connMux.Lock()
	s.connections[connID] = c
	s.connMux.Unlock()
	defer func() {
		s.connMux.Lock()
		delete(s.connections, connID)
		s.connMux.Unlock()
	}()

	decoder := json.NewDecoder(netConn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}
		result := make(chan *Response, 1)
		s.jobs <- job{req: &req, conn: c, result: result}
		resp := <-result
		if err := c.encoder.Encode(resp); err != nil {
			return
		}
	}
}

// dispatchLoop is the single goroutine permitted to touch s.Ctx, s.topics,
// and route message decisions. It serializes RPC jobs and periodic ticks.
func (s *Server) dispatchLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.Ctx.OnTick(now)
		case j := <-s.jobs:
			j.result <- s.handle(j.req, j.conn)
		}
	}
}

func (s *Server) tickInterval() time.Duration {
	if s.TickInterval <= 0 {
		return 5 * time.Second
	}
	return s.TickInterval
}

func (s *Server) handle(req *Request, conn *connection) *Response {
	switch req.Method {
	case "connect":
		return s.handleConnect(req, conn)
	case "subscribe":
		return s.handleSubscribe(req, conn)
	case "publish":
		return s.handlePublish(req, conn)
	default:
		return &Response{ID: req.ID, Error: &RPCError{Code: -32601, Message: "method not found: " + req.Method}}
	}
}

func (s *Server) handleConnect(req *Request, conn *connection) *Response {
	var params struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{ID: req.ID, Error: &RPCError{Code: -32602, Message: "invalid params"}}
	}
	conn.agentID = params.AgentID
	return &Response{ID: req.ID, Result: "connected"}
}

func (s *Server) handleSubscribe(req *Request, conn *connection) *Response {
	var params struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{ID: req.ID, Error: &RPCError{Code: -32602, Message: "invalid params"}}
	}
	t := s.topicFor(params.Topic)
	for _, sub := range t.subscribers {
		if sub.id == conn.id {
			return &Response{ID: req.ID, Result: "subscribed"}
		}
	}
	t.subscribers = append(t.subscribers, conn)
	return &Response{ID: req.ID, Result: "subscribed"}
}

// handlePublish is the single point where inbound data crosses into the
// interceptor. The payload is whatever bytes the client sent as the message
// field; decisions from Ctx.OnMessage decide whether, and where, it lands.
func (s *Server) handlePublish(req *Request, conn *connection) *Response {
	var params struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{ID: req.ID, Error: &RPCError{Code: -32602, Message: "invalid params"}}
	}

	dec := s.Ctx.OnMessage(interceptor.Event{Topic: params.Topic, Payload: params.Payload})
	switch dec.Kind {
	case interceptor.KindDrop:
		return &Response{ID: req.ID, Result: "dropped:" + dec.Reason}
	case interceptor.KindPassThrough:
		s.deliver(params.Topic, conn, params.Payload)
		return &Response{ID: req.ID, Result: "published"}
	default: // KindForward
		s.deliver(dec.Topic, conn, dec.Payload)
		return &Response{ID: req.ID, Result: "published"}
	}
}

func (s *Server) topicFor(name string) *topic {
	s.topicMux.Lock()
	defer s.topicMux.Unlock()
	t, ok := s.topics[name]
	if !ok {
		t = &topic{}
		s.topics[name] = t
	}
	return t
}

func (s *Server) deliver(topicName string, from *connection, payload []byte) {
	t := s.topicFor(topicName)
	for _, sub := range t.subscribers {
		if sub.id == from.id {
			continue
		}
		if err := sub.encoder.Encode(payload); err != nil {
			log.Printf("hostsim: delivery to %s failed: %v", sub.id, err)
		}
	}
}
