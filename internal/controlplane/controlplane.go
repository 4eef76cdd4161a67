// Package controlplane implements the external COMMAND/NOTIFY/DASHBOARD
// surface (spec §4.7, §6): an HTTP+WebSocket front door that looks up a
// stage by id and forwards COMMAND requests to it, and that conveys
// outbound NOTIFY/DASHBOARD events from stages back out to connected
// peers, optionally mirroring DASHBOARD events to an OSC UDP sink.
package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/speechflow/speechflow/internal/graph"
	"github.com/speechflow/speechflow/internal/logger"
	"github.com/speechflow/speechflow/internal/stage"
)

// requestBudget bounds every inbound COMMAND dispatch and each stage's
// handling of a DASHBOARD event (spec §4.7).
const requestBudget = 10 * time.Second

// maxParamBytes caps the combined length of a GET-form param path (spec §6).
const maxParamBytes = 1000

// Runtime is the subset of graph.Runtime the control plane depends on.
type Runtime interface {
	DispatchRequest(ctx context.Context, node string, args []string, timeout time.Duration) ([]string, error)
	BroadcastDashboard(ctx context.Context, evt stage.DashboardEvent, timeout time.Duration)
}

var _ Runtime = (*graph.Runtime)(nil)
var _ graph.Broadcaster = (*Server)(nil)

// Server is the control plane's HTTP+WS front door. It implements
// graph.Broadcaster so a GraphRuntime can be wired to it with
// SetBroadcaster before Construct.
type Server struct {
	rt     Runtime
	blocks []DashboardBlock
	hub    *hub
	osc    *oscSink

	httpSrv *http.Server
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithDashboardBlocks attaches the descriptive block metadata of the
// "-d type:id:name[,...]" flag; Blocks returns it.
func WithDashboardBlocks(blocks []DashboardBlock) Option {
	return func(s *Server) { s.blocks = blocks }
}

// WithOSCSink enables the optional OSC UDP dashboard mirror to host:port.
func WithOSCSink(host string, port int) Option {
	return func(s *Server) { s.osc = newOSCSink(host, port) }
}

// NewServer creates a control plane bound to rt. Call ListenAndServe to
// begin serving; attach it to rt with rt.SetBroadcaster(srv) before rt.Construct.
func NewServer(rt Runtime, opts ...Option) *Server {
	s := &Server{rt: rt, hub: newHub()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const readHeaderTimeout = 5 * time.Second

// Handler builds the control plane's HTTP handler: the GET path form, the
// POST JSON form, and the WebSocket upgrade, all under /api, plus the
// Prometheus metrics endpoint at GET /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", s.hub.serveWS)
	mux.HandleFunc("GET /api/{path...}", s.handleGetCommand)
	mux.HandleFunc("POST /api", s.handlePostCommand)
	mux.Handle("GET /metrics", graph.MetricsHandler())
	return mux
}

// ListenAndServe starts the HTTP server on addr and blocks until it stops.
// Run it in its own goroutine; stop it with Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	go s.hub.run()

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("controlplane: listen %s: %w", addr, err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type apiResponse struct {
	Response string `json:"response"`
	Data     string `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleGetCommand serves GET /api/{req}/{node}/{params*}. req must be
// COMMAND; the trailing path segments become the argument list.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/")
	segments := strings.Split(trimmed, "/")
	if len(segments) < 2 || segments[0] != "COMMAND" {
		writeJSON(w, http.StatusExpectationFailed, apiResponse{Response: "ERROR", Data: "request must be COMMAND"})
		return
	}

	node := segments[1]
	args := segments[2:]

	var total int
	for _, a := range args {
		total += len(a)
	}
	if total > maxParamBytes {
		writeJSON(w, http.StatusBadRequest, apiResponse{Response: "ERROR", Data: "params exceed 1000 bytes"})
		return
	}

	s.dispatch(r.Context(), w, node, args)
}

type commandRequest struct {
	Request string   `json:"request"`
	Node    string   `json:"node"`
	Args    []string `json:"args"`
}

// handlePostCommand serves POST /api: a JSON COMMAND envelope.
func (s *Server) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Response: "ERROR", Data: "malformed JSON body"})
		return
	}
	if req.Request != "COMMAND" {
		writeJSON(w, http.StatusExpectationFailed, apiResponse{Response: "ERROR", Data: "request must be COMMAND"})
		return
	}

	var total int
	for _, a := range req.Args {
		total += len(a)
	}
	if total > maxParamBytes {
		writeJSON(w, http.StatusBadRequest, apiResponse{Response: "ERROR", Data: "params exceed 1000 bytes"})
		return
	}

	s.dispatch(r.Context(), w, req.Node, req.Args)
}

func (s *Server) dispatch(ctx context.Context, w http.ResponseWriter, node string, args []string) {
	resp, err := s.rt.DispatchRequest(ctx, node, args, requestBudget)
	if err != nil {
		logger.Stage("controlplane").Warn().Err(err).Str("node", node).Msg("command dispatch failed")
		writeJSON(w, http.StatusExpectationFailed, apiResponse{Response: "ERROR", Data: err.Error()})
		return
	}

	s.SendResponse(node, resp)
	writeJSON(w, http.StatusOK, apiResponse{Response: "OK"})
}

// SendResponse implements graph.Broadcaster: a NOTIFY push to every
// connected WS peer.
func (s *Server) SendResponse(stageID string, args []string) {
	s.hub.publish(outboundMessage{Response: "NOTIFY", Node: stageID, Args: args})
}

// SendDashboard implements graph.Broadcaster: delivery to every stage's
// ReceiveDashboard hook through the runtime, a DASHBOARD push to every
// connected WS peer, and, if configured, a mirrored OSC message.
func (s *Server) SendDashboard(evt stage.DashboardEvent) {
	s.rt.BroadcastDashboard(context.Background(), evt, requestBudget)

	value := fmt.Sprintf("%v", evt.Value)
	s.hub.publish(outboundMessage{
		Response: "DASHBOARD",
		Node:     "",
		Args:     []string{string(evt.Class), evt.ID, evt.Kind, value},
	})
	if s.osc != nil {
		s.osc.send(string(evt.Class), evt.ID, evt.Kind, evt.Value)
	}
}

// Blocks returns the dashboard block metadata configured at startup.
func (s *Server) Blocks() []DashboardBlock {
	return s.blocks
}
