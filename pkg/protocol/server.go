package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/daniel-olson-code/pipeline/pkg/admitter"
	"github.com/daniel-olson-code/pipeline/pkg/dag"
	"github.com/daniel-olson-code/pipeline/pkg/log"
	"github.com/daniel-olson-code/pipeline/pkg/metrics"
	"github.com/daniel-olson-code/pipeline/pkg/scheduler"
	"github.com/daniel-olson-code/pipeline/pkg/types"
	"github.com/rs/zerolog"
)

// unknownMethodResponse is the literal reply sent when a request names a
// method this server doesn't implement.
const unknownMethodResponse = "Unknown method."

// defaultHandlerPool mirrors the reference implementation's single
// connection_queue drained by a small fixed pool of handler goroutines.
const defaultHandlerPool = 16

// errorPayload is the JSON shape of the "error" method's payload.
type errorPayload struct {
	StepID string `json:"step_id"`
	Msg    string `json:"msg"`
	Trace  string `json:"trace"`
}

// Server is the Wire Protocol Server: it accepts one TCP connection per
// request, reads a single terminated frame, dispatches on method, and
// writes a response frame before closing only for get-steps and for the
// literal "Unknown method." reply.
type Server struct {
	dag       *dag.Engine
	scheduler *scheduler.Scheduler
	admitter  *admitter.Admitter
	logger    zerolog.Logger

	listener net.Listener
	connCh   chan net.Conn
	stopCh   chan struct{}
}

// NewServer builds a Server over the given component implementations.
func NewServer(d *dag.Engine, s *scheduler.Scheduler, a *admitter.Admitter) *Server {
	return &Server{
		dag:       d,
		scheduler: s,
		admitter:  a,
		logger:    log.WithComponent("protocol"),
		connCh:    make(chan net.Conn, defaultHandlerPool*4),
		stopCh:    make(chan struct{}),
	}
}

// ListenAndServe binds addr, starts the handler pool, and accepts
// connections until Stop is called or the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("protocol: listen %s: %w", addr, err)
	}
	s.listener = ln

	for i := 0; i < defaultHandlerPool; i++ {
		go s.handlerWorker()
	}

	s.logger.Info().Str("addr", addr).Msg("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
				return fmt.Errorf("protocol: accept: %w", err)
			}
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		s.connCh <- conn
	}
}

// Stop closes the listener, causing ListenAndServe to return.
func (s *Server) Stop() {
	close(s.stopCh)
	if s.listener != nil {
		s.listener.Close()
	}
}

// handlerWorker drains connCh and handles one connection at a time,
// recovering from any panic so a single malformed request never brings
// down the accept loop. Mirrors the reference implementation's
// server_worker draining connection_queue.
func (s *Server) handlerWorker() {
	for conn := range s.connCh {
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("recovered in connection handler")
		}
	}()

	frame, err := ReadFrame(conn)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read frame failed")
		return
	}

	method, payload, err := SplitMethod(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed frame")
		_ = WriteFrame(conn, []byte(unknownMethodResponse))
		return
	}

	if err := s.dispatch(conn, method, payload); err != nil {
		if errors.Is(err, types.ErrUnknownMethod) {
			metrics.ProtocolRequestsTotal.WithLabelValues(method, "unknown_method").Inc()
			_ = WriteFrame(conn, []byte(unknownMethodResponse))
			return
		}
		metrics.ProtocolRequestsTotal.WithLabelValues(method, "error").Inc()
		s.logger.Error().Err(err).Str("method", method).Msg("handler failed")
		return
	}
	metrics.ProtocolRequestsTotal.WithLabelValues(method, "ok").Inc()
}

func (s *Server) dispatch(conn net.Conn, method string, payload []byte) error {
	switch method {
	case "get-steps":
		return s.handleGetSteps(conn, payload)
	case "done":
		return s.dag.Done(string(payload))
	case "pending":
		return s.dag.Pending(string(payload))
	case "cancel":
		return s.dag.Cancel(string(payload))
	case "reset":
		return s.dag.Reset(string(payload))
	case "error":
		return s.handleError(payload)
	default:
		return types.ErrUnknownMethod
	}
}

func (s *Server) handleGetSteps(conn net.Conn, payload []byte) error {
	var scopes []string
	if err := json.Unmarshal(payload, &scopes); err != nil {
		return fmt.Errorf("get-steps: decode scopes: %w", err)
	}

	timer := metrics.NewTimer()
	steps, err := s.scheduler.SelectReady(scopes, scheduler.DefaultLimit)
	if err != nil {
		return fmt.Errorf("get-steps: %w", err)
	}
	timer.ObserveDuration(metrics.SchedulingLatency)
	metrics.StepsDispatched.Add(float64(len(steps)))

	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID
	}

	out, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("get-steps: encode response: %w", err)
	}
	return WriteFrame(conn, out)
}

func (s *Server) handleError(payload []byte) error {
	var p errorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("error: decode payload: %w", err)
	}
	return s.dag.Error(p.StepID, p.Msg, p.Trace)
}
