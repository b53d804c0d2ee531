package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/turingdb/turingdb/pkg/log"
	"github.com/turingdb/turingdb/pkg/metrics"
	"github.com/turingdb/turingdb/pkg/protocol"
	"github.com/turingdb/turingdb/pkg/storage"
)

// DefaultAddr is the loopback address the server listens on when none is
// configured.
const DefaultAddr = "127.0.0.1:4343"

// Server accepts client connections and serves the framed command protocol
// against one engine. Each connection runs as its own task; within a
// connection, requests are handled strictly in order.
type Server struct {
	engine *storage.Engine
	logger zerolog.Logger

	mu     sync.Mutex
	lis    net.Listener
	closed bool

	tasks *taskgroup.Group
}

// NewServer creates a server around an initialized engine.
func NewServer(engine *storage.Engine) *Server {
	return &Server{
		engine: engine,
		logger: log.WithComponent("api"),
		tasks:  taskgroup.New(nil),
	}
}

// Start listens on addr and serves until Stop is called. It blocks.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		lis.Close()
		return errors.New("server already stopped")
	}
	s.lis = lis
	s.mu.Unlock()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("listening")
	metrics.RegisterComponent("api", true, "listening on "+lis.Addr().String())

	for {
		conn, err := lis.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		metrics.ConnectionsTotal.Inc()
		metrics.ConnectionsActive.Inc()
		s.tasks.Go(func() error {
			defer metrics.ConnectionsActive.Dec()
			s.handleConn(conn)
			return nil
		})
	}
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	lis := s.lis
	s.mu.Unlock()

	if lis != nil {
		lis.Close()
	}
	s.tasks.Wait()
	metrics.UpdateComponent("api", false, "stopped")
}

// handleConn runs the request/reply loop for one connection. The loop ends
// when the client half-closes (clean), the stream fails, or a protocol
// violation forces a close after one error reply.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	logger := log.WithConn(uuid.NewString(), conn.RemoteAddr().String())
	logger.Debug().Msg("connected")

	for {
		payload, err := protocol.ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// client half-closed; nothing to report
				logger.Debug().Msg("disconnected")
			case errors.Is(err, protocol.ErrFrameTooLarge):
				logger.Warn().Err(err).Msg("oversize frame, closing")
				s.reply(conn, logger, protocol.Errors(
					"[TuringDB::<Frame>::(ERROR)-"+protocol.BufferCapacityExceeded+"]"))
			default:
				logger.Warn().Err(err).Msg("stream error, closing")
			}
			return
		}
		metrics.FrameBytes.WithLabelValues("in").Observe(float64(len(payload) + 8))

		cmd, err := protocol.UnmarshalCommand(payload)
		if err != nil {
			// one error reply, then a graceful close
			logger.Warn().Err(err).Msg("unparseable command, closing")
			s.reply(conn, logger, protocol.OpError(protocol.OpNotSupported, "MALFORMED_COMMAND"))
			return
		}

		res := Dispatch(s.engine, cmd)
		logger.Debug().Str("op", cmd.Op.String()).Str("outcome", res.Kind.String()).Msg("handled")
		if !s.reply(conn, logger, res) {
			return
		}
	}
}

// reply frames one result onto the stream; false means the stream is dead.
func (s *Server) reply(conn net.Conn, logger zerolog.Logger, res *protocol.Result) bool {
	out := res.Marshal()
	if err := protocol.WriteFrame(conn, out); err != nil {
		logger.Warn().Err(err).Msg("write failed")
		return false
	}
	metrics.FrameBytes.WithLabelValues("out").Observe(float64(len(out) + 8))
	return true
}
