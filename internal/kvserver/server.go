// Package kvserver implements the TCP acceptor and request-dispatch loop:
// it binds a listener, hands each accepted connection to a worker-pool
// job, decodes framed commands, and invokes the storage engine.
package kvserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/pool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds everything the server needs beyond the engine and pool it
// is handed.
type Config struct {
	// Addr is the TCP address the KV wire protocol listens on, e.g.
	// "127.0.0.1:4000".
	Addr string
	// AdminAddr is the HTTP address serving /healthz and /metrics. Empty
	// disables the admin surface entirely.
	AdminAddr string
	// LockDir is the working directory the engine-lock file is checked
	// against. Empty means the process's current working directory.
	LockDir string
	// ConnRateLimit bounds accepted connections per second; zero disables
	// rate limiting.
	ConnRateLimit float64
	// ConnRateBurst is the limiter's burst size; ignored when
	// ConnRateLimit is zero.
	ConnRateBurst int
}

// Server owns a TCP listener, a storage engine handle, and a thread pool.
type Server struct {
	cfg     Config
	engine  engine.Engine
	pool    pool.Pool
	logger  *zap.Logger
	limiter *rate.Limiter
	metrics *prometheus.Registry

	listener net.Listener
	adminSrv *http.Server
	ready    atomic.Bool
}

// New constructs a Server. It performs no I/O until Start is called. reg
// may be nil, in which case the admin /metrics endpoint falls back to the
// default global prometheus registry.
func New(cfg Config, eng engine.Engine, workers pool.Pool, logger *zap.Logger, reg *prometheus.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, engine: eng, pool: workers, logger: logger, metrics: reg}
	if cfg.ConnRateLimit > 0 {
		burst := cfg.ConnRateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ConnRateLimit), burst)
	}
	return s
}

// Start binds the TCP listener, optionally starts the admin HTTP surface,
// checks the engine-lock file, and runs the accept loop until ctx is
// canceled or the listener errors. Start blocks until the accept loop
// exits.
func (s *Server) Start(ctx context.Context) error {
	if err := checkEngineLock(s.cfg.LockDir, s.engine.Name()); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "binding tcp listener", err)
	}
	s.listener = listener
	s.logger.Info("kv server listening", zap.String("addr", s.cfg.Addr), zap.String("engine", s.engine.Name()))

	if s.cfg.AdminAddr != "" {
		mux := newAdminMux(&s.ready, s.metrics)
		s.adminSrv = &http.Server{Addr: s.cfg.AdminAddr, Handler: mux}
		go func() {
			s.logger.Info("admin http surface listening", zap.String("addr", s.cfg.AdminAddr))
			if err := s.adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("admin http surface stopped", zap.Error(err))
			}
		}()
	}

	s.ready.Store(true)

	go func() {
		<-ctx.Done()
		s.ready.Store(false)
		_ = listener.Close()
		if s.adminSrv != nil {
			_ = s.adminSrv.Close()
		}
	}()

	return s.acceptLoop(ctx, listener)
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.logger.Error("accept failed, stopping acceptor", zap.Error(err))
			return kvserr.Wrap(kvserr.Io, "accepting connection", err)
		}
		s.pool.Submit(func() { s.handleConn(conn) })
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	reader := bufio.NewReader(conn)
	ctx := context.Background()

	for {
		resp, closeConn := s.handleOne(ctx, reader)
		if resp != nil {
			if _, err := conn.Write(resp); err != nil {
				s.logger.Warn("writing response failed, closing connection",
					zap.String("remote", remote), zap.Error(err))
				return
			}
		}
		if closeConn {
			return
		}
	}
}

// handleOne decodes one request frame, dispatches it, and returns the
// encoded response to write (nil if the frame itself could not be
// decoded) and whether the connection should now close.
func (s *Server) handleOne(ctx context.Context, reader *bufio.Reader) ([]byte, bool) {
	msg, err := decodeRequest(reader)
	if err != nil {
		if !isBenignEOF(err) {
			s.logger.Info("connection closed after decode error", zap.Error(err))
		}
		return nil, true
	}
	resp := dispatch(ctx, s.engine, msg)
	return encodeResponse(resp), false
}

func isBenignEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
