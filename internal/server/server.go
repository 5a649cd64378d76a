// Package server accepts raw TCP connections and hands each one to a fixed
// pool of workers. Every connection carries at most one request and gets at
// most one response before it is closed.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/metrics"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultWorkers      = 32
	DefaultQueueSize    = 128
	DefaultReadTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

type Options struct {
	Addr         string
	Workers      int
	QueueSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize < 0 {
		o.QueueSize = 0
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = wire.DefaultMaxBodyBytes
	}
	return o
}

type Server struct {
	handler wire.Handler
	opts    Options
	logger  *zap.Logger
}

func New(handler wire.Handler, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler: handler,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// ListenAndServe binds opts.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. Connections already
// queued when ctx ends are still answered; Serve returns once every worker
// has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting server",
		zap.String("address", ln.Addr().String()),
		zap.Int("workers", s.opts.Workers),
		zap.Int("queue_size", s.opts.QueueSize))

	jobs := make(chan net.Conn, s.opts.QueueSize)

	// Handlers keep running past shutdown so queued connections are served.
	baseCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(baseCtx, jobs)
		}()
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	err := s.acceptLoop(ctx, ln, jobs)
	close(stop)
	close(jobs)
	wg.Wait()
	metrics.SetQueueDepth(0)

	s.logger.Info("Server stopped")
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, jobs chan<- net.Conn) error {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("Accept failed, retrying",
					zap.Duration("delay", tempDelay),
					zap.Error(err))
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		// Blocks while every worker is busy and the queue is full.
		select {
		case jobs <- conn:
			metrics.SetQueueDepth(len(jobs))
		case <-ctx.Done():
			conn.Close()
			metrics.RecordConnection("rejected")
			return nil
		}
	}
}

func (s *Server) worker(ctx context.Context, jobs <-chan net.Conn) {
	for conn := range jobs {
		metrics.SetQueueDepth(len(jobs))
		metrics.WorkerBusy()
		s.handleConn(ctx, conn)
		metrics.WorkerIdle()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := s.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", remote))

	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		log.Debug("Failed to set read deadline", zap.Error(err))
		metrics.RecordConnection("error")
		return
	}

	br := bufio.NewReader(conn)
	if _, err := br.Peek(1); err != nil {
		log.Debug("Connection closed before sending data", zap.Error(err))
		metrics.RecordConnection("empty")
		return
	}

	result := "ok"
	var resp *wire.Response

	req, err := wire.ReadRequest(br, s.opts.MaxBodyBytes)
	switch {
	case err == nil:
		req.RemoteAddr = remote
		log.Debug("Request received", zap.Stringer("request", req))
		resp = s.handler.Serve(ctx, req)
		if resp == nil {
			resp = wire.Message(http.StatusInternalServerError, "Internal server error")
		}
	case core.KindOf(err) == core.KindParse:
		log.Debug("Malformed request", zap.Error(err))
		result = "malformed"
		resp = wire.Message(http.StatusBadRequest, "Malformed request")
	default:
		log.Debug("Failed to read request", zap.Error(err))
		metrics.RecordConnection("read_error")
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		log.Debug("Failed to set write deadline", zap.Error(err))
	}
	if _, err := resp.WriteTo(conn); err != nil {
		log.Warn("Failed to write response", zap.Int("status", resp.Status), zap.Error(err))
		metrics.RecordConnection("write_error")
		return
	}
	metrics.RecordConnection(result)
}
