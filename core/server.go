// Package core runs the accept loop: it polls the listening socket, wraps
// each accepted connection in a handler and schedules it onto the worker
// pool. SIGINT/SIGTERM flip the running flag; the loop then closes the
// listener and stops the pool without aborting in-flight requests.
package core

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/config"
	"github.com/searchktools/swerve/core/cache"
	"github.com/searchktools/swerve/core/conn"
	"github.com/searchktools/swerve/core/poller"
	"github.com/searchktools/swerve/core/pools"
	"github.com/searchktools/swerve/core/router"
	"github.com/searchktools/swerve/core/wire"
)

// running is the signal-driven stop flag, the one true process global.
var running atomic.Bool

// Server owns the listener, the worker pool, the router and the cache.
// Configure routes and middleware before Run; nothing registers afterward.
type Server struct {
	cfg       *config.Config
	log       zerolog.Logger
	router    *router.Router
	fileCache *cache.FileCache
	pool      *pools.WorkerPool
	bufs      *pools.BytePool

	sock    *wire.Socket
	connSeq atomic.Uint64
	bound   atomic.Value // wire.Addr once listening
}

// NewServer builds a server from cfg. The static directory is configured
// only when it exists, so a server without assets still starts.
func NewServer(cfg *config.Config, log zerolog.Logger) *Server {
	fileCache := cache.NewFileCache(cfg.CacheEntries, log)
	rt := router.New(fileCache, cfg.StreamThreshold, log)

	if cfg.StaticDir != "" {
		if err := rt.SetStaticDir(cfg.StaticDir, cfg.StaticURLPrefix); err != nil {
			log.Warn().Err(err).Str("dir", cfg.StaticDir).Msg("static files disabled")
		}
	}

	return &Server{
		cfg:       cfg,
		log:       log,
		router:    rt,
		fileCache: fileCache,
		pool:      pools.NewWorkerPool(cfg.Workers, log),
		bufs:      pools.NewBytePool(),
	}
}

// Router exposes the routing engine for registration.
func (s *Server) Router() *router.Router { return s.router }

// Cache exposes the file cache.
func (s *Server) Cache() *cache.FileCache { return s.fileCache }

// BoundAddr reports the listening address once Run has bound the socket.
func (s *Server) BoundAddr() (wire.Addr, bool) {
	v := s.bound.Load()
	if v == nil {
		return wire.Addr{}, false
	}
	return v.(wire.Addr), true
}

// Shutdown flips the running flag; the accept loop notices within one poll
// interval. Safe from any goroutine.
func (s *Server) Shutdown() { running.Store(false) }

// Run binds, listens and drives the accept loop until a signal or
// Shutdown. Bind and listen failures are fatal and returned; accept
// failures are logged and the loop continues.
func (s *Server) Run() error {
	s.installSignalHandler()

	sock, err := wire.NewServerSocket()
	if err != nil {
		return err
	}
	s.sock = sock

	if err := sock.SetReuseAddr(); err != nil {
		sock.Close()
		return err
	}
	addr := wire.Addr{Host: s.cfg.Host, Port: uint16(s.cfg.Port)}
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return err
	}
	if err := sock.Listen(s.cfg.Backlog); err != nil {
		sock.Close()
		return err
	}
	// Set before the address is published, so a Shutdown issued once
	// BoundAddr reports true is never overwritten.
	running.Store(true)
	if local, err := sock.LocalAddr(); err == nil {
		s.bound.Store(local)
	}

	p, err := poller.New()
	if err != nil {
		sock.Close()
		return fmt.Errorf("poller: %w", err)
	}
	defer p.Close()
	if err := p.Add(sock.FD()); err != nil {
		sock.Close()
		return fmt.Errorf("poller add: %w", err)
	}

	s.log.Info().Str("addr", addr.String()).Int("workers", s.cfg.Workers).Msg("server listening")

	for running.Load() {
		fds, err := p.Wait(s.cfg.PollIntervalMs)
		if err != nil {
			s.log.Error().Err(err).Msg("poll error")
			continue
		}
		for _, fd := range fds {
			if fd == sock.FD() {
				s.acceptOne()
			}
		}
	}

	s.log.Info().Msg("server shutting down")
	sock.Close()
	s.pool.Stop()
	return nil
}

// acceptOne takes a single pending connection and hands it to the pool.
func (s *Server) acceptOne() {
	client, peer, err := s.sock.Accept()
	if err != nil {
		s.log.Error().Err(err).Msg("accept error")
		return
	}

	connID := s.connSeq.Add(1)
	s.log.Info().Uint64("conn", connID).Str("peer", peer.String()).Msg("got connection")

	handler := conn.NewHandler(client, peer, s.router, s.handlerConfig(), s.bufs, connID, s.log)
	if !s.pool.Enqueue(handler.Handle) {
		// Pool already stopped; the task will never run, so this owner
		// closes the socket.
		client.Close()
	}
}

func (s *Server) handlerConfig() conn.Config {
	return conn.Config{
		RecvTimeout:      time.Duration(s.cfg.RecvTimeoutSec) * time.Second,
		SendTimeout:      time.Duration(s.cfg.SendTimeoutSec) * time.Second,
		MaxHeaderSize:    s.cfg.MaxHeaderSize,
		MaxContentLength: s.cfg.MaxContentLength,
		MaxRequests:      s.cfg.MaxRequests,
		StreamBufferSize: s.cfg.StreamBufferSize,
		Debug:            s.cfg.Debug,
	}
}

// installSignalHandler registers SIGINT/SIGTERM to flip the running flag.
func (s *Server) installSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		s.log.Info().Str("signal", sig.String()).Msg("signal received, stopping")
		running.Store(false)
	}()
}
