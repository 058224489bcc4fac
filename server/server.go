// Package server exposes the printer as a raw ESC/POS TCP port. Each client
// connection carries one job: bytes are collected until the client closes
// its side, then streamed to the printer in one piece.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxJobSize caps the bytes accepted for one job.
const DefaultMaxJobSize = 4 << 20

var ErrJobTooLarge = errors.New("job exceeds maximum size")

// Printer streams a complete ESC/POS job to a device. Implementations keep
// concurrent jobs from interleaving; the server does not queue them.
type Printer interface {
	Print(ctx context.Context, payload []byte) error
}

// Server represents a TCP server that forwards jobs to a printer
type Server struct {
	printer    Printer
	listener   net.Listener
	address    string
	maxJobSize int64
	mu         sync.Mutex
	running    bool
	clients    map[net.Conn]struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// New creates a new server instance
func New(p Printer, address string) *Server {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewWithLogger(p, address, logger)
}

// NewWithLogger creates a new server instance with a custom logger
func NewWithLogger(p Printer, address string, logger *zap.Logger) *Server {
	return &Server{
		printer:    p,
		address:    address,
		maxJobSize: DefaultMaxJobSize,
		clients:    make(map[net.Conn]struct{}),
		logger:     logger.Named("server"),
	}
}

// SetMaxJobSize changes the per-job byte limit; it must be called before Start.
func (s *Server) SetMaxJobSize(n int64) {
	s.maxJobSize = n
}

func (s *Server) listen(mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("starting server", zap.String("address", s.address), zap.String("mode", mode))

	if s.running {
		s.logger.Error("server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error("failed to start server", zap.Error(err))
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.logger.Info("server listening", zap.Stringer("address", listener.Addr()))
	return nil
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	if err := s.listen("blocking"); err != nil {
		return err
	}

	s.logger.Info("ready to accept connections")
	s.acceptConnections()
	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	if err := s.listen("async"); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	s.logger.Info("server started in background")

	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				s.logger.Debug("server shutting down, stopping accept loop")
				return
			}
			s.logger.Warn("error accepting connection", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		s.logger.Info("client connected", zap.Stringer("remote", conn.RemoteAddr()))
		go s.handleConnection(conn)
	}
}

// handleConnection reads one job from the client and prints it
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		s.logger.Info("client disconnected", zap.Stringer("remote", conn.RemoteAddr()))
	}()

	log := s.logger.With(zap.String("client", conn.RemoteAddr().String()))

	job, err := io.ReadAll(io.LimitReader(conn, s.maxJobSize+1))
	if err != nil {
		log.Warn("error reading from client", zap.Error(err))
		return
	}
	if int64(len(job)) > s.maxJobSize {
		log.Warn("dropping job", zap.Error(ErrJobTooLarge), zap.Int64("limit", s.maxJobSize))
		return
	}
	if len(job) == 0 {
		log.Debug("client sent no data")
		return
	}
	if !s.IsRunning() {
		log.Warn("server stopping, discarding partial job", zap.Int("bytes", len(job)))
		return
	}

	log.Info("received job", zap.Int("bytes", len(job)))

	if err := s.printer.Print(s.ctx, job); err != nil {
		log.Error("error printing job", zap.Error(err))
		return
	}
	log.Info("job printed", zap.Int("bytes", len(job)))
}

// Stop stops the TCP server, closing idle clients and waiting for jobs in
// progress to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("stop called but server is not running")
		return nil
	}

	s.logger.Info("stopping server")
	s.running = false
	listener := s.listener
	s.cancel()
	for c := range s.clients {
		if tcp, ok := c.(*net.TCPConn); ok {
			tcp.CloseRead()
		} else {
			c.Close()
		}
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.wg.Wait()
	s.logger.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the bound listener address while running, otherwise the
// configured address.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// GetPrinter returns the underlying printer
func (s *Server) GetPrinter() Printer {
	return s.printer
}
