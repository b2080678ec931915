package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/ardnew/intstack/device"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/proto"
)

// Defaults.
const (
	DefaultPath     = "/run/int_stack"
	DefaultMode     = fs.FileMode(0o666)
	DefaultMaxConns = 64
)

// Option configures a Server.
type Option func(*Server)

// WithMode sets the permission bits of the socket node.
func WithMode(mode fs.FileMode) Option {
	return func(s *Server) { s.mode = mode }
}

// WithMaxConns bounds the number of concurrently served clients.
// Connections beyond the limit are closed immediately.
func WithMaxConns(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

// Server serves a device over a Unix socket.
type Server struct {
	path     string
	mode     fs.FileMode
	maxConns int
	dev      *device.Device

	mutex    sync.Mutex
	listener net.Listener
	pool     *ants.Pool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	conns  cmap.ConcurrentMap[string, net.Conn]
	nextID atomic.Uint64
}

// New creates a server for dev at path.
func New(path string, dev *device.Device, opts ...Option) *Server {
	s := &Server{
		path:     path,
		mode:     DefaultMode,
		maxConns: DefaultMaxConns,
		dev:      dev,
		conns:    cmap.New[net.Conn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the socket node path.
func (s *Server) Path() string { return s.path }

// Connections returns the number of connected clients.
func (s *Server) Connections() int { return s.conns.Count() }

// Published reports whether the node is being served.
func (s *Server) Published() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.listener != nil
}

// Publish creates the socket node and starts serving.
func (s *Server) Publish(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return pkg.ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := removeStale(s.path); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		ln.Close()
		return err
	}

	pool, err := ants.NewPool(s.maxConns,
		ants.WithNonblocking(true),
		ants.WithLogger(poolLogger{}),
		ants.WithPanicHandler(func(p any) {
			pkg.LogError(pkg.ComponentServer, "connection handler panic", "panic", p)
		}),
	)
	if err != nil {
		ln.Close()
		return err
	}

	s.listener = ln
	s.pool = pool
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.accept(ln)

	pkg.LogInfo(pkg.ComponentServer, "device node published",
		"path", s.path,
		"mode", s.mode)
	return nil
}

// Retract stops serving and removes the socket node. It is a no-op if
// the node is not published.
func (s *Server) Retract() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}

	s.cancel()
	err := s.listener.Close()
	for _, conn := range s.conns.Items() {
		conn.Close()
	}
	s.wg.Wait()
	s.pool.Release()

	if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
		err = rerr
	}
	s.listener = nil
	s.pool = nil

	pkg.LogInfo(pkg.ComponentServer, "device node retracted", "path", s.path)
	return err
}

// removeStale removes a socket left behind at path. Anything else at
// path is an error.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s: %w and is not a socket", path, fs.ErrExist)
	}
	pkg.LogDebug(pkg.ComponentServer, "removing stale socket", "path", path)
	return os.Remove(path)
}

func (s *Server) accept(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				pkg.LogWarn(pkg.ComponentServer, "accept failed", "error", err)
			}
			return
		}

		id := strconv.FormatUint(s.nextID.Add(1), 10)
		s.conns.Set(id, conn)
		if s.ctx.Err() != nil {
			// Retract already swept the connection set.
			s.conns.Remove(id)
			conn.Close()
			return
		}

		s.wg.Add(1)
		err = s.pool.Submit(func() {
			defer s.wg.Done()
			s.serve(id, conn)
		})
		if err != nil {
			s.wg.Done()
			s.conns.Remove(id)
			conn.Close()
			pkg.LogWarn(pkg.ComponentServer, "connection rejected",
				"conn", id,
				"error", err)
		}
	}
}

// serve handles requests from one client until it disconnects.
func (s *Server) serve(id string, conn net.Conn) {
	defer s.conns.Remove(id)
	defer conn.Close()

	pkg.LogDebug(pkg.ComponentServer, "client connected", "conn", id)

	r := bufio.NewReader(conn)
	for {
		req, err := proto.ReadRequest(r)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				pkg.LogDebug(pkg.ComponentServer, "client disconnected", "conn", id)
			default:
				pkg.LogWarn(pkg.ComponentServer, "bad request, closing connection",
					"conn", id,
					"error", err)
			}
			return
		}

		if err := proto.WriteResponse(conn, s.handle(req)); err != nil {
			pkg.LogDebug(pkg.ComponentServer, "write response failed",
				"conn", id,
				"error", err)
			return
		}
	}
}

// handle executes one request against the device.
func (s *Server) handle(req *proto.Request) *proto.Response {
	var (
		n       int
		err     error
		payload []byte
	)

	switch req.Op {
	case proto.OpRead:
		dst := &readIO{length: int(min(req.Arg, proto.MaxPayload))}
		n, err = s.dev.Read(s.ctx, dst)
		payload = dst.bytes()

	case proto.OpWrite:
		n, err = s.dev.Write(s.ctx, device.BytesIO(req.Payload))

	case proto.OpIoctl:
		arg := device.BytesIO(req.Payload)
		n, err = s.dev.Ioctl(s.ctx, req.Arg, arg)
		payload = arg

	default:
		err = fmt.Errorf("%w: %s", pkg.ErrInvalidArgument, req.Op)
	}

	if err != nil {
		return &proto.Response{Errno: int32(pkg.Errno(err)), Ret: -1}
	}
	return &proto.Response{Ret: int32(n), Payload: payload}
}

// poolLogger routes worker pool messages to the server log.
type poolLogger struct{}

func (poolLogger) Printf(format string, args ...any) {
	pkg.LogWarn(pkg.ComponentServer, fmt.Sprintf(format, args...))
}
