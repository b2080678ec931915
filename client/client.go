// Package client talks to the device node published by intstackd.
//
//	c, err := client.Dial(ctx, server.DefaultPath)
//	if errors.Is(err, pkg.ErrNoDevice) {
//		// the token is not inserted
//	}
//	defer c.Close()
//	err = c.Push(ctx, 42)
//
// Failed calls return the same sentinels the device produced, such as
// pkg.ErrOutOfRange for a push onto a full stack.
package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"

	"github.com/ardnew/intstack/device"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/proto"
)

// Option configures Dial.
type Option func(*options)

type options struct {
	wait time.Duration
}

// WithWait makes Dial retry until the node appears or d elapses.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// Client is a connection to the device. Calls are serialized.
type Client struct {
	mutex  sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	closed bool
}

// Dial connects to the device node at path. It returns an error wrapping
// pkg.ErrNoDevice if nothing is listening there.
func Dial(ctx context.Context, path string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	attempt := func() (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if isAbsent(err) {
			return nil, fmt.Errorf("%w: %w", pkg.ErrNoDevice, err)
		}
		return nil, backoff.Permanent(err)
	}

	var (
		conn net.Conn
		err  error
	)
	if o.wait <= 0 {
		conn, err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		b := backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(50*time.Millisecond),
			backoff.WithMaxInterval(500*time.Millisecond),
			backoff.WithMaxElapsedTime(o.wait),
		)
		conn, err = backoff.RetryWithData(attempt, backoff.WithContext(b, ctx))
	}
	if err != nil {
		pkg.LogDebug(pkg.ComponentClient, "dial failed", "path", path, "error", err)
		return nil, err
	}

	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// isAbsent reports whether a dial error means the node does not exist or
// has no listener.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, unix.ECONNREFUSED) ||
		errors.Is(err, unix.ENOTSOCK)
}

// Close closes the connection. Calls made afterward, including a second
// Close, return pkg.ErrClosed.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return pkg.ErrClosed
	}
	c.closed = true
	return c.conn.Close()
}

// call performs one request and converts a failed response to an error.
func (c *Client) call(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, pkg.ErrClosed
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := proto.WriteRequest(c.conn, req); err != nil {
		return nil, lost(err)
	}
	resp, err := proto.ReadResponse(c.r)
	if err != nil {
		return nil, lost(err)
	}
	if resp.Errno != 0 {
		return resp, pkg.FromErrno(unix.Errno(resp.Errno))
	}
	return resp, nil
}

// lost maps a dropped connection to ErrNoDevice: the node was retracted.
func lost(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE) {
		return fmt.Errorf("%w: %w", pkg.ErrNoDevice, err)
	}
	return err
}

// Read pops one element into p, returning 4 or 0 if the stack is empty.
func (c *Client) Read(ctx context.Context, p []byte) (int, error) {
	resp, err := c.call(ctx, &proto.Request{Op: proto.OpRead, Arg: uint32(len(p))})
	if err != nil {
		return 0, err
	}
	return copy(p, resp.Payload), nil
}

// Write pushes the first element of p.
func (c *Client) Write(ctx context.Context, p []byte) (int, error) {
	resp, err := c.call(ctx, &proto.Request{Op: proto.OpWrite, Payload: p})
	if err != nil {
		return 0, err
	}
	return int(resp.Ret), nil
}

// Ioctl issues a control command. arg is sent as the argument slot and
// overwritten with the slot's final contents.
func (c *Client) Ioctl(ctx context.Context, cmd uint32, arg []byte) (int, error) {
	resp, err := c.call(ctx, &proto.Request{Op: proto.OpIoctl, Arg: cmd, Payload: arg})
	if err != nil {
		return 0, err
	}
	copy(arg, resp.Payload)
	return int(resp.Ret), nil
}

// Push adds v to the stack.
func (c *Client) Push(ctx context.Context, v int32) error {
	var buf [device.ElementSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := c.Write(ctx, buf[:])
	return err
}

// Pop removes the top element. ok is false if the stack was empty.
func (c *Client) Pop(ctx context.Context) (v int32, ok bool, err error) {
	var buf [device.ElementSize]byte
	n, err := c.Read(ctx, buf[:])
	if err != nil || n == 0 {
		return 0, false, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), true, nil
}

// SetSize resizes the stack.
func (c *Client) SetSize(ctx context.Context, n int32) error {
	var buf [device.ElementSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(n))
	_, err := c.Ioctl(ctx, device.IoctlSetSize, buf[:])
	if errors.Is(err, pkg.ErrInvalidArgument) {
		return fmt.Errorf("%w: %d", pkg.ErrInvalidSize, n)
	}
	return err
}

// Count returns the stack depth.
func (c *Client) Count(ctx context.Context) (int32, error) {
	var buf [device.ElementSize]byte
	if _, err := c.Ioctl(ctx, device.IoctlGetCount, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// Unwind pops every element, returning them top first.
func (c *Client) Unwind(ctx context.Context) ([]int32, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]int32, 0, n)
	for range n {
		v, ok, err := c.Pop(ctx)
		if err != nil {
			return values, err
		}
		if !ok {
			break
		}
		values = append(values, v)
	}
	return values, nil
}
