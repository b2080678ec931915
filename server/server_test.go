package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ardnew/intstack/device"
	"github.com/ardnew/intstack/proto"
	"github.com/ardnew/intstack/stack"
)

func newServer(t *testing.T, capacity int32, opts ...Option) *Server {
	t.Helper()
	st, err := stack.New(stack.WithCapacity(capacity))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "int_stack")
	s := New(path, device.New(st), opts...)
	t.Cleanup(func() { s.Retract() })
	return s
}

type testConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, path string) *testConn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testConn) call(req *proto.Request) *proto.Response {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetDeadline(time.Now().Add(2*time.Second)))
	require.NoError(c.t, proto.WriteRequest(c.conn, req))
	resp, err := proto.ReadResponse(c.r)
	require.NoError(c.t, err)
	return resp
}

func le(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func TestPublishRetract(t *testing.T) {
	s := newServer(t, 4, WithMode(0o600))
	assert.False(t, s.Published())

	require.NoError(t, s.Publish(context.Background()))
	assert.True(t, s.Published())

	fi, err := os.Lstat(s.Path())
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSocket)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	c := dial(t, s.Path())
	resp := c.call(&proto.Request{Op: proto.OpWrite, Payload: le(7)})
	assert.Zero(t, resp.Errno)

	require.NoError(t, s.Retract())
	assert.False(t, s.Published())
	_, err = os.Lstat(s.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The live connection was closed.
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = c.r.ReadByte()
	assert.Error(t, err)

	_, err = net.Dial("unix", s.Path())
	assert.Error(t, err)

	require.NoError(t, s.Retract())
}

func TestRepublishKeepsContents(t *testing.T) {
	s := newServer(t, 4)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx))
	resp := dial(t, s.Path()).call(&proto.Request{Op: proto.OpWrite, Payload: le(42)})
	require.Zero(t, resp.Errno)
	require.NoError(t, s.Retract())

	require.NoError(t, s.Publish(ctx))
	resp = dial(t, s.Path()).call(&proto.Request{Op: proto.OpRead, Arg: 4})
	require.Zero(t, resp.Errno)
	assert.Equal(t, le(42), resp.Payload)
}

func TestPublishStale(t *testing.T) {
	s := newServer(t, 1)

	// A socket left by a crashed process is replaced.
	ln, err := net.Listen("unix", s.Path())
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()
	require.NoError(t, s.Publish(context.Background()))
	require.NoError(t, s.Retract())

	// A regular file is not.
	require.NoError(t, os.WriteFile(s.Path(), nil, 0o644))
	assert.ErrorIs(t, s.Publish(context.Background()), os.ErrExist)
	assert.False(t, s.Published())
}

func TestPublishTwice(t *testing.T) {
	s := newServer(t, 1)
	require.NoError(t, s.Publish(context.Background()))
	assert.Error(t, s.Publish(context.Background()))
}

func TestRequests(t *testing.T) {
	s := newServer(t, 2)
	require.NoError(t, s.Publish(context.Background()))
	c := dial(t, s.Path())

	resp := c.call(&proto.Request{Op: proto.OpRead, Arg: 4})
	assert.Zero(t, resp.Errno)
	assert.Zero(t, resp.Ret)
	assert.Empty(t, resp.Payload)

	resp = c.call(&proto.Request{Op: proto.OpRead, Arg: 2})
	assert.Equal(t, int32(unix.EINVAL), resp.Errno)

	resp = c.call(&proto.Request{Op: proto.OpWrite, Payload: []byte{1, 2}})
	assert.Equal(t, int32(unix.EINVAL), resp.Errno)

	for _, v := range []int32{1, 2} {
		resp = c.call(&proto.Request{Op: proto.OpWrite, Payload: le(v)})
		require.Zero(t, resp.Errno)
		assert.Equal(t, int32(4), resp.Ret)
	}
	resp = c.call(&proto.Request{Op: proto.OpWrite, Payload: le(3)})
	assert.Equal(t, int32(unix.ERANGE), resp.Errno)
	assert.Equal(t, int32(-1), resp.Ret)

	resp = c.call(&proto.Request{Op: proto.OpIoctl, Arg: device.IoctlGetCount, Payload: make([]byte, 4)})
	require.Zero(t, resp.Errno)
	assert.Equal(t, le(2), resp.Payload)

	resp = c.call(&proto.Request{Op: proto.OpIoctl, Arg: device.IoctlSetSize, Payload: le(0)})
	assert.Equal(t, int32(unix.EINVAL), resp.Errno)

	resp = c.call(&proto.Request{Op: proto.OpIoctl, Arg: device.IoctlSetSize, Payload: le(1)})
	require.Zero(t, resp.Errno)

	resp = c.call(&proto.Request{Op: proto.OpIoctl, Arg: 0x1234, Payload: le(0)})
	assert.Equal(t, int32(unix.ENOTTY), resp.Errno)

	resp = c.call(&proto.Request{Op: proto.OpIoctl, Arg: device.IoctlGetCount})
	assert.Equal(t, int32(unix.EFAULT), resp.Errno)

	resp = c.call(&proto.Request{Op: proto.OpRead, Arg: 1 << 30})
	require.Zero(t, resp.Errno)
	assert.Equal(t, le(1), resp.Payload)

	resp = c.call(&proto.Request{Op: proto.Op(9)})
	assert.Equal(t, int32(unix.EINVAL), resp.Errno)
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	s := newServer(t, 1)
	require.NoError(t, s.Publish(context.Background()))
	c := dial(t, s.Path())

	hdr := []byte{byte(proto.OpWrite), 0, 0, 0, 0, 0xff, 0xff, 0xff, 0x7f}
	_, err := c.conn.Write(hdr)
	require.NoError(t, err)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = c.r.ReadByte()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.Connections() == 0 }, time.Second, time.Millisecond)
}

func TestMaxConns(t *testing.T) {
	s := newServer(t, 1, WithMaxConns(1))
	require.NoError(t, s.Publish(context.Background()))

	first := dial(t, s.Path())
	first.call(&proto.Request{Op: proto.OpRead, Arg: 4})
	require.Equal(t, 1, s.Connections())

	second := dial(t, s.Path())
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := second.r.ReadByte()
	assert.Error(t, err)

	// The first client is still served.
	resp := first.call(&proto.Request{Op: proto.OpRead, Arg: 4})
	assert.Zero(t, resp.Errno)
}
