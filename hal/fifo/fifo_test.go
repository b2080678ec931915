package fifo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

func startHAL(t *testing.T, dir string, filter hal.Filter) *HAL {
	t.Helper()
	h := New(dir, filter, WithPollInterval(5*time.Millisecond))
	require.NoError(t, h.Init(context.Background()))
	require.NoError(t, h.Start())
	t.Cleanup(func() {
		h.Stop()
		h.Close()
	})
	return h
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "token-058f-6387", FileName(0x058f, 0x6387))

	vid, pid, ok := parseFileName("token-058f-6387")
	require.True(t, ok)
	assert.Equal(t, uint16(0x058f), vid)
	assert.Equal(t, uint16(0x6387), pid)

	for _, bad := range []string{"token-58f-6387", "token-058f", "tok-058f-6387", "token-zzzz-6387"} {
		_, _, ok := parseFileName(bad)
		assert.False(t, ok, bad)
	}
}

func TestAttachDetach(t *testing.T) {
	dir := t.TempDir()
	h := startHAL(t, dir, hal.DefaultFilter)

	path, err := Insert(dir, hal.DefaultVendorID, hal.DefaultProductID)
	require.NoError(t, err)

	tok, err := h.WaitForAttach(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, hal.DefaultVendorID, tok.VendorID)
	assert.Equal(t, hal.DefaultProductID, tok.ProductID)
	assert.Equal(t, path, tok.Path)

	require.NoError(t, Remove(dir, hal.DefaultVendorID, hal.DefaultProductID))
	tok, err = h.WaitForDetach(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, path, tok.Path)

	_, err = Insert(dir, hal.DefaultVendorID, hal.DefaultProductID)
	require.NoError(t, err)
	_, err = h.WaitForAttach(waitCtx(t))
	require.NoError(t, err)
}

func TestPresentAtStart(t *testing.T) {
	dir := t.TempDir()
	_, err := Insert(dir, 0x1234, 0x5678)
	require.NoError(t, err)

	h := startHAL(t, dir, hal.Filter{VendorID: 0x1234})
	tok, err := h.WaitForAttach(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5678), tok.ProductID)
}

func TestIgnoresOtherTokens(t *testing.T) {
	dir := t.TempDir()
	h := startHAL(t, dir, hal.DefaultFilter)

	_, err := Insert(dir, 0x1d6b, 0x0002)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), nil, 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.WaitForAttach(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopUnblocks(t *testing.T) {
	h := New(t.TempDir(), hal.DefaultFilter)

	_, err := h.WaitForAttach(context.Background())
	require.ErrorIs(t, err, pkg.ErrNotRunning)
	require.ErrorIs(t, h.Start(), pkg.ErrNotRunning)

	require.NoError(t, h.Init(context.Background()))
	require.NoError(t, h.Start())
	require.ErrorIs(t, h.Start(), pkg.ErrAlreadyRunning)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.WaitForAttach(context.Background())
		errCh <- err
	}()
	require.NoError(t, h.Stop())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, pkg.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("WaitForAttach did not return after Stop")
	}
}

func TestScanSortedByPath(t *testing.T) {
	dir := t.TempDir()
	for _, id := range [][2]uint16{{0x2222, 0x0001}, {0x1111, 0x0002}, {0x058f, 0x6387}} {
		_, err := Insert(dir, id[0], id[1])
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	tokens := New(dir, hal.Filter{}).scan()
	require.Len(t, tokens, 3)
	assert.Equal(t, uint16(0x058f), tokens[0].VendorID)
	assert.Equal(t, uint16(0x1111), tokens[1].VendorID)
	assert.Equal(t, uint16(0x2222), tokens[2].VendorID)

	assert.True(t, contains(tokens, filepath.Join(dir, FileName(0x1111, 0x0002))))
	assert.False(t, contains(tokens, filepath.Join(dir, "notes.txt")))
}
