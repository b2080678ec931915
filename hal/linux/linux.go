//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/pkg/linux/usbid"
)

// Option configures a HAL.
type Option func(*HAL)

// WithSysfsRoot overrides SysfsUSBPath.
func WithSysfsRoot(root string) Option {
	return func(h *HAL) { h.sysfsRoot = root }
}

// WithNames sets the database used to name tokens in logs.
func WithNames(db *usbid.DB) Option {
	return func(h *HAL) { h.names = db }
}

// HAL implements hal.TokenHAL using netlink uevents.
type HAL struct {
	filter    hal.Filter
	sysfsRoot string
	names     *usbid.DB

	fd  int
	buf [UEventBufferSize]byte

	attachCh chan hal.Token
	detachCh chan hal.Token

	mutex   sync.Mutex
	current *hal.Token
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a HAL reporting tokens that match filter.
func New(filter hal.Filter, opts ...Option) *HAL {
	h := &HAL{
		filter:    filter,
		sysfsRoot: SysfsUSBPath,
		fd:        -1,
		attachCh:  make(chan hal.Token),
		detachCh:  make(chan hal.Token),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Init opens the uevent socket.
func (h *HAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.fd >= 0 {
		return pkg.ErrAlreadyRunning
	}

	fd, err := unix.Socket(
		unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		netlinkKObjectUEvent,
	)
	if err != nil {
		return fmt.Errorf("netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: ueventGroupKernel,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("netlink bind: %w", err)
	}

	h.fd = fd
	h.ctx, h.cancel = context.WithCancel(ctx)

	pkg.LogInfo(pkg.ComponentHAL, "netlink HAL initialized",
		"filter", h.filter,
		"sysfs", h.sysfsRoot)
	return nil
}

// Start scans for a token already present and begins monitoring.
func (h *HAL) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.ctx == nil {
		return pkg.ErrNotRunning
	}
	if h.started {
		return pkg.ErrAlreadyRunning
	}
	h.started = true

	h.wg.Add(1)
	go h.monitor()
	return nil
}

// Stop ends monitoring and unblocks waiters.
func (h *HAL) Stop() error {
	h.mutex.Lock()
	cancel := h.cancel
	h.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
	return nil
}

// Close stops the HAL and closes the socket.
func (h *HAL) Close() error {
	h.Stop()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

// WaitForAttach implements hal.TokenHAL.
func (h *HAL) WaitForAttach(ctx context.Context) (hal.Token, error) {
	return h.wait(ctx, h.attachCh)
}

// WaitForDetach implements hal.TokenHAL.
func (h *HAL) WaitForDetach(ctx context.Context) (hal.Token, error) {
	return h.wait(ctx, h.detachCh)
}

func (h *HAL) wait(ctx context.Context, ch <-chan hal.Token) (hal.Token, error) {
	h.mutex.Lock()
	halCtx := h.ctx
	h.mutex.Unlock()
	if halCtx == nil {
		return hal.Token{}, pkg.ErrNotRunning
	}

	select {
	case <-ctx.Done():
		return hal.Token{}, ctx.Err()
	case <-halCtx.Done():
		return hal.Token{}, pkg.ErrCancelled
	case tok := <-ch:
		return tok, nil
	}
}

// =============================================================================
// Event Processing
// =============================================================================

// transition is a presence change to report.
type transition struct {
	token  hal.Token
	attach bool
}

// monitor reports a token found in sysfs, then reads uevents until the
// HAL is stopped.
func (h *HAL) monitor() {
	defer h.wg.Done()

	if tr, ok := h.scan(); ok && !h.deliver(tr) {
		return
	}

	fds := []unix.PollFd{{Fd: int32(h.fd), Events: unix.POLLIN}}
	for h.ctx.Err() == nil {
		n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			pkg.LogError(pkg.ComponentHAL, "poll failed", "error", err)
			return
		}
		if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		for {
			n, err := unix.Read(h.fd, h.buf[:])
			if err != nil || n <= 0 {
				if err != nil && !errors.Is(err, unix.EAGAIN) {
					pkg.LogWarn(pkg.ComponentHAL, "uevent read failed", "error", err)
				}
				break
			}
			if tr, ok := h.process(parseUEvent(h.buf[:n])); ok && !h.deliver(tr) {
				return
			}
		}
	}
}

func (h *HAL) deliver(tr transition) bool {
	ch := h.detachCh
	if tr.attach {
		ch = h.attachCh
	}
	select {
	case ch <- tr.token:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// scan looks for a matching token already attached.
func (h *HAL) scan() (transition, bool) {
	devices, err := scanUSBDevices(h.sysfsRoot)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHAL, "sysfs scan failed", "error", err)
		return transition{}, false
	}
	for _, dev := range devices {
		if h.filter.Match(dev.vendorID, dev.productID) {
			return h.attached(dev.token())
		}
	}
	return transition{}, false
}

// process updates presence state from one uevent.
func (h *HAL) process(evt uevent) (transition, bool) {
	if !evt.isUSBDevice() {
		return transition{}, false
	}

	switch evt.action {
	case ueventAdd:
		tok, ok := h.identify(evt)
		if !ok || !h.filter.Match(tok.VendorID, tok.ProductID) {
			return transition{}, false
		}
		return h.attached(tok)

	case ueventRemove:
		h.mutex.Lock()
		cur := h.current
		if cur == nil || cur.Path != evt.name() {
			h.mutex.Unlock()
			return transition{}, false
		}
		h.current = nil
		h.mutex.Unlock()

		pkg.LogInfo(pkg.ComponentHAL, "token removed", "token", *cur)
		return transition{token: *cur, attach: false}, true
	}
	return transition{}, false
}

func (h *HAL) attached(tok hal.Token) (transition, bool) {
	h.mutex.Lock()
	if h.current != nil {
		h.mutex.Unlock()
		pkg.LogDebug(pkg.ComponentHAL, "token already attached, ignoring", "token", tok)
		return transition{}, false
	}
	h.current = &tok
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHAL, "token inserted",
		"token", tok,
		"name", h.names.Name(tok.VendorID, tok.ProductID),
		"path", tok.Path)
	return transition{token: tok, attach: true}, true
}

// identify builds a token from the event, falling back to sysfs for IDs
// missing from the event.
func (h *HAL) identify(evt uevent) (hal.Token, bool) {
	tok := hal.Token{Path: evt.name()}
	tok.Bus, tok.Dev = evt.location()

	if vid, pid, ok := evt.ids(); ok {
		tok.VendorID, tok.ProductID = vid, pid
		return tok, true
	}

	info, err := parseUSBDevice(filepath.Join(h.sysfsRoot, tok.Path))
	if err != nil {
		return tok, false
	}
	t := info.token()
	if tok.Bus != 0 || tok.Dev != 0 {
		t.Bus, t.Dev = tok.Bus, tok.Dev
	}
	return t, true
}
