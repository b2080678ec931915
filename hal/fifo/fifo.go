// Package fifo provides a TokenHAL that simulates token presence with
// files in a watched directory.
//
// A token is present while a file named token-<vid>-<pid> (lower-case,
// four hex digits each) exists in the directory:
//
//	touch /tmp/intstack/token-058f-6387   # attach
//	rm /tmp/intstack/token-058f-6387      # detach
package fifo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

// DefaultPollInterval is the directory polling interval.
const DefaultPollInterval = 50 * time.Millisecond

const tokenPrefix = "token-"

// FileName returns the token file name for vid and pid.
func FileName(vid, pid uint16) string {
	return fmt.Sprintf("%s%04x-%04x", tokenPrefix, vid, pid)
}

// Insert creates the token file for vid and pid in dir.
func Insert(dir string, vid, pid uint16) (string, error) {
	path := filepath.Join(dir, FileName(vid, pid))
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes the token file for vid and pid from dir.
func Remove(dir string, vid, pid uint16) error {
	return os.Remove(filepath.Join(dir, FileName(vid, pid)))
}

// parseFileName extracts the IDs from a token file name.
func parseFileName(name string) (vid, pid uint16, ok bool) {
	rest, found := strings.CutPrefix(name, tokenPrefix)
	if !found {
		return 0, 0, false
	}
	v, p, found := strings.Cut(rest, "-")
	if !found || len(v) != 4 || len(p) != 4 {
		return 0, 0, false
	}
	var err error
	if vid, err = hal.ParseID(v); err != nil {
		return 0, 0, false
	}
	if pid, err = hal.ParseID(p); err != nil {
		return 0, 0, false
	}
	return vid, pid, true
}

// Option configures a HAL.
type Option func(*HAL)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(h *HAL) { h.interval = d }
}

// HAL implements hal.TokenHAL over a directory of token files.
type HAL struct {
	dir      string
	filter   hal.Filter
	interval time.Duration

	attachCh chan hal.Token
	detachCh chan hal.Token

	mutex   sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a HAL watching dir for tokens matching filter.
func New(dir string, filter hal.Filter, opts ...Option) *HAL {
	h := &HAL{
		dir:      dir,
		filter:   filter,
		interval: DefaultPollInterval,
		attachCh: make(chan hal.Token),
		detachCh: make(chan hal.Token),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Init creates the watched directory.
func (h *HAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	h.ctx, h.cancel = context.WithCancel(ctx)

	pkg.LogInfo(pkg.ComponentHAL, "FIFO HAL initialized",
		"dir", h.dir,
		"filter", h.filter)
	return nil
}

// Start begins polling.
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
	go h.poll()
	return nil
}

// Stop ends polling and unblocks waiters.
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

// Close implements hal.TokenHAL.
func (h *HAL) Close() error {
	return h.Stop()
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

// poll scans the directory and delivers alternating attach and detach
// events for the first matching token file.
func (h *HAL) poll() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var current *hal.Token
	for {
		present := h.scan()

		switch {
		case current == nil && len(present) > 0:
			tok := present[0]
			if !h.deliver(h.attachCh, tok) {
				return
			}
			current = &tok
			pkg.LogInfo(pkg.ComponentHAL, "token inserted", "token", tok, "path", tok.Path)

		case current != nil && !contains(present, current.Path):
			if !h.deliver(h.detachCh, *current) {
				return
			}
			pkg.LogInfo(pkg.ComponentHAL, "token removed", "token", *current, "path", current.Path)
			current = nil
			continue
		}

		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *HAL) deliver(ch chan<- hal.Token, tok hal.Token) bool {
	select {
	case ch <- tok:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// scan returns matching tokens sorted by path.
func (h *HAL) scan() []hal.Token {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil
	}
	var tokens []hal.Token
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		vid, pid, ok := parseFileName(entry.Name())
		if !ok || !h.filter.Match(vid, pid) {
			continue
		}
		tokens = append(tokens, hal.Token{
			VendorID:  vid,
			ProductID: pid,
			Path:      filepath.Join(h.dir, entry.Name()),
		})
	}
	slices.SortFunc(tokens, func(a, b hal.Token) int { return strings.Compare(a.Path, b.Path) })
	return tokens
}

func contains(tokens []hal.Token, path string) bool {
	return slices.ContainsFunc(tokens, func(t hal.Token) bool { return t.Path == path })
}
