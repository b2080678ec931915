package server

import "github.com/ardnew/intstack/device"

// readIO is the destination of a read request: it reports the length the
// client asked for while holding only the bytes actually produced.
type readIO struct {
	length int
	buf    [device.ElementSize]byte
	n      int
}

func (r *readIO) NumBytes() int { return r.length }

func (r *readIO) CopyIn(dst []byte) (int, error) { return 0, nil }

func (r *readIO) CopyOut(src []byte) (int, error) {
	r.n = copy(r.buf[:], src[:min(len(src), r.length)])
	return r.n, nil
}

func (r *readIO) bytes() []byte { return r.buf[:r.n] }
