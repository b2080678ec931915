package device

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/stack"
)

// Op identifies a boundary operation for observers.
type Op string

// Operations reported to observers.
const (
	OpRead     Op = "read"
	OpWrite    Op = "write"
	OpSetSize  Op = "set_size"
	OpGetCount Op = "get_count"
	OpIoctl    Op = "ioctl"
)

// Observer is called after every operation with its result.
type Observer func(op Op, err error)

// Device serves boundary calls against a stack.
type Device struct {
	stack    *stack.Stack
	observer Observer
}

// Option configures a Device.
type Option func(*Device)

// WithObserver installs an operation observer.
func WithObserver(fn Observer) Option {
	return func(d *Device) { d.observer = fn }
}

// New creates a Device over s.
func New(s *stack.Stack, opts ...Option) *Device {
	d := &Device{stack: s}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stack returns the underlying stack.
func (d *Device) Stack() *stack.Stack { return d.stack }

func (d *Device) done(op Op, err error) {
	if err != nil {
		pkg.LogDebug(pkg.ComponentDevice, "operation failed",
			"op", op,
			"error", err)
	}
	if d.observer != nil {
		d.observer(op, err)
	}
}

// Read pops one element into dst. It returns 0 and no error when the
// stack is empty.
//
// Read, Write and Ioctl return ctx.Err() without touching the stack once
// ctx is done.
func (d *Device) Read(ctx context.Context, dst IO) (n int, err error) {
	defer func() { d.done(OpRead, err) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if dst.NumBytes() < ElementSize {
		return 0, pkg.ErrInvalidArgument
	}
	value, ok := d.stack.Pop()
	if !ok {
		return 0, nil
	}
	var buf [ElementSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	if err := copyOut(dst, buf[:]); err != nil {
		// The value has already been removed.
		return 0, err
	}
	return ElementSize, nil
}

// Write pushes the first element of src.
func (d *Device) Write(ctx context.Context, src IO) (n int, err error) {
	defer func() { d.done(OpWrite, err) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if src.NumBytes() < ElementSize {
		return 0, pkg.ErrInvalidArgument
	}
	var buf [ElementSize]byte
	if err := copyIn(src, buf[:]); err != nil {
		return 0, err
	}
	value := int32(binary.LittleEndian.Uint32(buf[:]))
	if err := d.stack.Push(value); err != nil {
		return 0, fmt.Errorf("%w: %w", pkg.ErrOutOfRange, err)
	}
	return ElementSize, nil
}

// Ioctl executes a control command. arg is the command's int32 argument
// slot.
func (d *Device) Ioctl(ctx context.Context, cmd uint32, arg IO) (int, error) {
	if err := ctx.Err(); err != nil {
		d.done(OpIoctl, err)
		return 0, err
	}
	switch cmd {
	case IoctlSetSize:
		err := d.setSize(arg)
		d.done(OpSetSize, err)
		return 0, err
	case IoctlGetCount:
		err := d.getCount(arg)
		d.done(OpGetCount, err)
		return 0, err
	default:
		err := fmt.Errorf("%w: 0x%08x", pkg.ErrNotSupported, cmd)
		d.done(OpIoctl, err)
		return 0, err
	}
}

func (d *Device) setSize(arg IO) error {
	var buf [ElementSize]byte
	if err := copyIn(arg, buf[:]); err != nil {
		return err
	}
	return d.stack.Resize(int32(binary.LittleEndian.Uint32(buf[:])))
}

func (d *Device) getCount(arg IO) error {
	var buf [ElementSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(d.stack.Depth()))
	return copyOut(arg, buf[:])
}
