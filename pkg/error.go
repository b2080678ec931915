package pkg

import "errors"

// Stack errors.
var (
	// ErrCapacityExceeded indicates a push onto a full stack.
	ErrCapacityExceeded = errors.New("stack capacity exceeded")

	// ErrInvalidSize indicates a resize to a non-positive capacity.
	ErrInvalidSize = errors.New("invalid stack size")

	// ErrOutOfMemory indicates the backing buffer could not be allocated.
	ErrOutOfMemory = errors.New("cannot allocate memory")
)

// Interface errors.
var (
	// ErrInvalidArgument indicates a request the device cannot act on,
	// such as a buffer shorter than one element.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is the boundary form of ErrCapacityExceeded.
	ErrOutOfRange = errors.New("result out of range")

	// ErrFault indicates bytes could not be copied across the boundary.
	ErrFault = errors.New("bad address")

	// ErrNotSupported indicates an unknown control command.
	ErrNotSupported = errors.New("inappropriate ioctl for device")

	// ErrNoDevice indicates the device interface is not published.
	ErrNoDevice = errors.New("device not present")
)

// Lifecycle errors.
var (
	// ErrNotPublished indicates the interface is currently retracted.
	ErrNotPublished = errors.New("interface not published")

	// ErrAlreadyRunning indicates a component was started twice.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates a component was used before it was started.
	ErrNotRunning = errors.New("not running")

	// ErrCancelled indicates a wait was abandoned because of shutdown.
	ErrCancelled = errors.New("cancelled")

	// ErrClosed indicates use of a closed resource.
	ErrClosed = errors.New("closed")
)

// Protocol errors.
var (
	// ErrFrameTooLarge indicates a frame payload exceeds the protocol limit.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrBadFrame indicates a malformed frame.
	ErrBadFrame = errors.New("malformed frame")
)
