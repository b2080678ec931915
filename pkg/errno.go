package pkg

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoTable maps sentinel errors to the errno a character device would
// return for them. Order matters: wrapped errors match the first entry.
var errnoTable = []struct {
	err   error
	errno unix.Errno
}{
	{ErrOutOfRange, unix.ERANGE},
	{ErrCapacityExceeded, unix.ERANGE},
	{ErrInvalidArgument, unix.EINVAL},
	{ErrInvalidSize, unix.EINVAL},
	{ErrOutOfMemory, unix.ENOMEM},
	{ErrFault, unix.EFAULT},
	{ErrNotSupported, unix.ENOTTY},
	{ErrNoDevice, unix.ENODEV},
	{ErrNotPublished, unix.ENODEV},
}

// Errno returns the errno for err. A nil error maps to 0 and unknown
// errors map to EIO.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	for _, e := range errnoTable {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	return unix.EIO
}

// FromErrno converts an errno received across the boundary back into the
// matching sentinel. EINVAL maps to ErrInvalidArgument; callers that know
// the request was a resize should translate it to ErrInvalidSize.
func FromErrno(errno unix.Errno) error {
	switch errno {
	case 0:
		return nil
	case unix.ERANGE:
		return ErrOutOfRange
	case unix.EINVAL:
		return ErrInvalidArgument
	case unix.ENOMEM:
		return ErrOutOfMemory
	case unix.EFAULT:
		return ErrFault
	case unix.ENOTTY:
		return ErrNotSupported
	case unix.ENODEV:
		return ErrNoDevice
	default:
		return errno
	}
}
